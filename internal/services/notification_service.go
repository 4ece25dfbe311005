package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"
	"sosguard/internal/utils"
	"sosguard/pkg/logger"
	"sosguard/pkg/maps"
	"sosguard/pkg/push"
	"sosguard/pkg/sms"
	"sosguard/pkg/websocket"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationService fans an SOS alert out to the owner's emergency contacts
// over every channel configured for them. Channel failures are logged and
// swallowed; one dead channel must never block the others.
type NotificationService interface {
	NotifyContacts(ctx context.Context, session *models.SOSSession) error
	NotifyResolved(ctx context.Context, session *models.SOSSession) error
}

type notificationService struct {
	contactRepo interfaces.ContactRepository
	sessionRepo interfaces.SessionRepository
	smsProvider sms.SMSProvider
	smsFallback sms.SMSProvider
	voice       sms.VoiceProvider
	fcm         push.PushProvider
	apns        push.PushProvider
	geocoder    maps.Geocoder
	wsHandler   *websocket.Handler
	log         *logger.Logger
}

func NewNotificationService(
	contactRepo interfaces.ContactRepository,
	sessionRepo interfaces.SessionRepository,
	smsProvider sms.SMSProvider,
	smsFallback sms.SMSProvider,
	voice sms.VoiceProvider,
	fcm push.PushProvider,
	apns push.PushProvider,
	geocoder maps.Geocoder,
	wsHandler *websocket.Handler,
	log *logger.Logger,
) NotificationService {
	return &notificationService{
		contactRepo: contactRepo,
		sessionRepo: sessionRepo,
		smsProvider: smsProvider,
		smsFallback: smsFallback,
		voice:       voice,
		fcm:         fcm,
		apns:        apns,
		geocoder:    geocoder,
		wsHandler:   wsHandler,
		log:         log,
	}
}

func (s *notificationService) NotifyContacts(ctx context.Context, session *models.SOSSession) error {
	contacts, err := s.contactRepo.GetByOwnerID(ctx, session.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to load emergency contacts: %w", err)
	}
	if len(contacts) == 0 {
		s.log.WithSessionID(session.ID).Warn("No emergency contacts configured, alert not sent")
		return nil
	}

	address := s.resolveAddress(ctx, session)
	message := buildAlertMessage(session, address)

	var wg sync.WaitGroup
	for _, contact := range contacts {
		wg.Add(1)
		go func(contact *models.EmergencyContact) {
			defer wg.Done()
			s.alertContact(ctx, session, contact, message)
		}(contact)
	}
	wg.Wait()

	if s.wsHandler != nil {
		s.wsHandler.SendSessionUpdate(session.ID, "sos_triggered", map[string]interface{}{
			"incident_number": session.IncidentNumber,
			"address":         address,
			"contacts":        len(contacts),
		})
	}

	return nil
}

func (s *notificationService) NotifyResolved(ctx context.Context, session *models.SOSSession) error {
	contacts, err := s.contactRepo.GetByOwnerID(ctx, session.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to load emergency contacts: %w", err)
	}

	message := fmt.Sprintf("SOS resolved: incident %s is over and the sender reports being safe.", session.IncidentNumber)

	for _, contact := range contacts {
		s.sendSMS(ctx, session, contact, message)
	}

	if s.wsHandler != nil {
		s.wsHandler.SendSessionUpdate(session.ID, "sos_resolved", map[string]interface{}{
			"incident_number": session.IncidentNumber,
		})
	}

	return nil
}

// alertContact works through the contact's channels. Each channel that gets
// through is recorded on the session so responders can see who already knows.
func (s *notificationService) alertContact(ctx context.Context, session *models.SOSSession, contact *models.EmergencyContact, message string) {
	log := s.log.WithSessionID(session.ID).WithField("contact", utils.MaskPhone(contact.PhoneNumber))

	if s.sendSMS(ctx, session, contact, message) {
		log.Info("SOS alert SMS delivered")
	}

	if contact.WhatsApp {
		_, err := s.smsProvider.SendSMS(ctx, &sms.SMSRequest{
			To:       contact.PhoneNumber,
			Message:  message,
			WhatsApp: true,
		})
		if err != nil {
			log.WithError(err).Error("Failed to send WhatsApp alert")
		} else {
			s.recordChannel(ctx, session.ID, "whatsapp")
		}
	}

	if contact.PushToken != "" {
		s.sendPush(ctx, session, contact)
	}

	if s.voice != nil {
		_, err := s.voice.PlaceCall(ctx, &sms.CallRequest{
			To:      contact.PhoneNumber,
			Message: message,
		})
		if err != nil {
			log.WithError(err).Error("Failed to place alert call")
		} else {
			s.recordChannel(ctx, session.ID, "voice")
		}
	}
}

// sendSMS tries the primary provider and falls back to the secondary one.
func (s *notificationService) sendSMS(ctx context.Context, session *models.SOSSession, contact *models.EmergencyContact, message string) bool {
	request := &sms.SMSRequest{
		To:      contact.PhoneNumber,
		Message: message,
	}

	_, err := s.smsProvider.SendSMS(ctx, request)
	if err != nil && s.smsFallback != nil {
		s.log.WithSessionID(session.ID).WithError(err).
			Warn("Primary SMS provider failed, trying fallback")
		_, err = s.smsFallback.SendSMS(ctx, request)
	}
	if err != nil {
		s.log.WithSessionID(session.ID).WithError(err).
			WithField("contact", utils.MaskPhone(contact.PhoneNumber)).
			Error("Failed to send SOS alert SMS")
		return false
	}

	s.recordChannel(ctx, session.ID, "sms")
	return true
}

func (s *notificationService) sendPush(ctx context.Context, session *models.SOSSession, contact *models.EmergencyContact) {
	request := &push.NotificationRequest{
		Token: contact.PushToken,
		Title: "SOS Alert",
		Body:  fmt.Sprintf("Someone who lists you as an emergency contact needs help. Incident %s.", session.IncidentNumber),
		Data: map[string]string{
			"session_id":      session.ID.Hex(),
			"incident_number": session.IncidentNumber,
			"type":            "sos_alert",
		},
		Sound:    "sos_alarm",
		Priority: "high",
	}

	var provider push.PushProvider
	switch contact.Platform {
	case "ios":
		provider = s.apns
	default:
		provider = s.fcm
	}
	if provider == nil {
		return
	}

	if _, err := provider.SendNotification(ctx, request); err != nil {
		s.log.WithSessionID(session.ID).WithError(err).Error("Failed to send push alert")
		return
	}
	s.recordChannel(ctx, session.ID, "push")
}

// resolveAddress turns the session coordinates into a street address and
// persists it on the session. Coordinates alone are still usable if it fails.
func (s *notificationService) resolveAddress(ctx context.Context, session *models.SOSSession) string {
	if session.Address != "" {
		return session.Address
	}
	if s.geocoder == nil || session.Location == nil {
		return ""
	}

	geoCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := s.geocoder.ReverseGeocode(geoCtx, session.Location.Latitude(), session.Location.Longitude())
	if err != nil {
		s.log.WithSessionID(session.ID).WithError(err).Warn("Reverse geocoding failed")
		return ""
	}

	if err := s.sessionRepo.UpdateAddress(ctx, session.ID, result.Address); err != nil {
		s.log.WithSessionID(session.ID).WithError(err).Warn("Failed to persist resolved address")
	}
	session.Address = result.Address
	return result.Address
}

func (s *notificationService) recordChannel(ctx context.Context, sessionID primitive.ObjectID, channel string) {
	if err := s.sessionRepo.AddContactedBy(ctx, sessionID, channel); err != nil {
		s.log.WithSessionID(sessionID).WithError(err).Warn("Failed to record contacted channel")
	}
}

func buildAlertMessage(session *models.SOSSession, address string) string {
	message := fmt.Sprintf("EMERGENCY: SOS triggered (incident %s).", session.IncidentNumber)
	if address != "" {
		message += " Location: " + address + "."
	}
	if session.Location != nil {
		message += fmt.Sprintf(" Coordinates: %.5f,%.5f. https://maps.google.com/?q=%.5f,%.5f",
			session.Location.Latitude(), session.Location.Longitude(),
			session.Location.Latitude(), session.Location.Longitude())
	}
	return message
}
