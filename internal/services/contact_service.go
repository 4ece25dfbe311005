package services

import (
	"context"
	"fmt"
	"time"

	"sosguard/internal/models"
	"sosguard/internal/repositories/interfaces"
	"sosguard/internal/utils"
	"sosguard/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContactService interface {
	AddContact(ctx context.Context, contact *models.EmergencyContact) error
	ListContacts(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EmergencyContact, error)
	UpdateContact(ctx context.Context, ownerID, contactID primitive.ObjectID, updates map[string]interface{}) error
	RemoveContact(ctx context.Context, ownerID, contactID primitive.ObjectID) error
}

type contactService struct {
	contactRepo interfaces.ContactRepository
	log         *logger.Logger
}

func NewContactService(contactRepo interfaces.ContactRepository, log *logger.Logger) ContactService {
	return &contactService{
		contactRepo: contactRepo,
		log:         log,
	}
}

func (s *contactService) AddContact(ctx context.Context, contact *models.EmergencyContact) error {
	if !utils.IsValidPhone(contact.PhoneNumber) {
		return fmt.Errorf("invalid phone number")
	}
	contact.PhoneNumber = utils.NormalizePhone(contact.PhoneNumber)

	if contact.ID.IsZero() {
		contact.ID = primitive.NewObjectID()
	}
	now := time.Now()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	if err := s.contactRepo.Create(ctx, contact); err != nil {
		return fmt.Errorf("failed to create emergency contact: %w", err)
	}

	s.log.WithUserID(contact.OwnerID).
		WithField("contact", utils.MaskPhone(contact.PhoneNumber)).
		Info("Emergency contact added")
	return nil
}

func (s *contactService) ListContacts(ctx context.Context, ownerID primitive.ObjectID) ([]*models.EmergencyContact, error) {
	return s.contactRepo.GetByOwnerID(ctx, ownerID)
}

func (s *contactService) UpdateContact(ctx context.Context, ownerID, contactID primitive.ObjectID, updates map[string]interface{}) error {
	if phone, ok := updates["phone_number"].(string); ok {
		if !utils.IsValidPhone(phone) {
			return fmt.Errorf("invalid phone number")
		}
		updates["phone_number"] = utils.NormalizePhone(phone)
	}
	updates["updated_at"] = time.Now()

	// Ownership is enforced by scoping the update to the owner's contacts.
	contacts, err := s.contactRepo.GetByOwnerID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to load contacts: %w", err)
	}
	owned := false
	for _, c := range contacts {
		if c.ID == contactID {
			owned = true
			break
		}
	}
	if !owned {
		return fmt.Errorf("contact does not belong to requester")
	}

	if err := s.contactRepo.Update(ctx, contactID, updates); err != nil {
		return fmt.Errorf("failed to update emergency contact: %w", err)
	}
	return nil
}

func (s *contactService) RemoveContact(ctx context.Context, ownerID, contactID primitive.ObjectID) error {
	if err := s.contactRepo.Delete(ctx, ownerID, contactID); err != nil {
		return fmt.Errorf("failed to delete emergency contact: %w", err)
	}
	return nil
}
