package sms

import "context"

type SMSProvider interface {
	SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error)
	SendBulkSMS(ctx context.Context, requests []*SMSRequest) ([]*SMSResponse, error)
	GetDeliveryStatus(ctx context.Context, messageID string) (*DeliveryStatus, error)
}

type SMSRequest struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Message  string `json:"message"`
	WhatsApp bool   `json:"whatsapp"`
}

type SMSResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type DeliveryStatus struct {
	MessageID    string `json:"message_id"`
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type CallRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

type CallResponse struct {
	CallSID string `json:"call_sid"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// VoiceProvider places automated voice calls.
type VoiceProvider interface {
	PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error)
}
