package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type TwilioProvider struct {
	client         *twilio.RestClient
	fromNumber     string
	whatsappNumber string
	voiceNumber    string
}

func NewTwilioProvider(accountSID, authToken, fromNumber, whatsappNumber, voiceNumber string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioProvider{
		client:         client,
		fromNumber:     fromNumber,
		whatsappNumber: whatsappNumber,
		voiceNumber:    voiceNumber,
	}
}

func (t *TwilioProvider) SendSMS(ctx context.Context, request *SMSRequest) (*SMSResponse, error) {
	params := &api.CreateMessageParams{}
	if request.WhatsApp {
		params.SetTo(whatsappAddress(request.To))
		params.SetFrom(whatsappAddress(t.whatsappNumber))
	} else {
		params.SetTo(request.To)
		params.SetFrom(t.getFromNumber(request.From))
	}
	params.SetBody(request.Message)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return &SMSResponse{
			Status: "failed",
			Error:  err.Error(),
		}, err
	}

	return &SMSResponse{
		MessageID: *resp.Sid,
		Status:    string(*resp.Status),
	}, nil
}

func (t *TwilioProvider) SendBulkSMS(ctx context.Context, requests []*SMSRequest) ([]*SMSResponse, error) {
	responses := make([]*SMSResponse, len(requests))

	for i, req := range requests {
		resp, err := t.SendSMS(ctx, req)
		if err != nil {
			resp = &SMSResponse{
				Status: "failed",
				Error:  err.Error(),
			}
		}
		responses[i] = resp
	}

	return responses, nil
}

// PlaceCall dials the contact and reads the alert out with text-to-speech.
func (t *TwilioProvider) PlaceCall(ctx context.Context, request *CallRequest) (*CallResponse, error) {
	from := request.From
	if from == "" {
		from = t.voiceNumber
	}
	if from == "" {
		from = t.fromNumber
	}

	params := &api.CreateCallParams{}
	params.SetTo(request.To)
	params.SetFrom(from)
	params.SetTwiml(fmt.Sprintf("<Response><Say loop=\"2\">%s</Say></Response>", escapeTwiml(request.Message)))

	resp, err := t.client.Api.CreateCall(params)
	if err != nil {
		return &CallResponse{
			Status: "failed",
			Error:  err.Error(),
		}, err
	}

	return &CallResponse{
		CallSID: *resp.Sid,
		Status:  string(*resp.Status),
	}, nil
}

func (t *TwilioProvider) GetDeliveryStatus(ctx context.Context, messageID string) (*DeliveryStatus, error) {
	params := &api.FetchMessageParams{}

	resp, err := t.client.Api.FetchMessage(messageID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message status: %w", err)
	}

	status := &DeliveryStatus{
		MessageID: messageID,
		Status:    string(*resp.Status),
	}

	if resp.ErrorCode != nil {
		status.ErrorCode = fmt.Sprintf("%d", *resp.ErrorCode)
	}

	if resp.ErrorMessage != nil {
		status.ErrorMessage = *resp.ErrorMessage
	}

	return status, nil
}

func (t *TwilioProvider) getFromNumber(from string) string {
	if from != "" {
		return from
	}
	return t.fromNumber
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

func escapeTwiml(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}
