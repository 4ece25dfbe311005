package handlers

import (
	"github.com/gin-gonic/gin"

	"sosguard/internal/utils"
	"sosguard/pkg/logger"
)

// WebhookHandler receives Twilio delivery callbacks. Delivery state is logged
// for the incident audit trail; a failed callback never affects the session.
type WebhookHandler struct {
	log *logger.Logger
}

func NewWebhookHandler(log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{log: log}
}

func (h *WebhookHandler) HandleSMSStatus(c *gin.Context) {
	messageSID := c.PostForm("MessageSid")
	status := c.PostForm("MessageStatus")
	errorCode := c.PostForm("ErrorCode")

	if messageSID == "" || status == "" {
		utils.BadRequestResponse(c, "Missing MessageSid or MessageStatus")
		return
	}

	log := h.log.WithFields(map[string]interface{}{
		"message_sid": messageSID,
		"status":      status,
	})
	if errorCode != "" {
		log.WithField("error_code", errorCode).Warn("SOS alert SMS delivery failed")
	} else {
		log.Info("SOS alert SMS delivery status")
	}

	utils.SuccessResponse(c, "Status recorded", nil)
}

func (h *WebhookHandler) HandleCallStatus(c *gin.Context) {
	callSID := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")

	if callSID == "" || status == "" {
		utils.BadRequestResponse(c, "Missing CallSid or CallStatus")
		return
	}

	h.log.WithFields(map[string]interface{}{
		"call_sid": callSID,
		"status":   status,
		"duration": c.PostForm("CallDuration"),
	}).Info("SOS alert call status")

	utils.SuccessResponse(c, "Status recorded", nil)
}
