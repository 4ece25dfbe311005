package routes

import (
	"github.com/gin-gonic/gin"

	handlers "sosguard/internal/handlers/shared"
	"sosguard/internal/middleware"
	"sosguard/pkg/websocket"
)

// SetupSOSRoutes wires the SOS lifecycle, contact management, webhook, and
// live-watch endpoints.
func SetupSOSRoutes(
	r *gin.RouterGroup,
	jwtSecret string,
	sosHandler *handlers.SOSHandler,
	contactHandler *handlers.ContactHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHandler *websocket.Handler,
) {
	// Twilio callbacks are unauthenticated.
	webhooks := r.Group("/webhooks/twilio")
	{
		webhooks.POST("/sms-status", webhookHandler.HandleSMSStatus)
		webhooks.POST("/call-status", webhookHandler.HandleCallStatus)
	}

	sos := r.Group("/sos")
	sos.Use(middleware.AuthRequired(jwtSecret))
	{
		sos.POST("/trigger", sosHandler.Trigger)
		sos.POST("/resolve", sosHandler.Resolve)
		sos.POST("/recover", sosHandler.Recover)
		sos.GET("/active", sosHandler.GetActive)
		sos.GET("/history", sosHandler.GetHistory)
		sos.GET("/sessions/:id/artifacts", sosHandler.GetArtifacts)
		sos.GET("/artifacts", sosHandler.GetAllArtifacts)
	}

	contacts := r.Group("/contacts")
	contacts.Use(middleware.AuthRequired(jwtSecret))
	{
		contacts.POST("/", contactHandler.AddContact)
		contacts.GET("/", contactHandler.ListContacts)
		contacts.PUT("/:id", contactHandler.UpdateContact)
		contacts.DELETE("/:id", contactHandler.RemoveContact)
	}

	ws := r.Group("/ws")
	ws.Use(middleware.AuthRequired(jwtSecret))
	{
		ws.GET("", wsHandler.HandleWebSocket)
	}
}
