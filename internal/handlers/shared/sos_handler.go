package handlers

import (
	"net/http"

	"sosguard/internal/models"
	"sosguard/internal/services"
	"sosguard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SOSHandler struct {
	sosService services.SOSService
}

func NewSOSHandler(sosService services.SOSService) *SOSHandler {
	return &SOSHandler{
		sosService: sosService,
	}
}

type triggerRequest struct {
	Method    models.TriggerMethod `json:"method" binding:"required"`
	Latitude  *float64             `json:"latitude"`
	Longitude *float64             `json:"longitude"`
}

// Trigger opens an SOS session for the authenticated user.
func (h *SOSHandler) Trigger(c *gin.Context) {
	var request triggerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	switch request.Method {
	case models.TriggerMethodManual, models.TriggerMethodShake, models.TriggerMethodPowerButton:
	default:
		utils.BadRequestResponse(c, "Unknown trigger method")
		return
	}

	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	var location *models.Location
	if request.Latitude != nil && request.Longitude != nil {
		location = models.NewLocation(*request.Latitude, *request.Longitude)
	}

	session, err := h.sosService.Trigger(c.Request.Context(), ownerID, request.Method, location)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SOS_TRIGGER_FAILED", "Failed to trigger SOS: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "SOS triggered", session)
}

// Resolve closes the active SOS session.
func (h *SOSHandler) Resolve(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	if err := h.sosService.Resolve(c.Request.Context(), ownerID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SOS_RESOLVE_FAILED", "Failed to resolve SOS: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "SOS resolved", nil)
}

// Recover re-adopts a session that a previous run left active. Clients call it
// once at startup before showing the SOS screen.
func (h *SOSHandler) Recover(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	session, err := h.sosService.RecoverOnStart(c.Request.Context(), ownerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SOS_RECOVER_FAILED", "Failed to check for recoverable session: "+err.Error())
		return
	}
	if session == nil {
		utils.SuccessResponse(c, "No session to recover", nil)
		return
	}

	utils.SuccessResponse(c, "Session recovered", session)
}

// GetActive returns the currently active session, if any.
func (h *SOSHandler) GetActive(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	session, err := h.sosService.ActiveSession(c.Request.Context(), ownerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SOS_FETCH_FAILED", "Failed to fetch active session: "+err.Error())
		return
	}
	if session == nil {
		utils.NotFoundResponse(c, "Active SOS session")
		return
	}

	utils.SuccessResponse(c, "Active session retrieved", session)
}

// GetHistory lists the user's past sessions.
func (h *SOSHandler) GetHistory(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	sessions, total, err := h.sosService.History(c.Request.Context(), ownerID, params)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "SOS_HISTORY_FAILED", "Failed to fetch history: "+err.Error())
		return
	}

	meta := &utils.Meta{
		Pagination: utils.CreatePaginationMeta(params, total),
		Total:      total,
		Count:      len(sessions),
	}
	utils.SuccessResponseWithMeta(c, "History retrieved", sessions, meta)
}

// GetArtifacts lists the evidence captured for one session.
func (h *SOSHandler) GetArtifacts(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	sessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return
	}

	artifacts, err := h.sosService.SessionArtifacts(c.Request.Context(), ownerID, sessionID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "ARTIFACTS_FETCH_FAILED", "Failed to fetch artifacts: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Artifacts retrieved", artifacts)
}

// GetAllArtifacts lists the user's evidence across all sessions.
func (h *SOSHandler) GetAllArtifacts(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	artifacts, err := h.sosService.OwnerArtifacts(c.Request.Context(), ownerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "ARTIFACTS_FETCH_FAILED", "Failed to fetch artifacts: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Artifacts retrieved", artifacts)
}

func ownerFromContext(c *gin.Context) (primitive.ObjectID, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, false
	}

	ownerID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, false
	}

	return ownerID, true
}
