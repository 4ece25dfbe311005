package handlers

import (
	"net/http"

	"sosguard/internal/models"
	"sosguard/internal/services"
	"sosguard/internal/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContactHandler struct {
	contactService services.ContactService
}

func NewContactHandler(contactService services.ContactService) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
	}
}

type contactRequest struct {
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Relation    string `json:"relation"`
	PushToken   string `json:"push_token"`
	Platform    string `json:"platform"`
	WhatsApp    bool   `json:"whatsapp"`
}

func (h *ContactHandler) AddContact(c *gin.Context) {
	var request contactRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	contact := &models.EmergencyContact{
		OwnerID:     ownerID,
		Name:        request.Name,
		PhoneNumber: request.PhoneNumber,
		Relation:    request.Relation,
		PushToken:   request.PushToken,
		Platform:    request.Platform,
		WhatsApp:    request.WhatsApp,
	}

	if err := h.contactService.AddContact(c.Request.Context(), contact); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_CREATE_FAILED", "Failed to add contact: "+err.Error())
		return
	}

	utils.CreatedResponse(c, "Contact added", contact)
}

func (h *ContactHandler) ListContacts(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	contacts, err := h.contactService.ListContacts(c.Request.Context(), ownerID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_FETCH_FAILED", "Failed to list contacts: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Contacts retrieved", contacts)
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	contactID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid contact ID")
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if err := h.contactService.UpdateContact(c.Request.Context(), ownerID, contactID, updates); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_UPDATE_FAILED", "Failed to update contact: "+err.Error())
		return
	}

	utils.SuccessResponse(c, "Contact updated", nil)
}

func (h *ContactHandler) RemoveContact(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	contactID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid contact ID")
		return
	}

	if err := h.contactService.RemoveContact(c.Request.Context(), ownerID, contactID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CONTACT_DELETE_FAILED", "Failed to remove contact: "+err.Error())
		return
	}

	utils.NoContentResponse(c)
}
