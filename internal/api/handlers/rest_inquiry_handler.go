package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fahdi/pakpropertyapp-sub001/internal/api/middleware"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// RestInquiryHandler handles REST requests for the inquiry lifecycle.
type RestInquiryHandler struct {
	inquiryService services.IInquiryService
}

// NewRestInquiryHandler creates a new RestInquiryHandler.
func NewRestInquiryHandler(inquiryService services.IInquiryService) *RestInquiryHandler {
	return &RestInquiryHandler{inquiryService: inquiryService}
}

func parseInquiryID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid inquiry ID format"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func mustActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return models.Actor{}, false
	}
	return actor, true
}

type createInquiryRequest struct {
	PropertyID string               `json:"property_id" binding:"required"`
	Type       string               `json:"type"`
	Priority   string               `json:"priority"`
	Message    string               `json:"message" binding:"required"`
	Contact    models.ContactInfo   `json:"contact" binding:"required"`
	Requires   *models.Requirements `json:"requirements"`
}

// CreateInquiry handles POST /v1/inquiry. The optional X-Idempotency-Key
// header makes retried submissions return the original inquiry.
func (h *RestInquiryHandler) CreateInquiry(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	var req createInquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(req.PropertyID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	inquiry, err := h.inquiryService.CreateInquiry(c.Request.Context(), actor, services.CreateInquiryParams{
		PropertyID:     propertyID,
		Message:        req.Message,
		Contact:        req.Contact,
		Type:           models.InquiryType(req.Type),
		Priority:       models.InquiryPriority(req.Priority),
		Requirements:   req.Requires,
		IdempotencyKey: c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		writeError(c, err, "Failed to create inquiry")
		return
	}

	c.JSON(http.StatusCreated, inquiry)
}

// GetInquiry handles GET /v1/inquiry/:id
func (h *RestInquiryHandler) GetInquiry(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	inquiryID, ok := parseInquiryID(c)
	if !ok {
		return
	}

	inquiry, err := h.inquiryService.GetInquiry(c.Request.Context(), actor, inquiryID)
	if err != nil {
		writeError(c, err, "Failed to retrieve inquiry")
		return
	}

	c.JSON(http.StatusOK, inquiry)
}

// ListInquiries handles GET /v1/inquiry
func (h *RestInquiryHandler) ListInquiries(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	var statusPtr *models.InquiryStatus
	if statusStr := c.Query("status"); statusStr != "" {
		status := models.InquiryStatus(statusStr)
		statusPtr = &status
	}

	inquiries, err := h.inquiryService.ListInquiries(c.Request.Context(), actor, statusPtr, limit)
	if err != nil {
		writeError(c, err, "Failed to list inquiries")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": inquiries})
}

type respondRequest struct {
	Message    string `json:"message" binding:"required"`
	NextAction string `json:"next_action"`
}

// RespondToInquiry handles POST /v1/inquiry/:id/respond
func (h *RestInquiryHandler) RespondToInquiry(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	inquiryID, ok := parseInquiryID(c)
	if !ok {
		return
	}

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.RespondToInquiry(c.Request.Context(), actor, inquiryID, req.Message, req.NextAction)
	if err != nil {
		writeError(c, err, "Failed to record response")
		return
	}

	c.JSON(http.StatusOK, inquiry)
}

type scheduleViewingRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
	Notes         string    `json:"notes"`
}

// ScheduleViewing handles POST /v1/inquiry/:id/viewing
func (h *RestInquiryHandler) ScheduleViewing(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	inquiryID, ok := parseInquiryID(c)
	if !ok {
		return
	}

	var req scheduleViewingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.ScheduleViewing(c.Request.Context(), actor, inquiryID, req.ScheduledDate, req.Notes)
	if err != nil {
		writeError(c, err, "Failed to schedule viewing")
		return
	}

	c.JSON(http.StatusOK, inquiry)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /v1/inquiry/:id/status
func (h *RestInquiryHandler) UpdateStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	inquiryID, ok := parseInquiryID(c)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.UpdateStatus(c.Request.Context(), actor, inquiryID, models.InquiryStatus(req.Status))
	if err != nil {
		writeError(c, err, "Failed to update inquiry status")
		return
	}

	c.JSON(http.StatusOK, inquiry)
}

// MarkRead handles POST /v1/inquiry/:id/read
func (h *RestInquiryHandler) MarkRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	inquiryID, ok := parseInquiryID(c)
	if !ok {
		return
	}

	if err := h.inquiryService.MarkRead(c.Request.Context(), actor, inquiryID); err != nil {
		writeError(c, err, "Failed to mark inquiry read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type addCommunicationRequest struct {
	Channel   string `json:"channel"`
	Direction string `json:"direction" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

// AddCommunication handles POST /v1/inquiry/:id/communication
func (h *RestInquiryHandler) AddCommunication(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}
	inquiryID, ok := parseInquiryID(c)
	if !ok {
		return
	}

	var req addCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	inquiry, err := h.inquiryService.AddCommunication(c.Request.Context(), actor, inquiryID,
		models.ContactChannel(req.Channel), models.CommDirection(req.Direction), req.Message)
	if err != nil {
		writeError(c, err, "Failed to append communication")
		return
	}

	c.JSON(http.StatusOK, inquiry)
}
