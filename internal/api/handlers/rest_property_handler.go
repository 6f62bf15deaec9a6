package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// RestPropertyHandler handles REST requests for the listing directory's
// inquiry-facing surface.
type RestPropertyHandler struct {
	propertyService services.IPropertyService
}

// NewRestPropertyHandler creates a new RestPropertyHandler.
func NewRestPropertyHandler(propertyService services.IPropertyService) *RestPropertyHandler {
	return &RestPropertyHandler{propertyService: propertyService}
}

// GetAvailability handles GET /v1/property/:id/availability
func (h *RestPropertyHandler) GetAvailability(c *gin.Context) {
	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	availability, err := h.propertyService.GetPropertyAvailability(c.Request.Context(), propertyID)
	if err != nil {
		writeError(c, err, "Failed to retrieve property availability")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    availability.Status,
		"available": availability.Status == models.PropertyAvailable,
	})
}

type setPropertyStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus handles PATCH /v1/property/:id/status
func (h *RestPropertyHandler) SetStatus(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	propertyID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	var req setPropertyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	if err := h.propertyService.SetPropertyStatus(c.Request.Context(), actor, propertyID, models.PropertyStatus(req.Status)); err != nil {
		writeError(c, err, "Failed to update property status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
