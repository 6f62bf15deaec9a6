package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// writeError translates a service error kind into an HTTP response.
// Unclassified errors are reported generically so internals do not leak.
func writeError(c *gin.Context, err error, fallbackMsg string) {
	switch services.KindOf(err) {
	case services.KindInvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case services.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case services.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case services.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case services.KindInvalidTransition, services.KindInvalidState:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case services.KindUnavailable:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallbackMsg})
	}
}
