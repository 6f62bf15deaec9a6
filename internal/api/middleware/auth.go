package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fahdi/pakpropertyapp-sub001/internal/auth"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
)

const (
	// ContextKeyActor holds the key for the authenticated actor in Gin context.
	ContextKeyActor = "actor"
)

// AuthMiddleware creates a Gin middleware for JWT authentication. On
// success the resolved actor (id + role) is stored in the context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		actor, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		c.Set(ContextKeyActor, *actor)
		c.Next()
	}
}

// ActorFromContext returns the authenticated actor set by AuthMiddleware.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(ContextKeyActor)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// ManagerMiddleware restricts a route to listing-managing roles (owner,
// agent, admin). Assumes AuthMiddleware runs first.
func ManagerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok || !actor.Role.ManagesListings() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Listing management privileges required"})
			return
		}
		c.Next()
	}
}
