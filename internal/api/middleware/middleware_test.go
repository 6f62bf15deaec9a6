package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fahdi/pakpropertyapp-sub001/internal/auth"
	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
)

const testSecret = "test-secret-key"

func authedRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(testSecret))
	r.GET("/whoami", func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": actor.ID.Hex(), "role": string(actor.Role)})
	})
	return r
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	r := authedRouter(t)

	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}
	token, err := auth.GenerateJWT(actor, testSecret, time.Hour)
	require.NoError(t, err)

	req, _ := http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), actor.ID.Hex())
	assert.Contains(t, w.Body.String(), "owner")
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	r := authedRouter(t)

	// Missing header
	req, _ := http.NewRequest("GET", "/whoami", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Malformed header
	req, _ = http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "definitely-not-bearer")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong secret
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}
	token, err := auth.GenerateJWT(actor, "other-secret", time.Hour)
	require.NoError(t, err)
	req, _ = http.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManagerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	route := func(actor models.Actor) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set(ContextKeyActor, actor) })
		r.Use(ManagerMiddleware())
		r.GET("/managed", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	req, _ := http.NewRequest("GET", "/managed", nil)

	w := httptest.NewRecorder()
	route(models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	route(models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRateLimiter_HardLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		RateLimitSoftBucketSize: 100,
		RateLimitSoftRefillRate: 100,
		RateLimitHardBucketSize: 3,
		RateLimitHardRefillRate: 1,
	}
	rm := NewRateLimiterMiddleware(cfg)

	r := gin.New()
	r.Use(rm.Limit())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		req, _ := http.NewRequest("GET", "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	// First three pass through the hard bucket, the rest are cut off
	assert.Equal(t, []int{200, 200, 200, 429, 429}, codes)
}
