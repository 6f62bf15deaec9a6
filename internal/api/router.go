package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fahdi/pakpropertyapp-sub001/internal/api/handlers"
	"github.com/fahdi/pakpropertyapp-sub001/internal/api/middleware"
	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
	"github.com/fahdi/pakpropertyapp-sub001/internal/metrics"
	"github.com/fahdi/pakpropertyapp-sub001/internal/notify"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient *asynq.Client, m *metrics.InquiryMetrics, registry *prometheus.Registry) *gin.Engine {
	// Initialize services needed by API handlers here
	propertyService := services.NewPropertyService(db, cfg, m)
	idemStore := services.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
	dispatcher := notify.NewAsynqDispatcher(taskClient, m)
	inquiryService := services.NewInquiryService(db, cfg, propertyService, idemStore, dispatcher, m)

	r := gin.Default()

	// Initialize Middleware
	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	restInquiryHandler := handlers.NewRestInquiryHandler(inquiryService)
	restPropertyHandler := handlers.NewRestPropertyHandler(propertyService)

	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	{
		// Public Routes (rate limiting already applied globally)
		v1.GET("/property/:id/availability", restPropertyHandler.GetAvailability)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Authenticated Routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/inquiry", restInquiryHandler.CreateInquiry)
			authRequired.GET("/inquiry", restInquiryHandler.ListInquiries)
			authRequired.GET("/inquiry/:id", restInquiryHandler.GetInquiry)
			authRequired.POST("/inquiry/:id/communication", restInquiryHandler.AddCommunication)

			// Owner-side lifecycle operations
			managed := authRequired.Group("/")
			managed.Use(middleware.ManagerMiddleware())
			{
				managed.POST("/inquiry/:id/respond", restInquiryHandler.RespondToInquiry)
				managed.POST("/inquiry/:id/viewing", restInquiryHandler.ScheduleViewing)
				managed.PATCH("/inquiry/:id/status", restInquiryHandler.UpdateStatus)
				managed.POST("/inquiry/:id/read", restInquiryHandler.MarkRead)
				managed.PATCH("/property/:id/status", restPropertyHandler.SetStatus)
			}
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine.
// Requires the Redis client for the getTestNotification endpoint.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled or blocked.")
			}
		case "getTestNotification":
			var args []string // Expect ["event", "recipient"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [event, recipient]"})
				return
			}
			event := args[0]
			recipient := args[1]
			redisKey := fmt.Sprintf("mocknotify:%s:%s", recipient, event)

			// Poll Redis briefly for the key
			var notifyData string
			var getErr error
			found := false
			ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
			defer cancel()
			for i := 0; i < 10; i++ {
				notifyData, getErr = rdb.Get(ctx, redisKey).Result()
				if getErr == nil {
					found = true
					rdb.Del(ctx, redisKey)
					break
				}
				if getErr != redis.Nil {
					log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, getErr)
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
					return
				}
				time.Sleep(200 * time.Millisecond)
			}

			if !found {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test notification not found in Redis for key %s", redisKey)})
				return
			}

			var data map[string]interface{}
			if err := json.Unmarshal([]byte(notifyData), &data); err != nil {
				log.Printf("Service API: Error unmarshalling notification data from key %s: %v", redisKey, err)
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored notification data"})
				return
			}

			c.JSON(http.StatusOK, gin.H{"success": true, "data": data})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}
