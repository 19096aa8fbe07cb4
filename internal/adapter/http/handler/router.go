package handler

import (
	"tourist-tax-engine/internal/adapter/http/middleware"
	redisStore "tourist-tax-engine/internal/adapter/storage/redis"
	"tourist-tax-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LifecycleSvc   ports.ReservationLifecycleService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(64 << 10)) // 64 KB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// --- Reservations ---
	reservationHandler := NewReservationHandler(deps.LifecycleSvc)
	reservations := v1.Group("/reservations")
	{
		reservations.POST("", rl("reservations"), reservationHandler.Create)
		reservations.GET("/:id", reservationHandler.Get)
		reservations.GET("", jwtAuth, reservationHandler.List)
		reservations.DELETE("/:id", jwtAuth, reservationHandler.Delete)
	}

	// --- Payments + webhooks ---
	paymentHandler := NewPaymentHandler(deps.LifecycleSvc)
	payments := v1.Group("/payments")
	{
		payments.POST("", rl("payments"), paymentHandler.Create)
		payments.GET("/:id", paymentHandler.Get)
		payments.GET("/:id/status", paymentHandler.Get)
		payments.POST("/webhooks", rl("webhooks"), paymentHandler.Webhook)
	}

	return r
}
