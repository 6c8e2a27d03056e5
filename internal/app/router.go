package app

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"tuition/internal/handler"
	"tuition/internal/metrics"
	"tuition/internal/middleware"
	internalRedis "tuition/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	PaymentHandler *handler.PaymentHandler
	StudentHandler *handler.StudentHandler
	Credentials    *middleware.AdminCredentials
	ResponseCache  internalRedis.ResponseCacheInterface // nil disables idempotency
	LockStore      internalRedis.LockStoreInterface
	Metrics        *metrics.Metrics
	NewRelicApp    *newrelic.Application
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Payment Service is running")
	})

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// API v1 routes, admin only.
	v1 := router.Group("/v1")
	v1.Use(middleware.AdminAuthMiddleware(deps.Credentials, "tuition-payments"))
	if deps.ResponseCache != nil && deps.LockStore != nil {
		v1.Use(middleware.IdempotencyMiddleware(deps.ResponseCache, deps.LockStore, deps.Logger))
	}
	{
		// Payment routes.
		payments := v1.Group("/payments")
		{
			payments.POST("", deps.PaymentHandler.ProcessPayment)
			payments.GET("", deps.PaymentHandler.GetPayments)
			payments.GET("/:id", deps.PaymentHandler.GetPayment)
			payments.GET("/:id/receipt", deps.PaymentHandler.GetReceipt)
		}

		// Student routes.
		v1.GET("/students", deps.StudentHandler.GetAll)
	}

	return router
}
