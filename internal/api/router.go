package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/api/handlers"
	"github.com/jafarshop/checkoutapi/internal/api/middleware"
	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
)

// CheckoutService is everything the HTTP surface needs from the service layer
type CheckoutService interface {
	handlers.PayPalService
	handlers.MobileMoneyService
	handlers.AdminService
}

// mobileMoneyRoutes maps URL prefixes onto push payment providers
var mobileMoneyRoutes = map[string]domain.Provider{
	"mtn-momo":     domain.ProviderMTNMomo,
	"orange-money": domain.ProviderOrangeMoney,
}

// NewRouter creates and configures the Gin router. Routes that start a payment honor
// Idempotency-Key when keys is set.
func NewRouter(cfg *config.Config, svc CheckoutService, keys repository.IdempotencyKeyRepository, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	idempotent := func(c *gin.Context) { c.Next() }
	if keys != nil {
		idempotent = middleware.IdempotencyMiddleware(keys, logger)
	}

	// Storefront payment routes
	storefront := router.Group("/api")
	{
		paypal := storefront.Group("/paypal")
		paypal.POST("/create-order", idempotent, handlers.HandleCreatePayPalOrder(svc, logger))
		paypal.POST("/capture-order", handlers.HandleCapturePayPalOrder(svc, logger))

		for prefix, p := range mobileMoneyRoutes {
			group := storefront.Group("/" + prefix)
			group.POST("/request-payment", idempotent, handlers.HandleRequestPayment(svc, p, logger))
			group.GET("/payment-status/:transactionId", handlers.HandlePaymentStatus(svc, p, logger))
			group.POST("/cancel-payment", handlers.HandleCancelPayment(svc, p, logger))
		}
	}

	// API v1 routes
	v1 := router.Group("/v1")
	{
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.AdminAuth(cfg.Admin.APIKeyHash, logger))
		{
			adminRoutes.GET("/orders", handlers.HandleListOrders(svc, logger))
			adminRoutes.GET("/orders/:id", handlers.HandleGetOrder(svc, logger))
			adminRoutes.GET("/pending-orders", handlers.HandleListPendingOrders(svc, logger))
			adminRoutes.POST("/pending-orders/expire", handlers.HandleExpirePendingOrders(svc, logger))
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= 500 {
			logger.Error("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
