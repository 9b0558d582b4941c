package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/service"
)

// PayPalService is the redirect + capture flow used by the PayPal handlers
type PayPalService interface {
	CreatePayPalOrder(ctx context.Context, req service.CreatePayPalOrderRequest) (*service.PayPalOrderResult, error)
	CapturePayPalOrder(ctx context.Context, orderID string) (*service.CaptureResult, error)
}

// HandleCreatePayPalOrder handles POST /api/paypal/create-order
func HandleCreatePayPalOrder(svc PayPalService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreatePayPalOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: cart is required"})
			return
		}

		result, err := svc.CreatePayPalOrder(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, "detail", err)
			return
		}

		c.JSON(http.StatusCreated, result)
	}
}

// HandleCapturePayPalOrder handles POST /api/paypal/capture-order
func HandleCapturePayPalOrder(svc PayPalService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CapturePayPalOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "orderId is required"})
			return
		}

		result, err := svc.CapturePayPalOrder(c.Request.Context(), req.OrderID)
		if err != nil {
			respondError(c, logger, "detail", err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
