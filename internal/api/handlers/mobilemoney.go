package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/service"
)

// MobileMoneyService is the push payment flow shared by MTN MoMo and Orange Money
type MobileMoneyService interface {
	RequestMobilePayment(ctx context.Context, p domain.Provider, req service.MobilePaymentRequest) (*service.MobilePaymentResult, error)
	PaymentStatus(ctx context.Context, p domain.Provider, transactionID string) (*service.PaymentStatusResult, error)
	CancelPayment(ctx context.Context, p domain.Provider, transactionID string) (*service.PaymentStatusResult, error)
}

// HandleRequestPayment handles POST /api/{provider}/request-payment
func HandleRequestPayment(svc MobileMoneyService, p domain.Provider, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.MobilePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: cart is required"})
			return
		}

		result, err := svc.RequestMobilePayment(c.Request.Context(), p, req)
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// HandlePaymentStatus handles GET /api/{provider}/payment-status/:transactionId
func HandlePaymentStatus(svc MobileMoneyService, p domain.Provider, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		transactionID := c.Param("transactionId")

		result, err := svc.PaymentStatus(c.Request.Context(), p, transactionID)
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// HandleCancelPayment handles POST /api/{provider}/cancel-payment
func HandleCancelPayment(svc MobileMoneyService, p domain.Provider, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CancelPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "transactionId is required"})
			return
		}

		result, err := svc.CancelPayment(c.Request.Context(), p, req.TransactionID)
		if err != nil {
			respondError(c, logger, "error", err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
