package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/pkg/errors"
)

// respondError writes err under key ("error" or "detail") with the matching status code.
// Unexpected errors and provider refusal texts are logged and hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, key string, err error) {
	var (
		validation   *errors.ErrValidation
		configErr    *errors.ErrConfiguration
		unavailable  *errors.ErrProviderUnavailable
		rejected     *errors.ErrProviderRejected
		notFound     *errors.ErrNotFound
		already      *errors.ErrAlreadyProcessed
		transition   *errors.ErrInvalidStateTransition
		unauthorized *errors.ErrUnauthorized
	)

	switch {
	case stderrors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{key: validation.Error()})
	case stderrors.As(err, &configErr):
		logger.Error("Payment provider not configured", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{key: "payment provider is not configured"})
	case stderrors.As(err, &unavailable):
		logger.Warn("Payment provider unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{key: "payment provider unavailable, please retry", "retryable": errors.IsRetryable(err)})
	case stderrors.As(err, &rejected):
		logger.Warn("Payment refused by provider",
			zap.String("provider", rejected.Provider),
			zap.String("op", rejected.Op),
			zap.Int("status_code", rejected.StatusCode),
			zap.String("provider_message", rejected.Message),
		)
		c.JSON(http.StatusPaymentRequired, gin.H{key: "payment was declined by the provider", "retryable": errors.IsRetryable(err)})
	case stderrors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{key: notFound.Error()})
	case stderrors.As(err, &already):
		c.JSON(http.StatusOK, gin.H{key: already.Error(), "status": already.Status})
	case stderrors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{key: err.Error()})
	case stderrors.Is(err, errors.ErrUnsupportedOperation):
		c.JSON(http.StatusBadRequest, gin.H{key: err.Error()})
	case stderrors.As(err, &unauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{key: unauthorized.Error()})
	default:
		logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{key: "internal error"})
	}
}
