package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
)

const (
	IdempotencyHeader       = "Idempotency-Key"
	IdempotentReplayHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLength = 255
	idempotencyRetention    = 24 * time.Hour
)

// IdempotencyMiddleware replays the stored response when a request carries an
// Idempotency-Key already seen on the same route. Requests without the header pass
// through. 5xx answers are not stored, so the client can retry with the same key.
func IdempotencyMiddleware(keys repository.IdempotencyKeyRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key is too long"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		record := &domain.IdempotencyKey{
			Route:       c.FullPath(),
			Key:         key,
			RequestHash: hex.EncodeToString(sum[:]),
		}

		existing, err := keys.Reserve(c.Request.Context(), record, time.Now().Add(-idempotencyRetention))
		if err != nil {
			// Don't fail the request if idempotency storage fails
			logger.Warn("Idempotency check skipped", zap.String("route", record.Route), zap.Error(err))
			c.Next()
			return
		}

		if existing != nil {
			replay(c, existing, record.RequestHash, logger)
			return
		}

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Next()

		// the client may already be gone; the record must still be settled
		ctx := context.WithoutCancel(c.Request.Context())
		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			if err := keys.Release(ctx, record.Route, record.Key); err != nil {
				logger.Warn("Failed to release idempotency key", zap.String("route", record.Route), zap.Error(err))
			}
			return
		}
		if err := keys.Complete(ctx, record.Route, record.Key, status, recorder.body.Bytes()); err != nil {
			logger.Warn("Failed to store idempotent response", zap.String("route", record.Route), zap.Error(err))
		}
	}
}

func replay(c *gin.Context, existing *domain.IdempotencyKey, requestHash string, logger *zap.Logger) {
	switch {
	case existing.RequestHash != requestHash:
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency-Key was already used with a different request"})
	case !existing.Completed():
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this Idempotency-Key is in progress", "retryable": true})
	default:
		logger.Info("Replaying idempotent response",
			zap.String("route", existing.Route),
			zap.Int("status", existing.StatusCode),
		)
		c.Header(IdempotentReplayHeader, "true")
		c.Data(existing.StatusCode, "application/json; charset=utf-8", existing.ResponseBody)
		c.Abort()
	}
}

// responseRecorder keeps a copy of everything the handler writes
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
