package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jafarshop/checkoutapi/internal/config"
	"github.com/jafarshop/checkoutapi/internal/api/middleware"
	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/internal/service"
)

// recordingService answers every call with a fixed result and remembers the provider
type recordingService struct {
	provider domain.Provider
	expired  int64
	requests int
}

func (r *recordingService) CreatePayPalOrder(context.Context, service.CreatePayPalOrderRequest) (*service.PayPalOrderResult, error) {
	r.provider = domain.ProviderPayPal
	return &service.PayPalOrderResult{OrderID: "PP-1"}, nil
}

func (r *recordingService) CapturePayPalOrder(context.Context, string) (*service.CaptureResult, error) {
	r.provider = domain.ProviderPayPal
	return &service.CaptureResult{Success: true}, nil
}

func (r *recordingService) RequestMobilePayment(_ context.Context, p domain.Provider, _ service.MobilePaymentRequest) (*service.MobilePaymentResult, error) {
	r.provider = p
	r.requests++
	return &service.MobilePaymentResult{Success: true, TransactionID: fmt.Sprintf("tx-%d", r.requests)}, nil
}

func (r *recordingService) PaymentStatus(_ context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error) {
	r.provider = p
	return &service.PaymentStatusResult{Status: service.APIStatusPending, TransactionID: txID}, nil
}

func (r *recordingService) CancelPayment(_ context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error) {
	r.provider = p
	return &service.PaymentStatusResult{Status: service.APIStatusCancelled, TransactionID: txID}, nil
}

func (r *recordingService) ListOrders(context.Context, repository.OrderFilter) ([]*domain.Order, error) {
	return nil, nil
}

func (r *recordingService) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	return &domain.Order{ID: id}, nil
}

func (r *recordingService) ListPendingOrders(context.Context, repository.PendingOrderFilter) ([]*domain.PendingOrder, error) {
	return nil, nil
}

func (r *recordingService) ExpireStale(context.Context) (int64, error) {
	return r.expired, nil
}

func TestRouter_Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	assert.NoError(t, err)

	cfg := &config.Config{Environment: "test", Admin: config.AdminConfig{APIKeyHash: string(hash)}}
	svc := &recordingService{expired: 3}
	router := NewRouter(cfg, svc, nil, zap.NewNop())

	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		auth         string
		wantStatus   int
		wantProvider domain.Provider
	}{
		{"health", http.MethodGet, "/health", "", "", http.StatusOK, ""},
		{"paypal create", http.MethodPost, "/api/paypal/create-order", `{"cart":[]}`, "", http.StatusCreated, domain.ProviderPayPal},
		{"paypal capture", http.MethodPost, "/api/paypal/capture-order", `{"orderId":"PP-1"}`, "", http.StatusOK, domain.ProviderPayPal},
		{"mtn request", http.MethodPost, "/api/mtn-momo/request-payment", `{"cart":[]}`, "", http.StatusOK, domain.ProviderMTNMomo},
		{"mtn status", http.MethodGet, "/api/mtn-momo/payment-status/abc", "", "", http.StatusOK, domain.ProviderMTNMomo},
		{"orange status", http.MethodGet, "/api/orange-money/payment-status/ORANGE-1", "", "", http.StatusOK, domain.ProviderOrangeMoney},
		{"orange cancel", http.MethodPost, "/api/orange-money/cancel-payment", `{"transactionId":"ORANGE-1"}`, "", http.StatusOK, domain.ProviderOrangeMoney},
		{"unknown provider", http.MethodPost, "/api/wave/request-payment", `{"cart":[]}`, "", http.StatusNotFound, ""},
		{"admin without key", http.MethodGet, "/v1/admin/orders", "", "", http.StatusUnauthorized, ""},
		{"admin with key", http.MethodGet, "/v1/admin/orders", "", "Bearer secret", http.StatusOK, ""},
		{"admin expire", http.MethodPost, "/v1/admin/pending-orders/expire", "", "Bearer secret", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.provider = ""

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantProvider, svc.provider)
		})
	}
}

// keyStore keeps idempotency records in memory
type keyStore struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyKey
}

func (k *keyStore) Reserve(_ context.Context, key *domain.IdempotencyKey, _ time.Time) (*domain.IdempotencyKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if existing, ok := k.records[key.Route+key.Key]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *key
	k.records[key.Route+key.Key] = &copied
	return nil, nil
}

func (k *keyStore) Complete(_ context.Context, route, key string, statusCode int, body []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.records[route+key].StatusCode = statusCode
	k.records[route+key].ResponseBody = append([]byte(nil), body...)
	return nil
}

func (k *keyStore) Release(_ context.Context, route, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.records, route+key)
	return nil
}

func TestRouter_DoubleSubmittedPaymentRequestSendsOnePush(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := &recordingService{}
	keys := &keyStore{records: make(map[string]*domain.IdempotencyKey)}
	router := NewRouter(&config.Config{Environment: "test"}, svc, keys, zap.NewNop())

	submit := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"cart":[],"amount":2000}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.IdempotencyHeader, key)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	first := submit("/api/mtn-momo/request-payment", "checkout-42")
	second := submit("/api/mtn-momo/request-payment", "checkout-42")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(middleware.IdempotentReplayHeader))
	assert.Equal(t, 1, svc.requests)

	// keys are scoped per route
	third := submit("/api/orange-money/request-payment", "checkout-42")
	assert.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, 2, svc.requests)
}
