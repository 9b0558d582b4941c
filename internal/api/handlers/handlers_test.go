package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/internal/service"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockService struct {
	CreateFunc      func(ctx context.Context, req service.CreatePayPalOrderRequest) (*service.PayPalOrderResult, error)
	CaptureFunc     func(ctx context.Context, orderID string) (*service.CaptureResult, error)
	RequestFunc     func(ctx context.Context, p domain.Provider, req service.MobilePaymentRequest) (*service.MobilePaymentResult, error)
	StatusFunc      func(ctx context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error)
	CancelFunc      func(ctx context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error)
	ListOrdersFunc  func(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error)
	GetOrderFunc    func(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListPendingFunc func(ctx context.Context, filter repository.PendingOrderFilter) ([]*domain.PendingOrder, error)
	ExpireStaleFunc func(ctx context.Context) (int64, error)
}

func (m *mockService) CreatePayPalOrder(ctx context.Context, req service.CreatePayPalOrderRequest) (*service.PayPalOrderResult, error) {
	return m.CreateFunc(ctx, req)
}

func (m *mockService) CapturePayPalOrder(ctx context.Context, orderID string) (*service.CaptureResult, error) {
	return m.CaptureFunc(ctx, orderID)
}

func (m *mockService) RequestMobilePayment(ctx context.Context, p domain.Provider, req service.MobilePaymentRequest) (*service.MobilePaymentResult, error) {
	return m.RequestFunc(ctx, p, req)
}

func (m *mockService) PaymentStatus(ctx context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error) {
	return m.StatusFunc(ctx, p, txID)
}

func (m *mockService) CancelPayment(ctx context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error) {
	return m.CancelFunc(ctx, p, txID)
}

func (m *mockService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	return m.ListOrdersFunc(ctx, filter)
}

func (m *mockService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return m.GetOrderFunc(ctx, id)
}

func (m *mockService) ListPendingOrders(ctx context.Context, filter repository.PendingOrderFilter) ([]*domain.PendingOrder, error) {
	return m.ListPendingFunc(ctx, filter)
}

func (m *mockService) ExpireStale(ctx context.Context) (int64, error) {
	return m.ExpireStaleFunc(ctx)
}

func serve(t *testing.T, method, route, target string, body any, h gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	router := gin.New()
	router.Handle(method, route, h)

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func TestHandleCreatePayPalOrder(t *testing.T) {
	svc := &mockService{
		CreateFunc: func(_ context.Context, req service.CreatePayPalOrderRequest) (*service.PayPalOrderResult, error) {
			assert.NotNil(t, req.Cart)
			return &service.PayPalOrderResult{OrderID: "PP-1", Status: "CREATED", ApproveURL: "https://paypal.test/approve"}, nil
		},
	}

	w, body := serve(t, http.MethodPost, "/api/paypal/create-order", "/api/paypal/create-order",
		map[string]any{"cart": []any{map[string]any{"name": "Widget", "price": 1000, "quantity": 1}}},
		HandleCreatePayPalOrder(svc, zap.NewNop()))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PP-1", body["orderId"])
	assert.Equal(t, "https://paypal.test/approve", body["approveUrl"])
}

func TestHandleCreatePayPalOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		err        error
		wantStatus int
	}{
		{"missing cart", map[string]any{"billing": map[string]any{}}, nil, http.StatusBadRequest},
		{"malformed json", "{not json", nil, http.StatusBadRequest},
		{"validation", map[string]any{"cart": "x"}, &errors.ErrValidation{Field: "cart", Message: "must be a list"}, http.StatusBadRequest},
		{"not configured", map[string]any{"cart": []any{}}, &errors.ErrConfiguration{Provider: "paypal", Missing: []string{"client_id"}}, http.StatusServiceUnavailable},
		{"provider down", map[string]any{"cart": []any{}}, &errors.ErrProviderUnavailable{Provider: "paypal", Op: "create order"}, http.StatusBadGateway},
		{"already processed", map[string]any{"cart": []any{}}, &errors.ErrAlreadyProcessed{TransactionID: "PP-1", Status: "captured"}, http.StatusOK},
		{"unexpected", map[string]any{"cart": []any{}}, assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{
				CreateFunc: func(context.Context, service.CreatePayPalOrderRequest) (*service.PayPalOrderResult, error) {
					return nil, tt.err
				},
			}

			w, body := serve(t, http.MethodPost, "/create", "/create", tt.body, HandleCreatePayPalOrder(svc, zap.NewNop()))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestHandleCapturePayPalOrder(t *testing.T) {
	orderID := uuid.New()
	svc := &mockService{
		CaptureFunc: func(_ context.Context, id string) (*service.CaptureResult, error) {
			switch id {
			case "PP-ok":
				return &service.CaptureResult{Success: true, OrderID: &orderID, Status: domain.PendingStatusCaptured}, nil
			case "PP-rejected":
				return nil, &errors.ErrProviderRejected{Provider: "paypal", Op: "capture", StatusCode: 422, Message: "ORDER_NOT_APPROVED"}
			default:
				return nil, &errors.ErrNotFound{Resource: "pending order", ID: id}
			}
		},
	}
	core, logs := observer.New(zap.WarnLevel)
	h := HandleCapturePayPalOrder(svc, zap.New(core))

	w, body := serve(t, http.MethodPost, "/capture", "/capture", map[string]any{"orderId": "PP-ok"}, h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, orderID.String(), body["order_id"])

	w, body = serve(t, http.MethodPost, "/capture", "/capture", map[string]any{"orderId": "PP-rejected"}, h)
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "payment was declined by the provider", body["detail"])
	assert.Equal(t, false, body["retryable"])
	assert.NotContains(t, w.Body.String(), "ORDER_NOT_APPROVED")

	refusals := logs.FilterMessage("Payment refused by provider").All()
	require.Len(t, refusals, 1)
	assert.Equal(t, "ORDER_NOT_APPROVED", refusals[0].ContextMap()["provider_message"])

	w, _ = serve(t, http.MethodPost, "/capture", "/capture", map[string]any{"orderId": "PP-missing"}, h)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = serve(t, http.MethodPost, "/capture", "/capture", map[string]any{}, h)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRequestPayment_PassesProvider(t *testing.T) {
	var gotProvider domain.Provider
	svc := &mockService{
		RequestFunc: func(_ context.Context, p domain.Provider, req service.MobilePaymentRequest) (*service.MobilePaymentResult, error) {
			gotProvider = p
			assert.Equal(t, "671234567", req.PhoneNumber)
			return &service.MobilePaymentResult{Success: true, TransactionID: "ref-1", Message: "sent"}, nil
		},
	}

	w, body := serve(t, http.MethodPost, "/pay", "/pay",
		map[string]any{"cart": []any{}, "phoneNumber": "671234567", "amount": 2000},
		HandleRequestPayment(svc, domain.ProviderMTNMomo, zap.NewNop()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ProviderMTNMomo, gotProvider)
	assert.Equal(t, "ref-1", body["transactionId"])
	assert.Equal(t, true, body["success"])
}

func TestHandlePaymentStatus(t *testing.T) {
	svc := &mockService{
		StatusFunc: func(_ context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error) {
			assert.Equal(t, domain.ProviderOrangeMoney, p)
			if txID == "ORANGE-down" {
				return nil, &errors.ErrProviderUnavailable{Provider: "orange_money", Op: "poll status", Err: context.DeadlineExceeded}
			}
			return &service.PaymentStatusResult{Status: service.APIStatusPending, TransactionID: txID, Message: "waiting"}, nil
		},
	}
	h := HandlePaymentStatus(svc, domain.ProviderOrangeMoney, zap.NewNop())

	w, body := serve(t, http.MethodGet, "/status/:transactionId", "/status/ORANGE-1", "", h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "ORANGE-1", body["transactionId"])
	assert.NotContains(t, body, "orderId")

	w, body = serve(t, http.MethodGet, "/status/:transactionId", "/status/ORANGE-down", "", h)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, true, body["retryable"])
}

func TestHandleCancelPayment(t *testing.T) {
	svc := &mockService{
		CancelFunc: func(_ context.Context, p domain.Provider, txID string) (*service.PaymentStatusResult, error) {
			return &service.PaymentStatusResult{Status: service.APIStatusCancelled, TransactionID: txID}, nil
		},
	}
	h := HandleCancelPayment(svc, domain.ProviderMTNMomo, zap.NewNop())

	w, body := serve(t, http.MethodPost, "/cancel", "/cancel", map[string]any{"transactionId": "ref-2"}, h)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", body["status"])

	w, _ = serve(t, http.MethodPost, "/cancel", "/cancel", map[string]any{}, h)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleListOrders(t *testing.T) {
	txID := "PP-9"
	svc := &mockService{
		ListOrdersFunc: func(_ context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
			assert.Equal(t, domain.PaymentMethodPayPal, filter.PaymentMethod)
			assert.Equal(t, 10, filter.Limit)
			return []*domain.Order{{
				ID:            uuid.New(),
				Status:        domain.OrderStatusPaid,
				PaymentMethod: domain.PaymentMethodPayPal,
				PayPalOrderID: &txID,
				TotalCFA:      2000,
			}}, nil
		},
	}
	h := HandleListOrders(svc, zap.NewNop())

	w, body := serve(t, http.MethodGet, "/orders", "/orders?payment_method=paypal&limit=10", "", h)
	require.Equal(t, http.StatusOK, w.Code)
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "PP-9", orders[0].(map[string]any)["transaction_id"])

	w, _ = serve(t, http.MethodGet, "/orders", "/orders?status=shipped", "", h)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetOrder(t *testing.T) {
	id := uuid.New()
	svc := &mockService{
		GetOrderFunc: func(_ context.Context, got uuid.UUID) (*domain.Order, error) {
			if got != id {
				return nil, &errors.ErrNotFound{Resource: "order", ID: got.String()}
			}
			return &domain.Order{ID: id, Items: []domain.OrderItem{{Name: "Widget", UnitPrice: 1000, Quantity: 2}}}, nil
		},
	}
	h := HandleGetOrder(svc, zap.NewNop())

	w, body := serve(t, http.MethodGet, "/orders/:id", "/orders/"+id.String(), "", h)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["items"], 1)

	w, _ = serve(t, http.MethodGet, "/orders/:id", "/orders/"+uuid.NewString(), "", h)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = serve(t, http.MethodGet, "/orders/:id", "/orders/not-a-uuid", "", h)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
