package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/provider"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

type memoryStore struct {
	mu      sync.Mutex
	pending map[string]*domain.PendingOrder
	orders  map[uuid.UUID]*domain.Order
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		pending: make(map[string]*domain.PendingOrder),
		orders:  make(map[uuid.UUID]*domain.Order),
	}
}

func (m *memoryStore) repositories() *repository.Repositories {
	return &repository.Repositories{
		PendingOrder: &memoryPendingRepo{m},
		Order:        &memoryOrderRepo{m},
	}
}

func pendingKey(p domain.Provider, txID string) string {
	return string(p) + "|" + txID
}

func (m *memoryStore) orderByTransaction(method domain.PaymentMethod, txID string) *domain.Order {
	for _, o := range m.orders {
		if o.PaymentMethod == method && o.TransactionID() == txID {
			return o
		}
	}
	return nil
}

func (m *memoryStore) countOrders() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memoryStore) countPending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *memoryStore) status(p domain.Provider, txID string) domain.PendingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pending, ok := m.pending[pendingKey(p, txID)]; ok {
		return pending.Status
	}
	return ""
}

type memoryPendingRepo struct{ m *memoryStore }

func (r *memoryPendingRepo) Create(_ context.Context, pending *domain.PendingOrder) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	key := pendingKey(pending.Provider, pending.TransactionID)
	if _, ok := r.m.pending[key]; ok {
		return &errors.ErrAlreadyProcessed{TransactionID: pending.TransactionID, Status: string(pending.Status)}
	}
	pending.ID = uuid.New()
	pending.CreatedAt = time.Now()
	pending.UpdatedAt = pending.CreatedAt
	stored := *pending
	r.m.pending[key] = &stored
	return nil
}

func (r *memoryPendingRepo) GetByTransaction(_ context.Context, p domain.Provider, txID string) (*domain.PendingOrder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	pending, ok := r.m.pending[pendingKey(p, txID)]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "pending order", ID: txID}
	}
	copied := *pending
	return &copied, nil
}

func (r *memoryPendingRepo) Finalize(_ context.Context, p domain.Provider, txID string, status domain.PendingStatus, raw json.RawMessage) (*repository.FinalizeResult, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	pending, ok := r.m.pending[pendingKey(p, txID)]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "pending order", ID: txID}
	}

	existing := r.m.orderByTransaction(p.PaymentMethod(), txID)
	if pending.Status.IsTerminal() {
		if existing == nil {
			return nil, &errors.ErrAlreadyProcessed{TransactionID: txID, Status: string(pending.Status)}
		}
		copied := *pending
		return &repository.FinalizeResult{Pending: &copied, Order: existing}, nil
	}

	result := &repository.FinalizeResult{Order: existing}
	if existing == nil {
		order := domain.NewOrderFromPending(pending)
		order.ID = uuid.New()
		r.m.orders[order.ID] = order
		result.Order = order
		result.Created = true
	}
	pending.Status = status
	if len(raw) > 0 {
		pending.ProviderResponse = raw
	}
	copied := *pending
	result.Pending = &copied
	return result, nil
}

func (r *memoryPendingRepo) MarkTerminal(_ context.Context, p domain.Provider, txID string, status domain.PendingStatus, raw json.RawMessage) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	pending, ok := r.m.pending[pendingKey(p, txID)]
	if !ok || pending.Status != domain.PendingStatusPending {
		return false, nil
	}
	pending.Status = status
	if len(raw) > 0 {
		pending.ProviderResponse = raw
	}
	return true, nil
}

func (r *memoryPendingRepo) ExpireStale(_ context.Context, createdBefore time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var n int64
	for _, pending := range r.m.pending {
		if pending.Status == domain.PendingStatusPending && pending.CreatedAt.Before(createdBefore) {
			pending.Status = domain.PendingStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *memoryPendingRepo) List(_ context.Context, filter repository.PendingOrderFilter) ([]*domain.PendingOrder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*domain.PendingOrder
	for _, pending := range r.m.pending {
		if filter.Provider != "" && pending.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && pending.Status != filter.Status {
			continue
		}
		copied := *pending
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

type memoryOrderRepo struct{ m *memoryStore }

func (r *memoryOrderRepo) Create(_ context.Context, order *domain.Order) (uuid.UUID, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if r.m.orderByTransaction(order.PaymentMethod, order.TransactionID()) != nil {
		return uuid.Nil, &errors.ErrAlreadyProcessed{TransactionID: order.TransactionID()}
	}
	order.ID = uuid.New()
	r.m.orders[order.ID] = order
	return order.ID, nil
}

func (r *memoryOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	order, ok := r.m.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	return order, nil
}

func (r *memoryOrderRepo) GetByTransaction(_ context.Context, method domain.PaymentMethod, txID string) (*domain.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	order := r.m.orderByTransaction(method, txID)
	if order == nil {
		return nil, &errors.ErrNotFound{Resource: "order", ID: txID}
	}
	return order, nil
}

func (r *memoryOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []*domain.Order
	for _, order := range r.m.orders {
		if filter.PaymentMethod != "" && order.PaymentMethod != filter.PaymentMethod {
			continue
		}
		out = append(out, order)
	}
	return out, nil
}

// fakeProvider scripts provider answers and counts calls
type fakeProvider struct {
	mu sync.Mutex

	name       domain.Provider
	initiate   *provider.InitiateResult
	initErr    error
	capture    *provider.StatusResult
	captureErr error
	poll       *provider.StatusResult
	pollErr    error

	lastInitiate provider.InitiateRequest
	initCalls    int
	captureCalls int
	pollCalls    int
}

func (f *fakeProvider) Name() domain.Provider { return f.name }

func (f *fakeProvider) Authenticate(context.Context) (string, error) { return "token", nil }

func (f *fakeProvider) Initiate(_ context.Context, req provider.InitiateRequest) (*provider.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	f.lastInitiate = req
	if f.initErr != nil {
		return nil, f.initErr
	}
	return f.initiate, nil
}

func (f *fakeProvider) Capture(context.Context, string) (*provider.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captureCalls++
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	if f.capture == nil {
		return nil, errors.ErrUnsupportedOperation
	}
	return f.capture, nil
}

func (f *fakeProvider) PollStatus(context.Context, string) (*provider.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollCalls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.poll == nil {
		return nil, errors.ErrUnsupportedOperation
	}
	return f.poll, nil
}

func (f *fakeProvider) calls() (initiate, capture, poll int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initCalls, f.captureCalls, f.pollCalls
}
