package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/checkoutapi/internal/domain"
)

// Repositories groups the stores used by the service layer
type Repositories struct {
	PendingOrder   PendingOrderRepository
	Order          OrderRepository
	IdempotencyKey IdempotencyKeyRepository
}

// PendingOrderFilter narrows admin listings; zero values mean "any"
type PendingOrderFilter struct {
	Provider domain.Provider
	Status   domain.PendingStatus
	Limit    int
	Offset   int
}

// OrderFilter narrows ledger listings; zero values mean "any"
type OrderFilter struct {
	PaymentMethod domain.PaymentMethod
	Status        domain.OrderStatus
	Limit         int
	Offset        int
}

// FinalizeResult is the outcome of a successful transition
type FinalizeResult struct {
	Pending *domain.PendingOrder
	Order   *domain.Order
	// Created is false when the order already existed for this transaction
	Created bool
}

type PendingOrderRepository interface {
	Create(ctx context.Context, pending *domain.PendingOrder) error
	GetByTransaction(ctx context.Context, provider domain.Provider, transactionID string) (*domain.PendingOrder, error)
	// Finalize moves a pending order to a paid status and materializes its Order in
	// one transaction. Calling it again for the same transaction returns the existing Order.
	Finalize(ctx context.Context, provider domain.Provider, transactionID string, status domain.PendingStatus, providerResponse json.RawMessage) (*FinalizeResult, error)
	// MarkTerminal applies a non-paid terminal status. It only affects rows still
	// pending and reports whether a row changed.
	MarkTerminal(ctx context.Context, provider domain.Provider, transactionID string, status domain.PendingStatus, providerResponse json.RawMessage) (bool, error)
	ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error)
	List(ctx context.Context, filter PendingOrderFilter) ([]*domain.PendingOrder, error)
}

type OrderRepository interface {
	// Create writes an order and its items atomically and returns the order id.
	// Payment flows never call it: orders are only materialized by
	// PendingOrderRepository.Finalize, in the same transaction as the status change.
	// It exists for direct ledger writes such as imports and fixtures.
	Create(ctx context.Context, order *domain.Order) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByTransaction(ctx context.Context, method domain.PaymentMethod, transactionID string) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
}

type IdempotencyKeyRepository interface {
	// Reserve claims key.Route and key.Key for a new request. When a live record
	// already exists it is returned instead and nothing is written. Records created
	// before expiredBefore are replaced.
	Reserve(ctx context.Context, key *domain.IdempotencyKey, expiredBefore time.Time) (*domain.IdempotencyKey, error)
	// Complete stores the response to replay for later requests with the same key
	Complete(ctx context.Context, route, key string, statusCode int, body []byte) error
	// Release drops a reservation that has no stored response, so the client may retry
	Release(ctx context.Context, route, key string) error
}
