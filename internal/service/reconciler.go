package service

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/provider"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

// Reconciliation is the state of a pending order after a provider result was applied
type Reconciliation struct {
	Status domain.PendingStatus
	Order  *domain.Order
	// Created reports whether this call materialized the order
	Created bool
}

// Reconciler applies normalized provider results to pending orders. It is the only
// writer of terminal statuses besides expiry.
type Reconciler struct {
	pending repository.PendingOrderRepository
	orders  repository.OrderRepository
	logger  *zap.Logger
}

func NewReconciler(repos *repository.Repositories, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		pending: repos.PendingOrder,
		orders:  repos.Order,
		logger:  logger,
	}
}

// Apply transitions pending according to result. A pending outcome changes nothing.
func (r *Reconciler) Apply(ctx context.Context, pending *domain.PendingOrder, result *provider.StatusResult) (*Reconciliation, error) {
	switch result.Outcome {
	case domain.OutcomeSuccessful:
		return r.finalize(ctx, pending, result)
	case domain.OutcomeFailed:
		return r.markTerminal(ctx, pending, domain.PendingStatusFailed, result)
	case domain.OutcomeCancelled:
		return r.markTerminal(ctx, pending, domain.PendingStatusCancelled, result)
	default:
		return &Reconciliation{Status: domain.PendingStatusPending}, nil
	}
}

func (r *Reconciler) finalize(ctx context.Context, pending *domain.PendingOrder, result *provider.StatusResult) (*Reconciliation, error) {
	status := domain.PendingStatusSuccessful
	if pending.Provider.RequiresCapture() {
		status = domain.PendingStatusCaptured
	}

	finalized, err := r.pending.Finalize(ctx, pending.Provider, pending.TransactionID, status, result.Raw)
	if err != nil {
		var already *errors.ErrAlreadyProcessed
		if stderrors.As(err, &already) {
			// Paid at the provider after the intent was closed locally; needs an operator.
			r.logger.Error("Provider reports success for a closed payment",
				zap.String("provider", string(pending.Provider)),
				zap.String("transaction_id", pending.TransactionID),
				zap.String("status", already.Status),
			)
			return &Reconciliation{Status: domain.PendingStatus(already.Status)}, nil
		}
		r.logger.Error("Failed to finalize payment",
			zap.String("provider", string(pending.Provider)),
			zap.String("transaction_id", pending.TransactionID),
			zap.Error(err),
		)
		return nil, err
	}

	if finalized.Created {
		r.logger.Info("Order created from payment",
			zap.String("provider", string(pending.Provider)),
			zap.String("transaction_id", pending.TransactionID),
			zap.String("order_id", finalized.Order.ID.String()),
			zap.Int64("total_cfa", finalized.Order.TotalCFA),
		)
	}

	return &Reconciliation{
		Status:  finalized.Pending.Status,
		Order:   finalized.Order,
		Created: finalized.Created,
	}, nil
}

func (r *Reconciler) markTerminal(ctx context.Context, pending *domain.PendingOrder, status domain.PendingStatus, result *provider.StatusResult) (*Reconciliation, error) {
	changed, err := r.pending.MarkTerminal(ctx, pending.Provider, pending.TransactionID, status, result.Raw)
	if err != nil {
		return nil, err
	}
	if changed {
		r.logger.Info("Payment closed",
			zap.String("provider", string(pending.Provider)),
			zap.String("transaction_id", pending.TransactionID),
			zap.String("status", string(status)),
			zap.String("provider_status", result.ProviderStatus),
		)
		return &Reconciliation{Status: status}, nil
	}

	// Someone else closed it first; report what is stored
	return r.Current(ctx, pending.Provider, pending.TransactionID)
}

// Current reads the stored state without contacting the provider
func (r *Reconciler) Current(ctx context.Context, p domain.Provider, transactionID string) (*Reconciliation, error) {
	current, err := r.pending.GetByTransaction(ctx, p, transactionID)
	if err != nil {
		return nil, err
	}

	reconciliation := &Reconciliation{Status: current.Status}
	if current.Status.IsPaid() {
		order, err := r.orders.GetByTransaction(ctx, p.PaymentMethod(), transactionID)
		if err != nil {
			return nil, err
		}
		reconciliation.Order = order
	}
	return reconciliation, nil
}
