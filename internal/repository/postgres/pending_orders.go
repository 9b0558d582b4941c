package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

const pendingColumns = `id, provider, transaction_id, cart_snapshot, billing_snapshot, total_cfa,
	amount_value, currency, payer_phone, status, provider_response, created_at, updated_at`

type pendingOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPendingOrderRepository creates a new pending order repository
func NewPendingOrderRepository(db *sql.DB, logger *zap.Logger) *pendingOrderRepository {
	return &pendingOrderRepository{
		db:     db,
		logger: logger,
	}
}

func (r *pendingOrderRepository) Create(ctx context.Context, pending *domain.PendingOrder) error {
	cartJSON, err := json.Marshal(pending.CartSnapshot)
	if err != nil {
		return fmt.Errorf("marshal cart snapshot: %w", err)
	}
	billingJSON, err := json.Marshal(pending.BillingSnapshot)
	if err != nil {
		return fmt.Errorf("marshal billing snapshot: %w", err)
	}

	now := time.Now()
	if pending.ID == uuid.Nil {
		pending.ID = uuid.New()
	}
	if pending.Status == "" {
		pending.Status = domain.PendingStatusPending
	}
	pending.CreatedAt = now
	pending.UpdatedAt = now

	query := `
		INSERT INTO pending_orders (` + pendingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		pending.ID,
		pending.Provider,
		pending.TransactionID,
		string(cartJSON),
		string(billingJSON),
		pending.TotalCFA,
		pending.AmountValue,
		pending.Currency,
		nullString(pending.PayerPhone),
		pending.Status,
		nullJSON(pending.ProviderResponse),
		pending.CreatedAt,
		pending.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &errors.ErrAlreadyProcessed{TransactionID: pending.TransactionID, Status: string(pending.Status)}
		}
		r.logger.Error("Failed to create pending order", zap.Error(err))
		return err
	}

	return nil
}

func (r *pendingOrderRepository) GetByTransaction(ctx context.Context, provider domain.Provider, transactionID string) (*domain.PendingOrder, error) {
	pending, err := getPending(ctx, r.db, provider, transactionID, false)
	if err != nil {
		var notFound *errors.ErrNotFound
		if !stderrors.As(err, &notFound) {
			r.logger.Error("Failed to get pending order", zap.Error(err))
		}
		return nil, err
	}
	return pending, nil
}

func (r *pendingOrderRepository) Finalize(ctx context.Context, provider domain.Provider, transactionID string, status domain.PendingStatus, providerResponse json.RawMessage) (*repository.FinalizeResult, error) {
	if !status.IsPaid() {
		return nil, &errors.ErrInvalidStateTransition{From: domain.PendingStatusPending, To: status}
	}

	result, err := r.finalizeTx(ctx, provider, transactionID, status, providerResponse)
	if err == nil {
		return result, nil
	}

	// A concurrent writer inserted the order first; the unique index kept the ledger
	// consistent and the committed state is the answer.
	if isUniqueViolation(err) {
		r.logger.Warn("Order already materialized concurrently",
			zap.String("provider", string(provider)),
			zap.String("transaction_id", transactionID),
		)
		pending, getErr := getPending(ctx, r.db, provider, transactionID, false)
		if getErr != nil {
			return nil, getErr
		}
		order, getErr := getOrderByTransaction(ctx, r.db, provider.PaymentMethod(), transactionID)
		if getErr != nil {
			return nil, getErr
		}
		return &repository.FinalizeResult{Pending: pending, Order: order}, nil
	}

	return nil, err
}

func (r *pendingOrderRepository) finalizeTx(ctx context.Context, provider domain.Provider, transactionID string, status domain.PendingStatus, providerResponse json.RawMessage) (result *repository.FinalizeResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	pending, err := getPending(ctx, tx, provider, transactionID, true)
	if err != nil {
		return nil, err
	}

	existing, err := getOrderByTransaction(ctx, tx, provider.PaymentMethod(), transactionID)
	var notFound *errors.ErrNotFound
	if err != nil && !stderrors.As(err, &notFound) {
		return nil, err
	}
	err = nil

	if pending.Status.IsTerminal() {
		if existing == nil {
			return nil, &errors.ErrAlreadyProcessed{TransactionID: transactionID, Status: string(pending.Status)}
		}
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return &repository.FinalizeResult{Pending: pending, Order: existing}, nil
	}

	result = &repository.FinalizeResult{Pending: pending, Order: existing}
	if existing == nil {
		order := domain.NewOrderFromPending(pending)
		if err = insertOrder(ctx, tx, order); err != nil {
			return nil, err
		}
		result.Order = order
		result.Created = true
	}

	now := time.Now()
	query := `
		UPDATE pending_orders
		SET status = $3, provider_response = COALESCE($4, provider_response), updated_at = $5
		WHERE provider = $1 AND transaction_id = $2
	`
	if _, err = tx.ExecContext(ctx, query, provider, transactionID, status, nullJSON(providerResponse), now); err != nil {
		return nil, fmt.Errorf("update pending order status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	pending.Status = status
	pending.UpdatedAt = now
	if len(providerResponse) > 0 {
		pending.ProviderResponse = providerResponse
	}

	return result, nil
}

func (r *pendingOrderRepository) MarkTerminal(ctx context.Context, provider domain.Provider, transactionID string, status domain.PendingStatus, providerResponse json.RawMessage) (bool, error) {
	if !domain.PendingStatusPending.CanTransitionTo(status) || status.IsPaid() {
		return false, &errors.ErrInvalidStateTransition{From: domain.PendingStatusPending, To: status}
	}

	query := `
		UPDATE pending_orders
		SET status = $3, provider_response = COALESCE($4, provider_response), updated_at = NOW()
		WHERE provider = $1 AND transaction_id = $2 AND status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query, provider, transactionID, status, nullJSON(providerResponse))
	if err != nil {
		r.logger.Error("Failed to mark pending order", zap.String("status", string(status)), zap.Error(err))
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *pendingOrderRepository) ExpireStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	query := `
		UPDATE pending_orders
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
	`

	res, err := r.db.ExecContext(ctx, query, createdBefore)
	if err != nil {
		r.logger.Error("Failed to expire pending orders", zap.Error(err))
		return 0, err
	}
	return res.RowsAffected()
}

func (r *pendingOrderRepository) List(ctx context.Context, filter repository.PendingOrderFilter) ([]*domain.PendingOrder, error) {
	var conditions []string
	var args []any

	if filter.Provider != "" {
		args = append(args, filter.Provider)
		conditions = append(conditions, fmt.Sprintf("provider = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + pendingColumns + ` FROM pending_orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list pending orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var pendings []*domain.PendingOrder
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			r.logger.Error("Failed to scan pending order", zap.Error(err))
			return nil, err
		}
		pendings = append(pendings, pending)
	}
	return pendings, rows.Err()
}

func getPending(ctx context.Context, q querier, provider domain.Provider, transactionID string, forUpdate bool) (*domain.PendingOrder, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_orders WHERE provider = $1 AND transaction_id = $2`
	if forUpdate {
		query += " FOR UPDATE"
	}

	pending, err := scanPending(q.QueryRowContext(ctx, query, provider, transactionID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "pending order", ID: transactionID}
	}
	if err != nil {
		return nil, fmt.Errorf("get pending order: %w", err)
	}
	return pending, nil
}

func scanPending(row rowScanner) (*domain.PendingOrder, error) {
	var pending domain.PendingOrder
	var cartJSON, billingJSON, providerResponse []byte
	var payerPhone sql.NullString

	err := row.Scan(
		&pending.ID,
		&pending.Provider,
		&pending.TransactionID,
		&cartJSON,
		&billingJSON,
		&pending.TotalCFA,
		&pending.AmountValue,
		&pending.Currency,
		&payerPhone,
		&pending.Status,
		&providerResponse,
		&pending.CreatedAt,
		&pending.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(cartJSON, &pending.CartSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal cart snapshot: %w", err)
	}
	if err := json.Unmarshal(billingJSON, &pending.BillingSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal billing snapshot: %w", err)
	}
	if payerPhone.Valid {
		pending.PayerPhone = payerPhone.String
	}
	if len(providerResponse) > 0 {
		pending.ProviderResponse = json.RawMessage(providerResponse)
	}
	return &pending, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullJSON converts an optional payload into a JSONB parameter
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return string(raw)
}
