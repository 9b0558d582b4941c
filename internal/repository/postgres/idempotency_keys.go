package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
)

type idempotencyKeyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIdempotencyKeyRepository creates a new idempotency key repository
func NewIdempotencyKeyRepository(db *sql.DB, logger *zap.Logger) *idempotencyKeyRepository {
	return &idempotencyKeyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *idempotencyKeyRepository) Reserve(ctx context.Context, key *domain.IdempotencyKey, expiredBefore time.Time) (*domain.IdempotencyKey, error) {
	key.CreatedAt = time.Now()

	// An expired record is overwritten in place; a live one makes the upsert a no-op
	// and RETURNING yields no row.
	query := `
		INSERT INTO idempotency_keys (route, idempotency_key, request_hash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (route, idempotency_key) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
			status_code = NULL,
			response_body = NULL,
			created_at = EXCLUDED.created_at,
			completed_at = NULL
		WHERE idempotency_keys.created_at < $5
		RETURNING route
	`

	var route string
	err := r.db.QueryRowContext(ctx, query, key.Route, key.Key, key.RequestHash, key.CreatedAt, expiredBefore).Scan(&route)
	if err == nil {
		return nil, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		r.logger.Error("Failed to reserve idempotency key", zap.Error(err))
		return nil, err
	}

	existing, err := r.get(ctx, key.Route, key.Key)
	if err != nil {
		r.logger.Error("Failed to load idempotency key", zap.Error(err))
		return nil, err
	}
	return existing, nil
}

func (r *idempotencyKeyRepository) get(ctx context.Context, route, key string) (*domain.IdempotencyKey, error) {
	query := `
		SELECT route, idempotency_key, request_hash, status_code, response_body, created_at
		FROM idempotency_keys
		WHERE route = $1 AND idempotency_key = $2
	`

	var (
		record     domain.IdempotencyKey
		statusCode sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, route, key).Scan(
		&record.Route,
		&record.Key,
		&record.RequestHash,
		&statusCode,
		&record.ResponseBody,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	record.StatusCode = int(statusCode.Int64)
	return &record, nil
}

func (r *idempotencyKeyRepository) Complete(ctx context.Context, route, key string, statusCode int, body []byte) error {
	query := `
		UPDATE idempotency_keys
		SET status_code = $3, response_body = $4, completed_at = NOW()
		WHERE route = $1 AND idempotency_key = $2
	`

	if _, err := r.db.ExecContext(ctx, query, route, key, statusCode, body); err != nil {
		r.logger.Error("Failed to store idempotent response", zap.Error(err))
		return err
	}
	return nil
}

func (r *idempotencyKeyRepository) Release(ctx context.Context, route, key string) error {
	query := `
		DELETE FROM idempotency_keys
		WHERE route = $1 AND idempotency_key = $2 AND status_code IS NULL
	`

	if _, err := r.db.ExecContext(ctx, query, route, key); err != nil {
		r.logger.Error("Failed to release idempotency key", zap.Error(err))
		return err
	}
	return nil
}
