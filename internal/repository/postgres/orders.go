package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/repository"
	"github.com/jafarshop/checkoutapi/pkg/errors"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const orderColumns = `id, email, first_name, last_name, address, city, country, zip_code, phone,
	total_cfa, status, payment_method, paypal_order_id, mtn_transaction_id, orange_transaction_id,
	created_at, updated_at`

type orderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrderRepository creates a new order ledger repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) (uuid.UUID, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, order); err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, &errors.ErrAlreadyProcessed{TransactionID: order.TransactionID(), Status: string(order.Status)}
		}
		r.logger.Error("Failed to create order", zap.Error(err))
		return uuid.Nil, err
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit order: %w", err)
	}
	return order.ID, nil
}

// insertOrder writes the order row and one row per item using q
func insertOrder(ctx context.Context, q querier, order *domain.Order) error {
	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := q.ExecContext(ctx, query,
		order.ID,
		order.Email,
		order.FirstName,
		order.LastName,
		order.Address,
		order.City,
		order.Country,
		order.ZipCode,
		order.Phone,
		order.TotalCFA,
		order.Status,
		order.PaymentMethod,
		order.PayPalOrderID,
		order.MTNTransactionID,
		order.OrangeTransactionID,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, position, product_id, name, unit_price, quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = uuid.New()
		item.OrderID = order.ID
		item.CreatedAt = now

		if _, err := q.ExecContext(ctx, itemQuery,
			item.ID,
			item.OrderID,
			i,
			item.ProductID,
			item.Name,
			item.UnitPrice,
			item.Quantity,
			item.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Error(err))
		return nil, err
	}

	if order.Items, err = loadItems(ctx, r.db, order.ID); err != nil {
		r.logger.Error("Failed to load order items", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetByTransaction(ctx context.Context, method domain.PaymentMethod, transactionID string) (*domain.Order, error) {
	order, err := getOrderByTransaction(ctx, r.db, method, transactionID)
	if err != nil {
		return nil, err
	}
	if order.Items, err = loadItems(ctx, r.db, order.ID); err != nil {
		r.logger.Error("Failed to load order items", zap.Error(err))
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]*domain.Order, error) {
	var conditions []string
	var args []any

	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		conditions = append(conditions, fmt.Sprintf("payment_method = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			r.logger.Error("Failed to scan order", zap.Error(err))
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// transactionColumn maps a payment method to the column holding its provider id
func transactionColumn(method domain.PaymentMethod) (string, error) {
	switch method {
	case domain.PaymentMethodPayPal:
		return "paypal_order_id", nil
	case domain.PaymentMethodMTNMomo:
		return "mtn_transaction_id", nil
	case domain.PaymentMethodOrangeMoney:
		return "orange_transaction_id", nil
	default:
		return "", fmt.Errorf("payment method %q has no provider transaction id", method)
	}
}

func getOrderByTransaction(ctx context.Context, q querier, method domain.PaymentMethod, transactionID string) (*domain.Order, error) {
	column, err := transactionColumn(method)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`
	order, err := scanOrder(q.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, &errors.ErrNotFound{Resource: "order", ID: transactionID}
	}
	if err != nil {
		return nil, fmt.Errorf("get order by transaction: %w", err)
	}
	return order, nil
}

func loadItems(ctx context.Context, q querier, orderID uuid.UUID) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY position
	`

	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		var productID sql.NullInt64

		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&productID,
			&item.Name,
			&item.UnitPrice,
			&item.Quantity,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			item.ProductID = &productID.Int64
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var paypalID, mtnID, orangeID sql.NullString

	err := row.Scan(
		&order.ID,
		&order.Email,
		&order.FirstName,
		&order.LastName,
		&order.Address,
		&order.City,
		&order.Country,
		&order.ZipCode,
		&order.Phone,
		&order.TotalCFA,
		&order.Status,
		&order.PaymentMethod,
		&paypalID,
		&mtnID,
		&orangeID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if paypalID.Valid {
		order.PayPalOrderID = &paypalID.String
	}
	if mtnID.Valid {
		order.MTNTransactionID = &mtnID.String
	}
	if orangeID.Valid {
		order.OrangeTransactionID = &orangeID.String
	}
	return &order, nil
}

func paginate(query string, args []any, limit, offset int) (string, []any) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	return query + fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
