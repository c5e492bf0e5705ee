package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"storefront/internal/db"
	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   db.DBTX
	logger *slog.Logger
}

func NewPostgres(pool db.DBTX, logger *slog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrDiscard(logger)}
}

const selectOrders = `
SELECT id::text, user_id, COALESCE(address_id::text, ''), address, subtotal, tax_amount, amount, currency,
       payment_method, status, payment_reference, payment_verified_at, created_at, updated_at
FROM orders
`

// Create inserts the order and its lines atomically.
func (r *postgresRepo) Create(ctx context.Context, o *domain.Order) error {
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertOrder = `
INSERT INTO orders (id, user_id, address_id, address, subtotal, tax_amount, amount, currency, payment_method, status, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`
	_, err = tx.Exec(ctx, insertOrder,
		o.ID,
		o.BuyerID,
		o.AddressID,
		addressJSON,
		o.Subtotal,
		o.TaxAmount,
		o.Amount,
		o.Currency,
		string(o.PaymentMethod),
		string(o.Status),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	const insertLine = `
INSERT INTO order_lines (order_id, line_no, product_id, name, unit_price, quantity, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	for i, l := range o.Lines {
		if _, err := tx.Exec(ctx, insertLine, o.ID, i+1, l.ProductID, l.Name, l.UnitPrice, l.Quantity, l.Subtotal); err != nil {
			return fmt.Errorf("insert order line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	r.logger.InfoContext(ctx, "order repo: created",
		slog.String("order_id", o.ID),
		slog.String("method", string(o.PaymentMethod)),
		slog.Int64("amount", o.Amount),
	)
	return nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	key, ok := db.UUID(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	o, err := scanOrder(r.pool.QueryRow(ctx, selectOrders+`WHERE id = $1::uuid`, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "order repo: get", slog.String("order_id", id), slog.Any("error", err))
		return nil, err
	}
	lines, err := r.loadLines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Lines = lines[o.ID]
	return &o, nil
}

func (r *postgresRepo) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return r.list(ctx, selectOrders+`WHERE user_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, selectOrders+`ORDER BY created_at DESC`)
}

// ConfirmPayment moves a Pending order to Confirmed and reports whether this
// call made the change. Unknown or malformed ids change nothing.
func (r *postgresRepo) ConfirmPayment(ctx context.Context, id, reference string, at time.Time) (bool, error) {
	key, ok := db.UUID(id)
	if !ok {
		return false, nil
	}
	const q = `
UPDATE orders
SET status = 'Confirmed',
    payment_reference = $2,
    payment_verified_at = $3,
    updated_at = $3
WHERE id = $1::uuid AND status = 'Pending'
`
	tag, err := r.pool.Exec(ctx, q, key, reference, at)
	if err != nil {
		r.logger.ErrorContext(ctx, "order repo: confirm", slog.String("order_id", id), slog.Any("error", err))
		return false, err
	}
	applied := tag.RowsAffected() == 1
	r.logger.InfoContext(ctx, "order repo: confirm", slog.String("order_id", id), slog.Bool("applied", applied))
	return applied, nil
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "order repo: list", slog.Any("error", err))
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return orders, nil
	}
	lines, err := r.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Lines = lines[orders[i].ID]
	}
	return orders, nil
}

func (r *postgresRepo) loadLines(ctx context.Context, orderIDs []string) (map[string][]domain.PricedLine, error) {
	const q = `
SELECT order_id::text, product_id, name, unit_price, quantity, subtotal
FROM order_lines
WHERE order_id = ANY($1::text[]::uuid[])
ORDER BY order_id, line_no
`
	rows, err := r.pool.Query(ctx, q, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.PricedLine, len(orderIDs))
	for rows.Next() {
		var (
			orderID string
			l       domain.PricedLine
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.Name, &l.UnitPrice, &l.Quantity, &l.Subtotal); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], l)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o           domain.Order
		addressJSON []byte
		method      string
		status      string
		reference   *string
	)
	err := row.Scan(
		&o.ID,
		&o.BuyerID,
		&o.AddressID,
		&addressJSON,
		&o.Subtotal,
		&o.TaxAmount,
		&o.Amount,
		&o.Currency,
		&method,
		&status,
		&reference,
		&o.PaymentVerifiedAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	if len(addressJSON) > 0 {
		if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
			return domain.Order{}, fmt.Errorf("unmarshal address for order %s: %w", o.ID, err)
		}
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.OrderStatus(status)
	if reference != nil {
		o.PaymentReference = *reference
	}
	return o, nil
}
