package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/tienda-ecom/internal/catalog"
)

type Repository interface {
	// CreatePlaced persists the order snapshot, decrements stock and
	// clears the cart in one transaction. A decrement that would cross
	// zero aborts everything with a *catalog.StockError.
	CreatePlaced(ctx context.Context, o *Order, lines []Line, cartID string) error
	GetByID(ctx context.Context, id, userID string) (*Order, []Line, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	// Cancel flips a pending order to cancelled and restores stock for
	// every line, atomically.
	Cancel(ctx context.Context, id, userID string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	// MarkPaid records a gateway confirmation; repeated webhooks for the
	// same order are idempotent.
	MarkPaid(ctx context.Context, orderNumber, providerRef, amount string) (*Order, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const orderCols = `id, order_number, user_id, status, payment_status, payment_method,
	delivery_option, coupon_code, subtotal::text, shipping_fee::text, discount::text, total::text,
	shipping_address, billing_address, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var shipRaw, billRaw []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.DeliveryOption, &o.CouponCode, &o.Subtotal, &o.ShippingFee,
		&o.Discount, &o.Total, &shipRaw, &billRaw, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipRaw, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billRaw, &o.BillingAddress); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) CreatePlaced(ctx context.Context, o *Order, lines []Line, cartID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	shipRaw, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	billRaw, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, payment_status, payment_method,
			delivery_option, coupon_code, subtotal, shipping_fee, discount, total,
			shipping_address, billing_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW(),NOW())
	`, o.ID, o.OrderNumber, o.UserID, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.DeliveryOption, o.CouponCode, o.Subtotal, o.ShippingFee, o.Discount, o.Total,
		shipRaw, billRaw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errNumberTaken
		}
		return err
	}

	for _, l := range lines {
		// Conditional decrement is the authoritative stock gate: zero
		// rows affected means the advisory cart-time checks were stale.
		tag, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $2, updated_at = NOW()
			WHERE id = $1 AND stock >= $2
		`, l.ProductID, l.Quantity)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var name string
			var stock int
			if err := tx.QueryRow(ctx, `
				SELECT name, stock FROM products WHERE id=$1
			`, l.ProductID).Scan(&name, &stock); err != nil {
				return catalog.ErrNotFound
			}
			return &catalog.StockError{ProductID: l.ProductID, Name: name, Available: stock}
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO order_lines (id, order_id, product_id, name, quantity, unit_price, discount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, l.ID, o.ID, l.ProductID, l.Name, l.Quantity, l.UnitPrice, l.Discount); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id=$1`, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PGRepo) getLines(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, orderID string) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, name, quantity, unit_price::text, discount::text
		FROM order_lines WHERE order_id=$1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice, &l.Discount); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetByID(ctx context.Context, id, userID string) (*Order, []Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders WHERE id=$1 AND ($2 = '' OR user_id=$2)
	`, id, userID))
	if err != nil {
		return nil, nil, ErrNotFound
	}
	lines, err := r.getLines(ctx, r.db, id)
	if err != nil {
		return nil, nil, err
	}
	return o, lines, nil
}

func (r *PGRepo) GetByNumber(ctx context.Context, number string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders WHERE order_number=$1
	`, number))
	if err != nil {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+orderCols+` FROM orders WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (r *PGRepo) Cancel(ctx context.Context, id, userID string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE
	`, id, userID))
	if err != nil {
		return nil, ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidState)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, StatusCancelled); err != nil {
		return nil, err
	}

	lines, err := r.getLines(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		// exact inverse of placement's decrement
		if _, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1
		`, l.ProductID, l.Quantity); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	o.Status = StatusCancelled
	return o, nil
}

func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) MarkPaid(ctx context.Context, orderNumber, providerRef, amount string) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := scanOrder(tx.QueryRow(ctx, `
		SELECT `+orderCols+` FROM orders WHERE order_number=$1 FOR UPDATE
	`, orderNumber))
	if err != nil {
		return nil, ErrNotFound
	}
	if o.PaymentStatus == PaymentPaid {
		return o, nil // duplicate webhook delivery
	}

	newStatus := o.Status
	if o.Status == StatusPending {
		newStatus = StatusConfirmed
	}
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET payment_status=$2, status=$3, updated_at=NOW() WHERE id=$1
	`, o.ID, PaymentPaid, newStatus); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, provider_ref, amount, status, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
	`, uuid.NewString(), o.ID, providerRef, amount, "paid"); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	o.PaymentStatus = PaymentPaid
	o.Status = newStatus
	return o, nil
}
