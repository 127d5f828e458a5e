package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	FindByUser(ctx context.Context, userID string) (*Cart, error)
	FindByGuest(ctx context.Context, token string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	Lines(ctx context.Context, cartID string) ([]Line, error)
	GetLine(ctx context.Context, cartID, productID string) (*Line, error)
	InsertLine(ctx context.Context, l *Line) error
	UpdateLineQuantity(ctx context.Context, cartID, productID string, quantity int) error
	DeleteLine(ctx context.Context, cartID, productID string) (bool, error)
	ClearLines(ctx context.Context, cartID string) error
	// Merge folds the guest cart identified by token into the user's cart
	// in one transaction, then retires the guest cart. A missing or empty
	// guest cart is a no-op.
	Merge(ctx context.Context, guestToken, userID string) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) findBy(ctx context.Context, col, val string) (*Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var c Cart
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, guest_token, created_at, updated_at
		FROM carts WHERE `+col+`=$1
	`, val).Scan(&c.ID, &c.UserID, &c.GuestToken, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, ErrCartNotFound
	}
	return &c, nil
}

func (r *PGRepo) FindByUser(ctx context.Context, userID string) (*Cart, error) {
	return r.findBy(ctx, "user_id", userID)
}

func (r *PGRepo) FindByGuest(ctx context.Context, token string) (*Cart, error) {
	return r.findBy(ctx, "guest_token", token)
}

func (r *PGRepo) Create(ctx context.Context, c *Cart) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO carts (id, user_id, guest_token, created_at, updated_at)
		VALUES ($1,$2,$3,NOW(),NOW())
	`, c.ID, c.UserID, c.GuestToken)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrCartExists
	}
	return err
}

func (r *PGRepo) Lines(ctx context.Context, cartID string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, cart_id, product_id, quantity, added_at
		FROM cart_lines WHERE cart_id=$1
		ORDER BY added_at, id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepo) GetLine(ctx context.Context, cartID, productID string) (*Line, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var l Line
	err := r.db.QueryRow(ctx, `
		SELECT id, cart_id, product_id, quantity, added_at
		FROM cart_lines WHERE cart_id=$1 AND product_id=$2
	`, cartID, productID).Scan(&l.ID, &l.CartID, &l.ProductID, &l.Quantity, &l.AddedAt)
	if err != nil {
		return nil, ErrLineNotFound
	}
	return &l, nil
}

func (r *PGRepo) InsertLine(ctx context.Context, l *Line) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_lines (id, cart_id, product_id, quantity, added_at)
		VALUES ($1,$2,$3,$4,NOW())
	`, l.ID, l.CartID, l.ProductID, l.Quantity)
	return err
}

func (r *PGRepo) UpdateLineQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE cart_lines SET quantity=$3, added_at=NOW()
		WHERE cart_id=$1 AND product_id=$2
	`, cartID, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (r *PGRepo) DeleteLine(ctx context.Context, cartID, productID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `
		DELETE FROM cart_lines WHERE cart_id=$1 AND product_id=$2
	`, cartID, productID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *PGRepo) ClearLines(ctx context.Context, cartID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id=$1`, cartID)
	return err
}

func (r *PGRepo) Merge(ctx context.Context, guestToken, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var guestCartID string
	err = tx.QueryRow(ctx, `SELECT id FROM carts WHERE guest_token=$1`, guestToken).Scan(&guestCartID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, quantity FROM cart_lines WHERE cart_id=$1 ORDER BY added_at, id
	`, guestCartID)
	if err != nil {
		return err
	}
	type guestLine struct {
		productID string
		quantity  int
	}
	var guestLines []guestLine
	for rows.Next() {
		var gl guestLine
		if err := rows.Scan(&gl.productID, &gl.quantity); err != nil {
			rows.Close()
			return err
		}
		guestLines = append(guestLines, gl)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(guestLines) == 0 {
		return nil
	}

	var userCartID string
	err = tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id=$1`, userID).Scan(&userCartID)
	if errors.Is(err, pgx.ErrNoRows) {
		userCartID = uuid.NewString()
		if _, err := tx.Exec(ctx, `
			INSERT INTO carts (id, user_id, created_at, updated_at) VALUES ($1,$2,NOW(),NOW())
		`, userCartID, userID); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	for _, gl := range guestLines {
		var stock int
		var status string
		err := tx.QueryRow(ctx, `
			SELECT stock, status FROM products WHERE id=$1
		`, gl.productID).Scan(&stock, &status)
		if errors.Is(err, pgx.ErrNoRows) {
			continue // withdrawn product in a stale guest cart
		}
		if err != nil {
			return err
		}
		if status != "active" {
			continue
		}
		capped := CappedQuantity(gl.quantity, stock)
		if capped < 1 {
			continue
		}

		var existing int
		err = tx.QueryRow(ctx, `
			SELECT quantity FROM cart_lines WHERE cart_id=$1 AND product_id=$2
		`, userCartID, gl.productID).Scan(&existing)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if _, err := tx.Exec(ctx, `
				INSERT INTO cart_lines (id, cart_id, product_id, quantity, added_at)
				VALUES ($1,$2,$3,$4,NOW())
			`, uuid.NewString(), userCartID, gl.productID, capped); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.Exec(ctx, `
				UPDATE cart_lines SET quantity=$3 WHERE cart_id=$1 AND product_id=$2
			`, userCartID, gl.productID, MergedQuantity(existing, gl.quantity, stock)); err != nil {
				return err
			}
		}
	}

	// The guest identity is retired for good: a new session mints a new token.
	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id=$1`, guestCartID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE id=$1`, guestCartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
