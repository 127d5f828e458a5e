// Package address is the user-scoped address book. Orders copy addresses
// by value at placement time; nothing here is ever referenced live from an
// order.
package address

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("address not found")

type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Label      string    `json:"label,omitempty"`
	Recipient  string    `json:"recipient"`
	Phone      string    `json:"phone"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	Region     string    `json:"region,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Repository interface {
	Create(ctx context.Context, a *Address) error
	// GetByID only resolves addresses owned by userID; anything else is
	// NotFound, never a permission error that would leak existence.
	GetByID(ctx context.Context, id, userID string) (*Address, error)
	ListByUser(ctx context.Context, userID string) ([]Address, error)
	Update(ctx context.Context, a *Address) error
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

const cols = `id, user_id, label, recipient, phone, line1, line2, city, region, postal_code, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, a *Address) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO addresses (id, user_id, label, recipient, phone, line1, line2, city, region, postal_code, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW(),NOW())
	`, a.ID, a.UserID, a.Label, a.Recipient, a.Phone, a.Line1, a.Line2, a.City, a.Region, a.PostalCode)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id, userID string) (*Address, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var a Address
	err := r.db.QueryRow(ctx, `
		SELECT `+cols+` FROM addresses WHERE id=$1 AND user_id=$2
	`, id, userID).Scan(&a.ID, &a.UserID, &a.Label, &a.Recipient, &a.Phone,
		&a.Line1, &a.Line2, &a.City, &a.Region, &a.PostalCode, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Address, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+cols+` FROM addresses WHERE user_id=$1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.UserID, &a.Label, &a.Recipient, &a.Phone,
			&a.Line1, &a.Line2, &a.City, &a.Region, &a.PostalCode, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, a *Address) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE addresses
		SET label=$3, recipient=$4, phone=$5, line1=$6, line2=$7, city=$8, region=$9, postal_code=$10, updated_at=NOW()
		WHERE id=$1 AND user_id=$2
	`, a.ID, a.UserID, a.Label, a.Recipient, a.Phone, a.Line1, a.Line2, a.City, a.Region, a.PostalCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM addresses WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
