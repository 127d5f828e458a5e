package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrAlreadyReviewed = errors.New("product already reviewed by this user")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
)

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest es el payload para publicar una reseña.
// swagger:model
type CreateRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

type Repository interface {
	Create(ctx context.Context, r *Review) error
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]Review, error)
	// Delete removes the user's own review; other users' reviews are
	// simply not found.
	Delete(ctx context.Context, id, userID string) (bool, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Create(ctx context.Context, rv *Review) error {
	if rv.Rating < 1 || rv.Rating > 5 {
		return ErrInvalidRating
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO reviews (id, product_id, user_id, rating, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW())
	`, rv.ID, rv.ProductID, rv.UserID, rv.Rating, rv.Comment)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrAlreadyReviewed
		case "23503":
			return fmt.Errorf("product does not exist")
		}
	}
	return err
}

func (r *PGRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]Review, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, product_id, user_id, rating, comment, created_at
		FROM reviews WHERE product_id=$1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, productID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *PGRepo) Delete(ctx context.Context, id, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
