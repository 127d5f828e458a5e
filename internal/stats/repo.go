package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Overview son los agregados del panel de administración.
type Overview struct {
	TotalOrders   int    `json:"total_orders"`
	PendingOrders int    `json:"pending_orders"`
	TotalRevenue  string `json:"total_revenue"` // excludes cancelled orders
	TotalUsers    int    `json:"total_users"`
}

type TopProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Revenue   string `json:"revenue"`
}

type Repository interface {
	Overview(ctx context.Context) (*Overview, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Overview(ctx context.Context) (*Overview, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var o Overview
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM orders WHERE status = 'pending'),
			(SELECT COALESCE(SUM(total), 0)::text FROM orders WHERE status <> 'cancelled'),
			(SELECT COUNT(*) FROM users)
	`).Scan(&o.TotalOrders, &o.PendingOrders, &o.TotalRevenue, &o.TotalUsers)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 50 {
		limit = 10
	}
	rows, err := r.db.Query(ctx, `
		SELECT ol.product_id, ol.name,
		       SUM(ol.quantity)::int,
		       SUM(ol.unit_price * ol.quantity)::text
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.status <> 'cancelled'
		GROUP BY ol.product_id, ol.name
		ORDER BY SUM(ol.quantity) DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TopProduct{}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.Quantity, &tp.Revenue); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}
