package catalog

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusInactive Status = "inactive"
)

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// We store prices as strings to avoid rounding errors (NUMERIC in Postgres)
	Price         string    `json:"price"`
	DiscountPrice *string   `json:"discount_price,omitempty"`
	Stock         int       `json:"stock"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the product can be added to carts and ordered.
func (p *Product) Active() bool { return p.Status == StatusActive }

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// HTTPError represents a standard error in JSON.
// swagger:model
type HTTPError struct {
	// Error message
	// example: not found
	Error string `json:"error"`
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	Q      string    `json:"q,omitempty"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
	Items  []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name          string   `json:"name"           example:"Mecanical Keyboard"`
	Description   string   `json:"description"    example:"RGB 60%"`
	Price         string   `json:"price"          example:"199.90"`
	DiscountPrice *string  `json:"discount_price" example:"149.90"`
	Stock         int      `json:"stock"          example:"10"`
	Status        string   `json:"status"         example:"active"`
	CategoryIDs   []string `json:"category_ids"`
}

// UpdateProductRequest payload of partial update.
// swagger:model UpdateProductRequest
type UpdateProductRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Price         string  `json:"price"`
	DiscountPrice *string `json:"discount_price"`
	Stock         *int    `json:"stock"`
	Status        string  `json:"status"`
}
