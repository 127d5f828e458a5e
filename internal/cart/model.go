package cart

import (
	"errors"
	"time"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrCartExists      = errors.New("cart already exists for identity")
	ErrLineNotFound    = errors.New("cart line not found")
	ErrInvalidIdentity = errors.New("cart identity requires a user id or a guest token")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Identity names the owner of a cart: an authenticated user id, or an
// opaque client-held guest token. When both are present the authenticated
// identity wins and the guest token is ignored; folding a guest cart into
// a user cart only ever happens through the explicit Merge call.
type Identity struct {
	UserID     string
	GuestToken string
}

func (id Identity) valid() bool { return id.UserID != "" || id.GuestToken != "" }

type Cart struct {
	ID         string    `json:"id"`
	UserID     *string   `json:"user_id,omitempty"`
	GuestToken *string   `json:"guest_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Line is a (product, quantity) pair. productId is unique within a cart:
// re-adding a product grows the existing line instead of duplicating it.
type Line struct {
	ID        string    `json:"id"`
	CartID    string    `json:"cart_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}
