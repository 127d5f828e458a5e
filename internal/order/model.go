package order

import (
	"errors"
	"time"

	"github.com/MikeMC777/tienda-ecom/internal/address"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrEmptyCart    = errors.New("cart is empty")
	ErrInvalidState = errors.New("operation not allowed for current order status")

	// unique order_number collision, retried with a fresh number
	errNumberTaken = errors.New("order number already taken")
)

// Order is immutable after placement except for status and payment_status.
// Line items, addresses and totals are snapshots frozen at placement time;
// later catalog or address changes never affect a historical order.
type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	PaymentMethod   string          `json:"payment_method"`
	DeliveryOption  string          `json:"delivery_option"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	Subtotal        string          `json:"subtotal"`
	ShippingFee     string          `json:"shipping_fee"`
	Discount        string          `json:"discount"`
	Total           string          `json:"total"`
	ShippingAddress AddressSnapshot `json:"shipping_address"`
	BillingAddress  AddressSnapshot `json:"billing_address"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type Line struct {
	ID        string `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	// per-unit discount (list price minus sale price) at placement time
	Discount string `json:"discount"`
}

type AddressSnapshot struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// SnapshotOf copies an address by value. No separate billing address
// support: the same snapshot lands in both fields.
func SnapshotOf(a *address.Address) AddressSnapshot {
	return AddressSnapshot{
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
	}
}

// Payment records a gateway confirmation, written by the webhook relay.
type Payment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	ProviderRef string    `json:"provider_ref"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// PlaceOrderRequest payload de creación de orden.
// swagger:model PlaceOrderRequest
type PlaceOrderRequest struct {
	AddressID      string `json:"address_id" binding:"required"`
	PaymentMethod  string `json:"payment_method" binding:"required" example:"card"`
	DeliveryOption string `json:"delivery_option" example:"normal"`
	CouponCode     string `json:"coupon_code"`
}
