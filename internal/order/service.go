package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/tienda-ecom/internal/address"
	"github.com/MikeMC777/tienda-ecom/internal/cart"
	"github.com/MikeMC777/tienda-ecom/internal/catalog"
	"github.com/MikeMC777/tienda-ecom/internal/events"
)

// CartSource is the slice of the cart repository placement needs.
type CartSource interface {
	FindByUser(ctx context.Context, userID string) (*cart.Cart, error)
	Lines(ctx context.Context, cartID string) ([]cart.Line, error)
}

type Service struct {
	orders    Repository
	carts     CartSource
	products  catalog.Reader
	addresses address.Repository
	discounts DiscountResolver
	pub       *events.Publisher
	log       zerolog.Logger
}

func NewService(orders Repository, carts CartSource, products catalog.Reader,
	addresses address.Repository, discounts DiscountResolver,
	pub *events.Publisher, log zerolog.Logger) *Service {
	if discounts == nil {
		discounts = NoDiscount{}
	}
	return &Service{
		orders:    orders,
		carts:     carts,
		products:  products,
		addresses: addresses,
		discounts: discounts,
		pub:       pub,
		log:       log,
	}
}

type PlaceInput struct {
	AddressID      string
	PaymentMethod  string
	DeliveryOption string
	CouponCode     string
}

// PlaceOrder converts the user's cart into an immutable order snapshot.
// Pricing and address are resolved here; the repository transaction is
// the consistency boundary for stock and cart clearing. On any failure
// nothing is retained: no partial stock decrement, no order, cart intact.
func (s *Service) PlaceOrder(ctx context.Context, userID string, in PlaceInput) (*Order, []Line, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if errors.Is(err, cart.ErrCartNotFound) {
		return nil, nil, ErrEmptyCart
	}
	if err != nil {
		return nil, nil, err
	}
	cartLines, err := s.carts.Lines(ctx, c.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(cartLines) == 0 {
		return nil, nil, ErrEmptyCart
	}

	orderID := uuid.NewString()
	subtotal := decimal.Zero
	lines := make([]Line, 0, len(cartLines))
	for _, cl := range cartLines {
		p, err := s.products.GetByID(ctx, cl.ProductID)
		if err != nil {
			return nil, nil, err
		}
		// advisory; the conditional decrement in CreatePlaced re-checks
		if p.Stock < cl.Quantity {
			return nil, nil, &catalog.StockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
		}
		lineSub := p.UnitPrice().Mul(decimal.NewFromInt(int64(cl.Quantity))).Round(2)
		subtotal = subtotal.Add(lineSub)
		lines = append(lines, Line{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  cl.Quantity,
			UnitPrice: p.UnitPrice().StringFixed(2),
			Discount:  p.UnitDiscount().StringFixed(2),
		})
	}

	shipping := ShippingFee(in.DeliveryOption)
	discount, err := s.discounts.Resolve(ctx, in.CouponCode, subtotal)
	if err != nil {
		return nil, nil, err
	}
	total := subtotal.Add(shipping).Sub(discount)

	addr, err := s.addresses.GetByID(ctx, in.AddressID, userID)
	if err != nil {
		return nil, nil, err
	}
	snap := SnapshotOf(addr)

	o := &Order{
		ID:              orderID,
		UserID:          userID,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		PaymentMethod:   in.PaymentMethod,
		DeliveryOption:  in.DeliveryOption,
		CouponCode:      in.CouponCode,
		Subtotal:        subtotal.StringFixed(2),
		ShippingFee:     shipping.StringFixed(2),
		Discount:        discount.StringFixed(2),
		Total:           total.StringFixed(2),
		ShippingAddress: snap,
		BillingAddress:  snap,
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		o.OrderNumber = NewNumber(time.Now())
		err = s.orders.CreatePlaced(ctx, o, lines, c.ID)
		if !errors.Is(err, errNumberTaken) {
			break
		}
	}
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.OrderCreated, o)
	return o, lines, nil
}

// Cancel flips a pending order to cancelled and restores its stock.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.Cancel(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderCancelled, o)
	return o, nil
}

// UpdateStatus applies an admin-driven transition after validating it
// against the state machine. No stock side effects here.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, raw string) (*Order, error) {
	next, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}
	o, _, err := s.orders.GetByID(ctx, orderID, "")
	if err != nil {
		return nil, err
	}
	if next == StatusCancelled {
		// cancellation carries a compensating restock, own path only
		return nil, ErrInvalidState
	}
	if !o.Status.CanTransition(next) {
		return nil, ErrInvalidState
	}
	if err := s.orders.UpdateStatus(ctx, orderID, next); err != nil {
		return nil, err
	}
	o.Status = next
	return o, nil
}

// MarkPaid is the webhook relay path; trusts the caller already verified
// the gateway signature.
func (s *Service) MarkPaid(ctx context.Context, orderNumber, providerRef, amount string) (*Order, error) {
	o, err := s.orders.MarkPaid(ctx, orderNumber, providerRef, amount)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderPaid, o)
	return o, nil
}

func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, []Line, error) {
	return s.orders.GetByID(ctx, orderID, userID)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) publish(ctx context.Context, eventType string, o *Order) {
	if s.pub == nil {
		return
	}
	err := s.pub.Publish(ctx, o.ID, events.OrderEvent{
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Total:       o.Total,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		s.log.Warn().Err(err).Str("order_id", o.ID).Str("event", eventType).Msg("event publish failed")
	}
}
