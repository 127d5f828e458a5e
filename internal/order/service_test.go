package order

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/tienda-ecom/internal/address"
	"github.com/MikeMC777/tienda-ecom/internal/cart"
	"github.com/MikeMC777/tienda-ecom/internal/catalog"
)

//
// ===== in-memory stubs =====
//

type stubCatalog struct {
	products map[string]*catalog.Product
}

func (s *stubCatalog) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type stubCarts struct {
	cart  *cart.Cart
	lines []cart.Line
}

func (s *stubCarts) FindByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	if s.cart == nil || s.cart.UserID == nil || *s.cart.UserID != userID {
		return nil, cart.ErrCartNotFound
	}
	return s.cart, nil
}

func (s *stubCarts) Lines(ctx context.Context, cartID string) ([]cart.Line, error) {
	return append([]cart.Line(nil), s.lines...), nil
}

type stubAddresses struct {
	addrs map[string]*address.Address // keyed by id, owner in the value
}

func (s *stubAddresses) GetByID(ctx context.Context, id, userID string) (*address.Address, error) {
	a, ok := s.addrs[id]
	if !ok || a.UserID != userID {
		return nil, address.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *stubAddresses) Create(ctx context.Context, a *address.Address) error { return nil }
func (s *stubAddresses) ListByUser(ctx context.Context, userID string) ([]address.Address, error) {
	return nil, nil
}
func (s *stubAddresses) Update(ctx context.Context, a *address.Address) error { return nil }
func (s *stubAddresses) Delete(ctx context.Context, id, userID string) (bool, error) {
	return false, nil
}

// stubOrders keeps its own stock ledger, separate from the catalog stub,
// so tests can model stock moving between the advisory check and the
// commit. CreatePlaced mirrors the PG repo's all-or-nothing behavior.
type stubOrders struct {
	stocks      map[string]int
	carts       *stubCarts
	orders      map[string]*Order
	lines       map[string][]Line
	payments    []Payment
	failNumbers int // first N CreatePlaced calls report a number collision
	attempts    []string
}

func newStubOrders(carts *stubCarts, stocks map[string]int) *stubOrders {
	return &stubOrders{
		stocks: stocks,
		carts:  carts,
		orders: map[string]*Order{},
		lines:  map[string][]Line{},
	}
}

func (s *stubOrders) CreatePlaced(ctx context.Context, o *Order, lines []Line, cartID string) error {
	s.attempts = append(s.attempts, o.OrderNumber)
	if s.failNumbers > 0 {
		s.failNumbers--
		return errNumberTaken
	}
	// check every line before mutating anything
	for _, l := range lines {
		if s.stocks[l.ProductID] < l.Quantity {
			return &catalog.StockError{ProductID: l.ProductID, Name: l.Name, Available: s.stocks[l.ProductID]}
		}
	}
	for _, l := range lines {
		s.stocks[l.ProductID] -= l.Quantity
	}
	cp := *o
	s.orders[o.ID] = &cp
	s.lines[o.ID] = append([]Line(nil), lines...)
	s.carts.lines = nil
	return nil
}

func (s *stubOrders) GetByID(ctx context.Context, id, userID string) (*Order, []Line, error) {
	o, ok := s.orders[id]
	if !ok || (userID != "" && o.UserID != userID) {
		return nil, nil, ErrNotFound
	}
	cp := *o
	return &cp, s.lines[id], nil
}

func (s *stubOrders) GetByNumber(ctx context.Context, number string) (*Order, error) {
	for _, o := range s.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *stubOrders) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrders) Cancel(ctx context.Context, id, userID string) (*Order, error) {
	o, ok := s.orders[id]
	if !ok || o.UserID != userID {
		return nil, ErrNotFound
	}
	if o.Status != StatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidState)
	}
	o.Status = StatusCancelled
	for _, l := range s.lines[id] {
		s.stocks[l.ProductID] += l.Quantity
	}
	cp := *o
	return &cp, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, id string, status Status) error {
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *stubOrders) MarkPaid(ctx context.Context, orderNumber, providerRef, amount string) (*Order, error) {
	for _, o := range s.orders {
		if o.OrderNumber != orderNumber {
			continue
		}
		if o.PaymentStatus == PaymentPaid {
			cp := *o
			return &cp, nil
		}
		o.PaymentStatus = PaymentPaid
		if o.Status == StatusPending {
			o.Status = StatusConfirmed
		}
		s.payments = append(s.payments, Payment{OrderID: o.ID, ProviderRef: providerRef, Amount: amount, Status: "paid"})
		cp := *o
		return &cp, nil
	}
	return nil, ErrNotFound
}

//
// ===== fixtures =====
//

type fixture struct {
	svc    *Service
	orders *stubOrders
	carts  *stubCarts
	cat    *stubCatalog
}

func strptr(s string) *string { return &s }

func newFixture(products []*catalog.Product, cartLines []cart.Line) *fixture {
	uid := "u1"
	carts := &stubCarts{
		cart:  &cart.Cart{ID: "c1", UserID: &uid},
		lines: cartLines,
	}
	cat := &stubCatalog{products: map[string]*catalog.Product{}}
	stocks := map[string]int{}
	for _, p := range products {
		cat.products[p.ID] = p
		stocks[p.ID] = p.Stock
	}
	orders := newStubOrders(carts, stocks)
	addrs := &stubAddresses{addrs: map[string]*address.Address{
		"a1": {ID: "a1", UserID: "u1", Recipient: "Ana", Phone: "555", Line1: "Calle 1", City: "CDMX"},
	}}
	svc := NewService(orders, carts, cat, addrs, nil, nil, zerolog.Nop())
	return &fixture{svc: svc, orders: orders, carts: carts, cat: cat}
}

//
// ===== tests =====
//

func TestPlaceOrderHappyPath(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "Producto A", Price: "50.00", DiscountPrice: strptr("40.00"), Stock: 10, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 2}},
	)

	o, lines, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{
		AddressID: "a1", PaymentMethod: "card", DeliveryOption: "normal",
	})
	require.NoError(t, err)

	require.Equal(t, "80.00", o.Subtotal)
	require.Equal(t, "120.00", o.ShippingFee)
	require.Equal(t, "0.00", o.Discount)
	require.Equal(t, "200.00", o.Total)
	require.Equal(t, StatusPending, o.Status)
	require.Equal(t, PaymentPending, o.PaymentStatus)
	require.Contains(t, o.OrderNumber, "ORD-")

	require.Len(t, lines, 1)
	require.Equal(t, "40.00", lines[0].UnitPrice)
	require.Equal(t, "10.00", lines[0].Discount) // list minus sale, frozen

	require.Equal(t, 8, f.orders.stocks["A"])
	require.Empty(t, f.carts.lines) // cart emptied in the same transaction

	// address copied by value into both snapshots
	require.Equal(t, "Ana", o.ShippingAddress.Recipient)
	require.Equal(t, o.ShippingAddress, o.BillingAddress)
}

func TestPlaceOrderExpressShipping(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "A", Price: "10.00", Stock: 5, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 1}},
	)
	o, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{
		AddressID: "a1", PaymentMethod: "card", DeliveryOption: DeliveryExpress,
	})
	require.NoError(t, err)
	require.Equal(t, "180.00", o.ShippingFee)
	require.Equal(t, "190.00", o.Total)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "Producto A", Price: "10.00", Stock: 3, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 5}},
	)

	_, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	var se *catalog.StockError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "A", se.ProductID)
	require.Equal(t, 3, se.Available)

	require.Equal(t, 3, f.orders.stocks["A"]) // untouched
	require.Len(t, f.carts.lines, 1)          // cart intact
	require.Equal(t, 5, f.carts.lines[0].Quantity)
	require.Empty(t, f.orders.orders)
}

func TestPlaceOrderAtomicAcrossLines(t *testing.T) {
	t.Parallel()
	// catalog still reports stock for B, but the transactional ledger is
	// short: the advisory check passes and the commit-time gate rejects.
	f := newFixture(
		[]*catalog.Product{
			{ID: "A", Name: "A", Price: "10.00", Stock: 10, Status: catalog.StatusActive},
			{ID: "B", Name: "B", Price: "20.00", Stock: 10, Status: catalog.StatusActive},
			{ID: "C", Name: "C", Price: "30.00", Stock: 10, Status: catalog.StatusActive},
		},
		[]cart.Line{
			{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 2},
			{ID: "l2", CartID: "c1", ProductID: "B", Quantity: 4},
			{ID: "l3", CartID: "c1", ProductID: "C", Quantity: 1},
		},
	)
	f.orders.stocks["B"] = 1 // depleted concurrently

	_, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	var se *catalog.StockError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "B", se.ProductID)

	// nothing committed: earlier lines' stock unaffected, no order row
	require.Equal(t, 10, f.orders.stocks["A"])
	require.Equal(t, 10, f.orders.stocks["C"])
	require.Empty(t, f.orders.orders)
	require.Len(t, f.carts.lines, 3)
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	t.Parallel()
	f := newFixture([]*catalog.Product{}, nil)
	_, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.ErrorIs(t, err, ErrEmptyCart)

	// no cart at all behaves the same
	f.carts.cart = nil
	_, _, err = f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrderAddressOwnership(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "A", Price: "10.00", Stock: 5, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 1}},
	)
	_, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "missing", PaymentMethod: "card"})
	require.ErrorIs(t, err, address.ErrNotFound)
	require.Empty(t, f.orders.orders)
}

func TestPlaceOrderNumberRetry(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "A", Price: "10.00", Stock: 5, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 1}},
	)
	f.orders.failNumbers = 2

	o, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.NoError(t, err)
	require.Len(t, f.orders.attempts, 3)
	require.Equal(t, f.orders.attempts[2], o.OrderNumber)
}

func TestCancelRestocks(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{
			{ID: "A", Name: "A", Price: "10.00", Stock: 10, Status: catalog.StatusActive},
			{ID: "B", Name: "B", Price: "20.00", Stock: 10, Status: catalog.StatusActive},
		},
		[]cart.Line{
			{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 2},
			{ID: "l2", CartID: "c1", ProductID: "B", Quantity: 1},
		},
	)
	ctx := context.Background()
	o, _, err := f.svc.PlaceOrder(ctx, "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.NoError(t, err)
	require.Equal(t, 8, f.orders.stocks["A"])
	require.Equal(t, 9, f.orders.stocks["B"])

	cancelled, err := f.svc.Cancel(ctx, "u1", o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, 10, f.orders.stocks["A"])
	require.Equal(t, 10, f.orders.stocks["B"])

	// cancelling again is an invalid state, not a second restock
	_, err = f.svc.Cancel(ctx, "u1", o.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, 10, f.orders.stocks["A"])
}

func TestCancelScopedToOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "A", Price: "10.00", Stock: 5, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 1}},
	)
	o, _, err := f.svc.PlaceOrder(context.Background(), "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), "otro", o.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "A", Price: "10.00", Stock: 5, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 1}},
	)
	ctx := context.Background()
	o, _, err := f.svc.PlaceOrder(ctx, "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.NoError(t, err)

	// forward moves allowed, skipping steps included
	upd, err := f.svc.UpdateStatus(ctx, o.ID, "shipped")
	require.NoError(t, err)
	require.Equal(t, StatusShipped, upd.Status)

	// backwards rejected
	_, err = f.svc.UpdateStatus(ctx, o.ID, "confirmed")
	require.ErrorIs(t, err, ErrInvalidState)

	// cancellation must go through Cancel, it has stock side effects
	_, err = f.svc.UpdateStatus(ctx, o.ID, "cancelled")
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.UpdateStatus(ctx, o.ID, "que")
	require.Error(t, err)
}

func TestMarkPaidIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(
		[]*catalog.Product{{ID: "A", Name: "A", Price: "10.00", Stock: 5, Status: catalog.StatusActive}},
		[]cart.Line{{ID: "l1", CartID: "c1", ProductID: "A", Quantity: 1}},
	)
	ctx := context.Background()
	o, _, err := f.svc.PlaceOrder(ctx, "u1", PlaceInput{AddressID: "a1", PaymentMethod: "card"})
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(ctx, o.OrderNumber, "ref-1", o.Total)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, paid.PaymentStatus)
	require.Equal(t, StatusConfirmed, paid.Status)
	require.Len(t, f.orders.payments, 1)

	// duplicate webhook delivery: same result, no second payment row
	again, err := f.svc.MarkPaid(ctx, o.OrderNumber, "ref-1", o.Total)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, again.PaymentStatus)
	require.Len(t, f.orders.payments, 1)
}
