package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MikeMC777/tienda-ecom/internal/catalog"
)

// Service owns cart resolution and mutation. Stock is only checked here,
// never decremented: two carts can hold more units than exist. The real
// enforcement point is order placement, which re-validates inside its
// transaction.
type Service struct {
	carts    Repository
	products catalog.Reader
}

func NewService(carts Repository, products catalog.Reader) *Service {
	return &Service{carts: carts, products: products}
}

// resolve maps an identity to exactly one cart, creating it lazily on
// first access.
func (s *Service) resolve(ctx context.Context, id Identity) (*Cart, error) {
	if !id.valid() {
		return nil, ErrInvalidIdentity
	}
	var (
		c   *Cart
		err error
	)
	if id.UserID != "" {
		c, err = s.carts.FindByUser(ctx, id.UserID)
		if errors.Is(err, ErrCartNotFound) {
			uid := id.UserID
			c = &Cart{ID: uuid.NewString(), UserID: &uid}
			err = s.carts.Create(ctx, c)
			if errors.Is(err, ErrCartExists) { // lost a creation race
				return s.carts.FindByUser(ctx, id.UserID)
			}
		}
	} else {
		c, err = s.carts.FindByGuest(ctx, id.GuestToken)
		if errors.Is(err, ErrCartNotFound) {
			tok := id.GuestToken
			c = &Cart{ID: uuid.NewString(), GuestToken: &tok}
			err = s.carts.Create(ctx, c)
			if errors.Is(err, ErrCartExists) {
				return s.carts.FindByGuest(ctx, id.GuestToken)
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) summaryFor(ctx context.Context, c *Cart) (*Summary, error) {
	lines, err := s.carts.Lines(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	products := make(map[string]*catalog.Product, len(lines))
	for _, l := range lines {
		p, err := s.products.GetByID(ctx, l.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, err
		}
		products[l.ProductID] = p
	}
	sum := BuildSummary(c.ID, lines, products)
	return &sum, nil
}

// Get returns the priced cart for the identity, creating an empty cart on
// first access.
func (s *Service) Get(ctx context.Context, id Identity) (*Summary, error) {
	c, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, c)
}

// AddLine adds quantity units of a product, growing an existing line when
// one is present. Stock checks here are advisory: they reject obviously
// impossible requests but the placement transaction is authoritative.
func (s *Service) AddLine(ctx context.Context, id Identity, productID string, quantity int) (*Summary, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	c, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, catalog.ErrNotFound
	}
	if p.Stock < 1 {
		return nil, &catalog.StockError{ProductID: p.ID, Name: p.Name, Available: 0}
	}

	line, err := s.carts.GetLine(ctx, c.ID, productID)
	switch {
	case errors.Is(err, ErrLineNotFound):
		if quantity > p.Stock {
			return nil, &catalog.StockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
		}
		if err := s.carts.InsertLine(ctx, &Line{
			ID:        uuid.NewString(),
			CartID:    c.ID,
			ProductID: productID,
			Quantity:  quantity,
		}); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		total := line.Quantity + quantity
		if total > p.Stock {
			// existing line stays untouched, no partial apply
			return nil, &catalog.StockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
		}
		if err := s.carts.UpdateLineQuantity(ctx, c.ID, productID, total); err != nil {
			return nil, err
		}
	}
	return s.summaryFor(ctx, c)
}

// UpdateQuantity replaces a line's quantity, re-checking live stock.
func (s *Service) UpdateQuantity(ctx context.Context, id Identity, productID string, quantity int) (*Summary, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	c, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.carts.GetLine(ctx, c.ID, productID); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if quantity > p.Stock {
		return nil, &catalog.StockError{ProductID: p.ID, Name: p.Name, Available: p.Stock}
	}
	if err := s.carts.UpdateLineQuantity(ctx, c.ID, productID, quantity); err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, c)
}

func (s *Service) RemoveLine(ctx context.Context, id Identity, productID string) (*Summary, error) {
	c, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.carts.DeleteLine(ctx, c.ID, productID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLineNotFound
	}
	return s.summaryFor(ctx, c)
}

// Clear removes every line; the cart row itself persists until next use.
func (s *Service) Clear(ctx context.Context, id Identity) (*Summary, error) {
	c, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.carts.ClearLines(ctx, c.ID); err != nil {
		return nil, err
	}
	return s.summaryFor(ctx, c)
}

// Merge folds the guest cart into the authenticated user's cart and
// retires the guest token. Called once, right after login, with the token
// the client remembered across the identity transition.
func (s *Service) Merge(ctx context.Context, userID, guestToken string) (*Summary, error) {
	if userID == "" || guestToken == "" {
		return nil, ErrInvalidIdentity
	}
	if err := s.carts.Merge(ctx, guestToken, userID); err != nil {
		return nil, err
	}
	return s.Get(ctx, Identity{UserID: userID})
}
