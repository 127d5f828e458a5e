package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/MikeMC777/tienda-ecom/internal/catalog"
)

//
// ===== in-memory stubs (implement cart.Repository and catalog.Reader) =====
//

type memCatalog struct {
	products map[string]*catalog.Product
}

func (m *memCatalog) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type memRepo struct {
	byUser  map[string]*Cart
	byGuest map[string]*Cart
	lines   map[string][]*Line // cartID -> lines
	catalog *memCatalog        // merge reads products like the PG repo does
}

func newMemRepo(cat *memCatalog) *memRepo {
	return &memRepo{
		byUser:  map[string]*Cart{},
		byGuest: map[string]*Cart{},
		lines:   map[string][]*Line{},
		catalog: cat,
	}
}

func (m *memRepo) FindByUser(ctx context.Context, userID string) (*Cart, error) {
	if c, ok := m.byUser[userID]; ok {
		return c, nil
	}
	return nil, ErrCartNotFound
}

func (m *memRepo) FindByGuest(ctx context.Context, token string) (*Cart, error) {
	if c, ok := m.byGuest[token]; ok {
		return c, nil
	}
	return nil, ErrCartNotFound
}

func (m *memRepo) Create(ctx context.Context, c *Cart) error {
	if c.UserID != nil {
		if _, ok := m.byUser[*c.UserID]; ok {
			return ErrCartExists
		}
		m.byUser[*c.UserID] = c
	} else {
		if _, ok := m.byGuest[*c.GuestToken]; ok {
			return ErrCartExists
		}
		m.byGuest[*c.GuestToken] = c
	}
	m.lines[c.ID] = nil
	return nil
}

func (m *memRepo) Lines(ctx context.Context, cartID string) ([]Line, error) {
	out := make([]Line, 0, len(m.lines[cartID]))
	for _, l := range m.lines[cartID] {
		out = append(out, *l)
	}
	return out, nil
}

func (m *memRepo) GetLine(ctx context.Context, cartID, productID string) (*Line, error) {
	for _, l := range m.lines[cartID] {
		if l.ProductID == productID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, ErrLineNotFound
}

func (m *memRepo) InsertLine(ctx context.Context, l *Line) error {
	cp := *l
	m.lines[l.CartID] = append(m.lines[l.CartID], &cp)
	return nil
}

func (m *memRepo) UpdateLineQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	for _, l := range m.lines[cartID] {
		if l.ProductID == productID {
			l.Quantity = quantity
			return nil
		}
	}
	return ErrLineNotFound
}

func (m *memRepo) DeleteLine(ctx context.Context, cartID, productID string) (bool, error) {
	ls := m.lines[cartID]
	for i, l := range ls {
		if l.ProductID == productID {
			m.lines[cartID] = append(ls[:i], ls[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) ClearLines(ctx context.Context, cartID string) error {
	m.lines[cartID] = nil
	return nil
}

func (m *memRepo) Merge(ctx context.Context, guestToken, userID string) error {
	guest, ok := m.byGuest[guestToken]
	if !ok || len(m.lines[guest.ID]) == 0 {
		return nil
	}
	user, ok := m.byUser[userID]
	if !ok {
		uid := userID
		user = &Cart{ID: uuid.NewString(), UserID: &uid}
		m.byUser[userID] = user
	}
	for _, gl := range m.lines[guest.ID] {
		p, ok := m.catalog.products[gl.ProductID]
		if !ok || !p.Active() {
			continue
		}
		capped := CappedQuantity(gl.Quantity, p.Stock)
		if capped < 1 {
			continue
		}
		if existing, err := m.GetLine(ctx, user.ID, gl.ProductID); err == nil {
			_ = m.UpdateLineQuantity(ctx, user.ID, gl.ProductID, MergedQuantity(existing.Quantity, gl.Quantity, p.Stock))
		} else {
			_ = m.InsertLine(ctx, &Line{ID: uuid.NewString(), CartID: user.ID, ProductID: gl.ProductID, Quantity: capped})
		}
	}
	delete(m.lines, guest.ID)
	delete(m.byGuest, guestToken)
	return nil
}

func activeProduct(id, price string, stock int) *catalog.Product {
	return &catalog.Product{ID: id, Name: "P-" + id, Price: price, Stock: stock, Status: catalog.StatusActive}
}

func newTestService(products ...*catalog.Product) (*Service, *memRepo) {
	cat := &memCatalog{products: map[string]*catalog.Product{}}
	for _, p := range products {
		cat.products[p.ID] = p
	}
	repo := newMemRepo(cat)
	return NewService(repo, cat), repo
}

//
// ===== tests =====
//

func TestResolveIdentity(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Get(ctx, Identity{})
	require.ErrorIs(t, err, ErrInvalidIdentity)

	// lazy creation for a fresh guest token
	sum, err := svc.Get(ctx, Identity{GuestToken: "tok-1"})
	require.NoError(t, err)
	require.Empty(t, sum.Lines)

	// authenticated identity wins when both are present
	p := activeProduct("p1", "10.00", 5)
	svc2, repo := newTestService(p)
	_, err = svc2.AddLine(ctx, Identity{UserID: "u1", GuestToken: "tok-2"}, "p1", 1)
	require.NoError(t, err)
	require.Contains(t, repo.byUser, "u1")
	require.NotContains(t, repo.byGuest, "tok-2")
}

func TestAddLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := Identity{UserID: "u1"}

	t.Run("product missing or inactive", func(t *testing.T) {
		draft := &catalog.Product{ID: "d1", Name: "Draft", Price: "5.00", Stock: 5, Status: catalog.StatusDraft}
		svc, _ := newTestService(draft)
		_, err := svc.AddLine(ctx, id, "missing", 1)
		require.ErrorIs(t, err, catalog.ErrNotFound)
		_, err = svc.AddLine(ctx, id, "d1", 1)
		require.ErrorIs(t, err, catalog.ErrNotFound)
	})

	t.Run("out of stock", func(t *testing.T) {
		svc, _ := newTestService(activeProduct("p1", "10.00", 0))
		_, err := svc.AddLine(ctx, id, "p1", 1)
		var se *catalog.StockError
		require.ErrorAs(t, err, &se)
		require.Equal(t, 0, se.Available)
	})

	t.Run("re-add grows the line, no partial apply on overflow", func(t *testing.T) {
		svc, _ := newTestService(activeProduct("p1", "10.00", 5))
		_, err := svc.AddLine(ctx, id, "p1", 3)
		require.NoError(t, err)

		sum, err := svc.AddLine(ctx, id, "p1", 2)
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		require.Equal(t, 5, sum.Lines[0].Quantity)

		// 5 + 1 > stock: fails and leaves the line at 5
		_, err = svc.AddLine(ctx, id, "p1", 1)
		var se *catalog.StockError
		require.ErrorAs(t, err, &se)
		require.Equal(t, "p1", se.ProductID)
		require.Equal(t, 5, se.Available)

		sum, err = svc.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 5, sum.Lines[0].Quantity)
	})

	t.Run("new line exceeding stock", func(t *testing.T) {
		svc, _ := newTestService(activeProduct("p1", "10.00", 3))
		_, err := svc.AddLine(ctx, id, "p1", 4)
		var se *catalog.StockError
		require.ErrorAs(t, err, &se)
		require.Equal(t, 3, se.Available)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		svc, _ := newTestService(activeProduct("p1", "10.00", 3))
		_, err := svc.AddLine(ctx, id, "p1", 0)
		require.ErrorIs(t, err, ErrInvalidQuantity)
	})
}

func TestUpdateQuantity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := Identity{UserID: "u1"}
	svc, _ := newTestService(activeProduct("p1", "10.00", 4))

	_, err := svc.UpdateQuantity(ctx, id, "p1", 2)
	require.ErrorIs(t, err, ErrLineNotFound)

	_, err = svc.AddLine(ctx, id, "p1", 1)
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(ctx, id, "p1", 5) // live stock is 4
	var se *catalog.StockError
	require.ErrorAs(t, err, &se)

	sum, err := svc.UpdateQuantity(ctx, id, "p1", 4)
	require.NoError(t, err)
	require.Equal(t, 4, sum.Lines[0].Quantity)
}

func TestRemoveLineIdempotence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := Identity{UserID: "u1"}
	svc, _ := newTestService(activeProduct("p1", "10.00", 4), activeProduct("p2", "7.50", 4))

	_, err := svc.AddLine(ctx, id, "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddLine(ctx, id, "p2", 2)
	require.NoError(t, err)

	sum, err := svc.RemoveLine(ctx, id, "p1")
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)

	// second removal reports NotFound and leaves the rest of the cart alone
	_, err = svc.RemoveLine(ctx, id, "p1")
	require.ErrorIs(t, err, ErrLineNotFound)

	sum, err = svc.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, sum.Lines, 1)
	require.Equal(t, "p2", sum.Lines[0].ProductID)
}

func TestClearKeepsCartRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := Identity{UserID: "u1"}
	svc, repo := newTestService(activeProduct("p1", "10.00", 4))

	_, err := svc.AddLine(ctx, id, "p1", 2)
	require.NoError(t, err)

	sum, err := svc.Clear(ctx, id)
	require.NoError(t, err)
	require.Empty(t, sum.Lines)
	require.Contains(t, repo.byUser, "u1")
}

func TestMerge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	setup := func(stock int) (*Service, *memRepo) {
		return newTestService(activeProduct("p1", "10.00", stock))
	}

	t.Run("conflict keeps the bigger intent, clamped to stock", func(t *testing.T) {
		svc, _ := setup(10)
		_, err := svc.AddLine(ctx, Identity{UserID: "u1"}, "p1", 2)
		require.NoError(t, err)
		_, err = svc.AddLine(ctx, Identity{GuestToken: "tok"}, "p1", 5)
		require.NoError(t, err)

		sum, err := svc.Merge(ctx, "u1", "tok")
		require.NoError(t, err)
		require.Equal(t, 5, sum.Lines[0].Quantity)
	})

	t.Run("conflict clamped when stock is short", func(t *testing.T) {
		svc, _ := setup(10)
		_, err := svc.AddLine(ctx, Identity{UserID: "u1"}, "p1", 2)
		require.NoError(t, err)
		_, err = svc.AddLine(ctx, Identity{GuestToken: "tok"}, "p1", 5)
		require.NoError(t, err)

		// stock dropped between add and merge
		svcRepoStock(t, svc, "p1", 3)
		sum, err := svc.Merge(ctx, "u1", "tok")
		require.NoError(t, err)
		require.Equal(t, 3, sum.Lines[0].Quantity)
	})

	t.Run("guest cart retired after merge", func(t *testing.T) {
		svc, repo := setup(10)
		_, err := svc.AddLine(ctx, Identity{GuestToken: "tok"}, "p1", 1)
		require.NoError(t, err)

		sum, err := svc.Merge(ctx, "u1", "tok")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		require.Equal(t, 1, sum.Lines[0].Quantity)
		require.NotContains(t, repo.byGuest, "tok")
	})

	t.Run("missing or empty guest cart is a no-op", func(t *testing.T) {
		svc, _ := setup(10)
		_, err := svc.AddLine(ctx, Identity{UserID: "u1"}, "p1", 2)
		require.NoError(t, err)

		sum, err := svc.Merge(ctx, "u1", "never-seen")
		require.NoError(t, err)
		require.Equal(t, 2, sum.Lines[0].Quantity)
	})

	t.Run("inactive products skipped", func(t *testing.T) {
		inactive := &catalog.Product{ID: "p2", Name: "Gone", Price: "9.00", Stock: 9, Status: catalog.StatusInactive}
		svc, _ := newTestService(activeProduct("p1", "10.00", 10), inactive)
		_, err := svc.AddLine(ctx, Identity{GuestToken: "tok"}, "p1", 1)
		require.NoError(t, err)
		// sneak the inactive product into the guest cart directly
		repoOf(t, svc).linesAddRaw(ctx, "tok", "p2", 2)

		sum, err := svc.Merge(ctx, "u1", "tok")
		require.NoError(t, err)
		require.Len(t, sum.Lines, 1)
		require.Equal(t, "p1", sum.Lines[0].ProductID)
	})
}

// test helpers reaching into the stub

func repoOf(t *testing.T, svc *Service) *memRepo {
	t.Helper()
	repo, ok := svc.carts.(*memRepo)
	if !ok {
		t.Fatalf("service not backed by memRepo")
	}
	return repo
}

func svcRepoStock(t *testing.T, svc *Service, productID string, stock int) {
	t.Helper()
	repoOf(t, svc).catalog.products[productID].Stock = stock
}

func (m *memRepo) linesAddRaw(ctx context.Context, guestToken, productID string, qty int) {
	c, ok := m.byGuest[guestToken]
	if !ok {
		return
	}
	_ = m.InsertLine(ctx, &Line{ID: uuid.NewString(), CartID: c.ID, ProductID: productID, Quantity: qty})
}

func TestMergeRequiresBothIdentities(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService()
	_, err := svc.Merge(context.Background(), "", "tok")
	require.ErrorIs(t, err, ErrInvalidIdentity)
	_, err = svc.Merge(context.Background(), "u1", "")
	require.True(t, errors.Is(err, ErrInvalidIdentity))
}
