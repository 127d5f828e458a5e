package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// StockError reports that a requested quantity cannot be satisfied by the
// live stock of a product. Available == 0 means the product is fully out
// of stock.
type StockError struct {
	ProductID string
	Name      string
	Available int
}

func (e *StockError) Error() string {
	if e.Available <= 0 {
		return fmt.Sprintf("%s is out of stock", e.Name)
	}
	return fmt.Sprintf("only %d unit(s) of %s are available", e.Available, e.Name)
}

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

// ListPrice is the regular price, ignoring any discount.
func (p *Product) ListPrice() decimal.Decimal { return dec(p.Price) }

// UnitPrice is the effective price per unit: the discount price when one is
// set, the regular price otherwise.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.DiscountPrice != nil && *p.DiscountPrice != "" {
		return dec(*p.DiscountPrice)
	}
	return dec(p.Price)
}

// UnitDiscount is price minus discount price per unit, zero when no
// discount is set.
func (p *Product) UnitDiscount() decimal.Decimal {
	if p.DiscountPrice == nil || *p.DiscountPrice == "" {
		return decimal.Zero
	}
	return dec(p.Price).Sub(dec(*p.DiscountPrice))
}
