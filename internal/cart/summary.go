package cart

import (
	"github.com/MikeMC777/tienda-ecom/internal/catalog"
)

type LineView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Subtotal  string `json:"subtotal"`
	Savings   string `json:"savings"`
}

type Summary struct {
	CartID   string     `json:"cart_id"`
	Lines    []LineView `json:"lines"`
	Subtotal string     `json:"subtotal"`
	Savings  string     `json:"savings"`
}

// BuildSummary prices a cart. Each line's subtotal and savings are rounded
// to 2 decimals before aggregation, so the cart totals are exact sums of
// the line values shown to the shopper. Lines whose product can no longer
// be resolved are left out.
func BuildSummary(cartID string, lines []Line, products map[string]*catalog.Product) Summary {
	s := Summary{CartID: cartID, Lines: []LineView{}}
	subtotal := dzero()
	savings := dzero()
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			continue
		}
		qty := dfromInt(l.Quantity)
		lineSub := p.UnitPrice().Mul(qty).Round(2)
		lineSav := p.UnitDiscount().Mul(qty).Round(2)
		subtotal = subtotal.Add(lineSub)
		savings = savings.Add(lineSav)
		s.Lines = append(s.Lines, LineView{
			ProductID: l.ProductID,
			Name:      p.Name,
			Quantity:  l.Quantity,
			UnitPrice: p.UnitPrice().StringFixed(2),
			Subtotal:  lineSub.StringFixed(2),
			Savings:   lineSav.StringFixed(2),
		})
	}
	s.Subtotal = subtotal.StringFixed(2)
	s.Savings = savings.StringFixed(2)
	return s
}
