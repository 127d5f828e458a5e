package cart

import "github.com/shopspring/decimal"

func dzero() decimal.Decimal         { return decimal.Zero }
func dfromInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// CappedQuantity clamps a guest line's quantity to the live stock of its
// product. A result below 1 means the line is dropped from the merge.
func CappedQuantity(guestQty, stock int) int {
	if guestQty > stock {
		return stock
	}
	return guestQty
}

// MergedQuantity resolves a merge conflict between a user-cart line and a
// guest-cart line for the same product: keep the larger of the two
// pre-merge quantities, then clamp to current stock. Deliberately not a
// sum; the bigger intent wins, stock caps it.
func MergedQuantity(userQty, guestQty, stock int) int {
	q := userQty
	if guestQty > q {
		q = guestQty
	}
	if q > stock {
		q = stock
	}
	return q
}
