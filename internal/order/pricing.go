package order

import (
	"context"

	"github.com/shopspring/decimal"
)

const DeliveryExpress = "express"

var (
	feeExpress  = decimal.NewFromInt(180)
	feeStandard = decimal.NewFromInt(120)
)

// ShippingFee is a flat table keyed by delivery option; not distance or
// weight based.
func ShippingFee(deliveryOption string) decimal.Decimal {
	if deliveryOption == DeliveryExpress {
		return feeExpress
	}
	return feeStandard
}

// DiscountResolver turns an optional coupon code into a discount amount
// for the given cart subtotal. Plugging a real coupon subsystem in means
// swapping this implementation.
type DiscountResolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// NoDiscount accepts any code and applies nothing. This is the deliberate
// default: coupon codes are recorded on the order but inert until a coupon
// subsystem is wired.
type NoDiscount struct{}

func (NoDiscount) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
