// Package pricing computes order totals and evaluates promotion codes.
// All arithmetic is done in decimal and rounded to cents, half away from zero.
package pricing

import (
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/shopspring/decimal"
)

var (
	FreeShippingThreshold = decimal.NewFromInt(100)
	ShippingFee           = decimal.NewFromInt(15)
	TaxRate               = decimal.RequireFromString("0.08")
)

// Line is a priced quantity
type Line struct {
	Price    float64
	Quantity int
}

// Subtotal returns Σ price × quantity
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Shipping is free from the threshold upwards
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		return decimal.Zero
	}
	return ShippingFee
}

// Tax applies the flat rate
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate)
}

// Quote prices an order. promo may be nil; when set it must already have
// passed Promotions.Evaluate for the same subtotal.
func Quote(lines []Line, promo *Promotion) models.Pricing {
	subtotal := Subtotal(lines)
	shipping := Shipping(subtotal)
	tax := Tax(subtotal)

	discount := decimal.Zero
	if promo != nil {
		discount = promo.DiscountFor(subtotal)
	}

	total := subtotal.Add(shipping).Add(tax).Sub(discount)

	return models.Pricing{
		Subtotal: toCents(subtotal),
		Tax:      toCents(tax),
		Shipping: toCents(shipping),
		Discount: toCents(discount),
		Total:    toCents(total),
	}
}

// CartTotal returns the undiscounted total of the cart lines
func CartTotal(items []models.CartItem) float64 {
	lines := make([]Line, len(items))
	for i, item := range items {
		lines[i] = Line{Price: item.Price, Quantity: item.Quantity}
	}
	return toCents(Subtotal(lines))
}

// Round2 rounds to cents
func Round2(f float64) float64 {
	return toCents(decimal.NewFromFloat(f))
}

func toCents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
