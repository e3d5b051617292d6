package pricing

import (
	"testing"

	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestShippingThreshold(t *testing.T) {
	assert.True(t, Shipping(decimal.NewFromInt(100)).IsZero())
	assert.True(t, Shipping(decimal.RequireFromString("100.01")).IsZero())
	assert.Equal(t, "15", Shipping(decimal.RequireFromString("99.99")).String())
}

func TestQuote_NoPromotion(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  models.Pricing
	}{
		{
			name:  "free shipping at exactly 100",
			lines: []Line{{Price: 50, Quantity: 2}},
			want:  models.Pricing{Subtotal: 100, Tax: 8, Shipping: 0, Discount: 0, Total: 108},
		},
		{
			name:  "shipping below threshold",
			lines: []Line{{Price: 99.99, Quantity: 1}},
			want:  models.Pricing{Subtotal: 99.99, Tax: 8, Shipping: 15, Discount: 0, Total: 122.99},
		},
		{
			name:  "tax rounds half up",
			lines: []Line{{Price: 10.5625, Quantity: 1}},
			want:  models.Pricing{Subtotal: 10.56, Tax: 0.85, Shipping: 15, Discount: 0, Total: 26.41},
		},
		{
			name:  "no float drift",
			lines: []Line{{Price: 0.1, Quantity: 3}, {Price: 0.2, Quantity: 1}},
			want:  models.Pricing{Subtotal: 0.5, Tax: 0.04, Shipping: 15, Discount: 0, Total: 15.54},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Quote(tt.lines, nil))
		})
	}
}

func TestQuote_WithPromotion(t *testing.T) {
	promo := Promotion{Code: "SAVE10", Type: DiscountPercentage, Value: 10, MinOrderAmount: 50}
	got := Quote([]Line{{Price: 50, Quantity: 2}, {Price: 25, Quantity: 1}}, &promo)

	assert.Equal(t, 125.0, got.Subtotal)
	assert.Equal(t, 10.0, got.Tax)
	assert.Equal(t, 0.0, got.Shipping)
	assert.Equal(t, 12.5, got.Discount)
	assert.Equal(t, 122.5, got.Total)
}

func TestCartTotal(t *testing.T) {
	items := []models.CartItem{
		{Price: 50, Quantity: 2},
		{Price: 25, Quantity: 1},
	}
	assert.Equal(t, 125.0, CartTotal(items))
	assert.Equal(t, 0.0, CartTotal(nil))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.01, Round2(1.005))
	assert.Equal(t, 2.68, Round2(2.675))
	assert.Equal(t, 12.5, Round2(12.5))
}
