package pricing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Percentage(t *testing.T) {
	promos := DefaultPromotions()

	promo, discount, err := promos.Evaluate("save10", 125)
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", promo.Code)
	assert.Equal(t, 12.5, discount)
}

func TestEvaluate_BelowMinimum(t *testing.T) {
	promos := DefaultPromotions()

	_, _, err := promos.Evaluate("SAVE10", 40)
	var minErr *MinimumOrderError
	require.True(t, errors.As(err, &minErr))
	assert.Equal(t, "Minimum order amount of $50 required.", err.Error())
}

func TestEvaluate_UnknownCode(t *testing.T) {
	_, _, err := DefaultPromotions().Evaluate("BOGUS", 500)
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestDiscountFor_FixedIsCapped(t *testing.T) {
	promo := Promotion{Code: "BIG", Type: DiscountFixed, Value: 500}
	assert.Equal(t, "80", promo.DiscountFor(decimal.NewFromInt(80)).String())
}

func TestNewPromotions_Rejects(t *testing.T) {
	cases := map[string][]Promotion{
		"empty code":   {{Code: " ", Type: DiscountFixed, Value: 1}},
		"duplicate":    {{Code: "A", Type: DiscountFixed, Value: 1}, {Code: "a", Type: DiscountFixed, Value: 2}},
		"bad percent":  {{Code: "A", Type: DiscountPercentage, Value: 150}},
		"unknown type": {{Code: "A", Type: "bogo", Value: 1}},
		"negative min": {{Code: "A", Type: DiscountFixed, Value: 1, MinOrderAmount: -1}},
	}
	for name, list := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPromotions(list)
			assert.Error(t, err)
		})
	}
}

func TestLoadPromotions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "promotions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
promotions:
  - code: SPRING5
    type: fixed
    value: 5
    minOrderAmount: 20.5
  - code: half
    type: percentage
    value: 50
`), 0o644))

	promos, err := LoadPromotions(path)
	require.NoError(t, err)
	require.Len(t, promos.All(), 2)

	_, _, err = promos.Evaluate("SPRING5", 20)
	assert.EqualError(t, err, "Minimum order amount of $20.50 required.")

	_, discount, err := promos.Evaluate("HALF", 33.33)
	require.NoError(t, err)
	assert.Equal(t, 16.67, discount)
}
