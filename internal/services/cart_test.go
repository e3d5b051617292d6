package services

import (
	"context"
	"testing"

	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/SigNoz/storefront-api/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertTotalMatchesItems(t *testing.T, cart *models.Cart) {
	t.Helper()
	sum := 0.0
	for _, item := range cart.Items {
		sum += item.Price * float64(item.Quantity)
	}
	assert.InDelta(t, pricing.Round2(sum), cart.Total, 0.001)
}

func TestCart_AddMergesOnProductSizeColor(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	p := env.createProduct(t, "Tee", 50, 10)

	cart, err := env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 1, Size: "M"})
	require.NoError(t, err)
	assertTotalMatchesItems(t, cart)

	cart, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 2, Size: "M"})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)

	cart, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Size: "L"})
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 1, cart.Items[1].Quantity, "quantity defaults to 1")
	assert.Equal(t, 200.0, cart.Total)
	assertTotalMatchesItems(t, cart)
}

func TestCart_AddRejections(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	p := env.createProduct(t, "Tee", 50, 2)

	_, err := env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 3})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrInsufficientStock, "merged quantity exceeds stock")

	_, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: 9999, Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.products.DeleteProduct(ctx, p.ID))
	_, err = env.carts.AddItem(ctx, 2, models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCart_UpdateAndRemoveByIndex(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	tee := env.createProduct(t, "Tee", 50, 10)
	hat := env.createProduct(t, "Cap", 25, 10)

	_, err := env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: tee.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: hat.ID, Quantity: 1})
	require.NoError(t, err)

	cart, err := env.carts.UpdateItem(ctx, 1, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assertTotalMatchesItems(t, cart)

	_, err = env.carts.UpdateItem(ctx, 1, 0, 11)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = env.carts.UpdateItem(ctx, 1, 5, 1)
	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, "Item not found in cart", ruleErr.Message)

	cart, err = env.carts.RemoveItem(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, hat.ID, cart.Items[0].ProductID)
	assertTotalMatchesItems(t, cart)

	_, err = env.carts.RemoveItem(ctx, 1, -1)
	assert.ErrorIs(t, err, ErrNotFound)

	cart, err = env.carts.Clear(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)
}

func TestCart_CouponExample(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	shirt := env.createProduct(t, "Shirt", 50, 10)
	hat := env.createProduct(t, "Cap", 25, 10)

	_, err := env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: shirt.ID, Quantity: 2})
	require.NoError(t, err)
	cart, err := env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: hat.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 125.0, cart.Total)

	cart, err = env.carts.ApplyCoupon(ctx, 1, "save10")
	require.NoError(t, err)
	require.NotNil(t, cart.Discount)
	assert.Equal(t, "SAVE10", cart.Discount.Code)
	assert.Equal(t, 12.5, cart.Discount.Amount)
	require.NotNil(t, cart.DiscountedTotal)
	assert.Equal(t, 112.5, *cart.DiscountedTotal)

	// dropping below the minimum removes the coupon
	cart, err = env.carts.RemoveItem(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 25.0, cart.Total)
	assert.Nil(t, cart.Discount)
	assert.Nil(t, cart.DiscountedTotal)

	cart, err = env.carts.RemoveCoupon(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cart.Discount)
}

func TestCart_CouponRejections(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	p := env.createProduct(t, "Belt", 40, 10)

	_, err := env.carts.ApplyCoupon(ctx, 1, "SAVE10")
	assert.ErrorIs(t, err, ErrInvalidInput, "empty cart")

	_, err = env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = env.carts.ApplyCoupon(ctx, 1, "SAVE10")
	require.ErrorIs(t, err, ErrMinimumOrder)
	assert.Equal(t, "Minimum order amount of $50 required.", err.Error())

	_, err = env.carts.ApplyCoupon(ctx, 1, "NOPE")
	require.ErrorIs(t, err, ErrInvalidCoupon)
	assert.Equal(t, "Invalid coupon code", err.Error())

	cart, err := env.carts.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cart.Discount)
}

func TestCart_CouponReevaluatedOnChange(t *testing.T) {
	env := createTestEnv(t)
	ctx := context.Background()
	p := env.createProduct(t, "Jacket", 60, 10)

	_, err := env.carts.AddItem(ctx, 1, models.AddToCartRequest{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	_, err = env.carts.ApplyCoupon(ctx, 1, "SAVE10")
	require.NoError(t, err)

	cart, err := env.carts.UpdateItem(ctx, 1, 0, 2)
	require.NoError(t, err)
	require.NotNil(t, cart.Discount)
	assert.Equal(t, 12.0, cart.Discount.Amount)
	assert.Equal(t, 108.0, *cart.DiscountedTotal)
}
