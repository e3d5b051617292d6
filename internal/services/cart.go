package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SigNoz/storefront-api/internal/cartstore"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/SigNoz/storefront-api/internal/pricing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CartService handles cart-related operations.
// Cart lines are addressed by their position in the item list.
type CartService struct {
	store      cartstore.Store
	products   *ProductService
	promotions *pricing.Promotions
	metrics    *metrics.AppMetrics
}

// NewCartService creates a new cart service
func NewCartService(store cartstore.Store, products *ProductService, promotions *pricing.Promotions, metrics *metrics.AppMetrics) *CartService {
	return &CartService{
		store:      store,
		products:   products,
		promotions: promotions,
		metrics:    metrics,
	}
}

// MonitorActiveCarts periodically records the active carts gauge until ctx is done
func (s *CartService) MonitorActiveCarts(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.store.CountActive(ctx)
			if err != nil {
				log.Printf("[CART] Failed to count active carts: %v", err)
				continue
			}
			s.metrics.ActiveCartsCount.Record(ctx, int64(count), metric.WithAttributes(s.metrics.WithServiceName(nil)...))
		}
	}
}

// GetCart returns the user's cart, creating an empty one on first access
func (s *CartService) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return cart, nil
}

// AddItem adds a product to the cart, merging with a line of the same product, size and color
func (s *CartService) AddItem(ctx context.Context, userID int64, req models.AddToCartRequest) (*models.Cart, error) {
	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.products.getCached(ctx, req.ProductID)
	if errors.Is(err, ErrNotFound) || (err == nil && !product.IsActive) {
		return nil, ruleError(ErrNotFound, "Product not found")
	}
	if err != nil {
		return nil, err
	}

	return s.update(ctx, userID, func(cart *models.Cart) error {
		idx := -1
		for i, item := range cart.Items {
			if item.ProductID == req.ProductID && item.Size == req.Size && item.Color == req.Color {
				idx = i
				break
			}
		}

		wanted := quantity
		if idx >= 0 {
			wanted += cart.Items[idx].Quantity
		}
		if product.Stock < wanted {
			s.recordStockRejection(ctx, product.ID, "cart")
			return ruleError(ErrInsufficientStock, "Insufficient stock. Only %d items available.", product.Stock)
		}

		if idx >= 0 {
			cart.Items[idx].Quantity = wanted
			return nil
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Image:     product.PrimaryImage(),
			Quantity:  quantity,
			Size:      req.Size,
			Color:     req.Color,
			AddedAt:   time.Now().UTC(),
		})
		return nil
	})
}

// UpdateItem sets the quantity of the line at index
func (s *CartService) UpdateItem(ctx context.Context, userID int64, index, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, ruleError(ErrInvalidInput, "Quantity must be at least 1")
	}

	cart, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if index < 0 || index >= len(cart.Items) {
		return nil, ruleError(ErrNotFound, "Item not found in cart")
	}

	product, err := s.products.getCached(ctx, cart.Items[index].ProductID)
	if errors.Is(err, ErrNotFound) || (err == nil && !product.IsActive) {
		return nil, ruleError(ErrProductUnavailable, "Product is no longer available")
	}
	if err != nil {
		return nil, err
	}

	return s.update(ctx, userID, func(cart *models.Cart) error {
		// the cart may have changed since it was read above
		if index >= len(cart.Items) || cart.Items[index].ProductID != product.ID {
			return ruleError(ErrNotFound, "Item not found in cart")
		}
		if product.Stock < quantity {
			s.recordStockRejection(ctx, product.ID, "cart")
			return ruleError(ErrInsufficientStock, "Insufficient stock. Only %d items available.", product.Stock)
		}
		cart.Items[index].Quantity = quantity
		return nil
	})
}

// RemoveItem removes the line at index
func (s *CartService) RemoveItem(ctx context.Context, userID int64, index int) (*models.Cart, error) {
	return s.update(ctx, userID, func(cart *models.Cart) error {
		if index < 0 || index >= len(cart.Items) {
			return ruleError(ErrNotFound, "Item not found in cart")
		}
		cart.Items = append(cart.Items[:index], cart.Items[index+1:]...)
		return nil
	})
}

// Clear empties the cart and drops any coupon
func (s *CartService) Clear(ctx context.Context, userID int64) (*models.Cart, error) {
	return s.update(ctx, userID, func(cart *models.Cart) error {
		cart.Items = []models.CartItem{}
		cart.Discount = nil
		cart.DiscountedTotal = nil
		return nil
	})
}

// ApplyCoupon applies a promotion code to the cart total
func (s *CartService) ApplyCoupon(ctx context.Context, userID int64, code string) (*models.Cart, error) {
	cart, err := s.update(ctx, userID, func(cart *models.Cart) error {
		if len(cart.Items) == 0 {
			return ruleError(ErrInvalidInput, "Cart is empty")
		}
		promo, amount, err := s.promotions.Evaluate(code, pricing.CartTotal(cart.Items))
		if err != nil {
			return couponError(err)
		}
		cart.Discount = &models.CartDiscount{
			Code:   promo.Code,
			Type:   string(promo.Type),
			Value:  promo.Value,
			Amount: amount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CouponsApplied.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("coupon_code", cart.Discount.Code),
		attribute.String("source", "cart"),
	})...))
	return cart, nil
}

// RemoveCoupon drops the applied coupon
func (s *CartService) RemoveCoupon(ctx context.Context, userID int64) (*models.Cart, error) {
	return s.update(ctx, userID, func(cart *models.Cart) error {
		cart.Discount = nil
		cart.DiscountedTotal = nil
		return nil
	})
}

// update runs fn and recomputes the derived totals before the cart is stored
func (s *CartService) update(ctx context.Context, userID int64, fn cartstore.UpdateFunc) (*models.Cart, error) {
	cart, err := s.store.Update(ctx, userID, func(cart *models.Cart) error {
		if err := fn(cart); err != nil {
			return err
		}
		s.recalculate(cart)
		return nil
	})
	if err != nil {
		var ruleErr *RuleError
		if errors.As(err, &ruleErr) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	cartAttrs := s.metrics.WithServiceName([]attribute.KeyValue{attribute.Int64("user_id", userID)})
	s.metrics.CartItemsCount.Record(ctx, int64(cart.ItemCount()), metric.WithAttributes(cartAttrs...))
	return cart, nil
}

// recalculate derives total and re-evaluates the coupon. A coupon whose
// minimum is no longer met is dropped together with the discounted total.
func (s *CartService) recalculate(cart *models.Cart) {
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	cart.Total = pricing.CartTotal(cart.Items)
	cart.UpdatedAt = time.Now().UTC()

	if cart.Discount == nil {
		cart.DiscountedTotal = nil
		return
	}

	promo, amount, err := s.promotions.Evaluate(cart.Discount.Code, cart.Total)
	if err != nil || len(cart.Items) == 0 {
		cart.Discount = nil
		cart.DiscountedTotal = nil
		return
	}

	cart.Discount.Type = string(promo.Type)
	cart.Discount.Value = promo.Value
	cart.Discount.Amount = amount
	discounted := pricing.Round2(cart.Total - amount)
	cart.DiscountedTotal = &discounted
}

func (s *CartService) recordStockRejection(ctx context.Context, productID int64, source string) {
	s.metrics.StockRejections.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", productID),
		attribute.String("source", source),
	})...))
}

// couponError converts a promotion lookup failure into a client-facing rejection
func couponError(err error) error {
	var minErr *pricing.MinimumOrderError
	switch {
	case errors.As(err, &minErr):
		return &RuleError{Kind: ErrMinimumOrder, Message: minErr.Error()}
	case errors.Is(err, pricing.ErrUnknownCode):
		return ruleError(ErrInvalidCoupon, "Invalid coupon code")
	default:
		return err
	}
}
