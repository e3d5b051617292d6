package models

import "time"

// CartItem is one line of a cart. Its identity is its position in Items.
type CartItem struct {
	ProductID int64     `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	Size      string    `json:"size,omitempty"`
	Color     string    `json:"color,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// CartDiscount is the coupon applied to a cart
type CartDiscount struct {
	Code   string  `json:"code"`
	Type   string  `json:"type"`
	Value  float64 `json:"value"`
	Amount float64 `json:"amount"`
}

// Cart is a user's shopping cart
type Cart struct {
	UserID          int64         `json:"userId"`
	Items           []CartItem    `json:"items"`
	Total           float64       `json:"total"`
	Discount        *CartDiscount `json:"discount,omitempty"`
	DiscountedTotal *float64      `json:"discountedTotal,omitempty"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// NewCart returns an empty cart for a user
func NewCart(userID int64) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}, UpdatedAt: time.Now().UTC()}
}

// Clone returns a deep copy of the cart
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = append([]CartItem(nil), c.Items...)
	if out.Items == nil {
		out.Items = []CartItem{}
	}
	if c.Discount != nil {
		d := *c.Discount
		out.Discount = &d
	}
	if c.DiscountedTotal != nil {
		v := *c.DiscountedTotal
		out.DiscountedTotal = &v
	}
	return &out
}

// ItemCount returns the number of units across all lines
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

// AddToCartRequest represents a request to add item to cart
type AddToCartRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=99"`
	Size      string `json:"size" validate:"omitempty,max=10"`
	Color     string `json:"color" validate:"omitempty,max=30"`
}

// UpdateCartItemRequest changes the quantity of a cart line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=99"`
}

// ApplyCouponRequest represents a request to apply a coupon code
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,max=30"`
}
