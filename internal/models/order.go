package models

import "time"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// OrderStatuses lists every valid order status
var OrderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
	OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded,
}

// IsValid reports whether s is a known order status
func (s OrderStatus) IsValid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// UserCancellable reports whether the owner may still cancel an order in this status
func (s OrderStatus) UserCancellable() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	}
	return false
}

// ReclaimsStock reports whether moving a cancelled order into this status takes its stock again
func (s OrderStatus) ReclaimsStock() bool {
	return s.IsValid() && s != OrderStatusCancelled && s != OrderStatusRefunded
}

// PaymentStatus is the state of an order's payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment methods accepted at checkout
const (
	PaymentMethodCreditCard     = "credit_card"
	PaymentMethodDebitCard      = "debit_card"
	PaymentMethodPayPal         = "paypal"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

// Address is a shipping or billing address
type Address struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Street   string `json:"street" validate:"required,max=200"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"required,max=100"`
	ZipCode  string `json:"zipCode" validate:"required,max=20"`
	Country  string `json:"country" validate:"required,max=100"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

// OrderItem is a snapshot of a product at order time
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"productId"`
	Product   *ProductSummary `json:"product,omitempty"`
	Name      string          `json:"name"`
	Price     float64         `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Image     string          `json:"image,omitempty"`
}

// Payment holds the payment sub-record of an order
type Payment struct {
	Method        string        `json:"method"`
	TransactionID string        `json:"transactionId,omitempty"`
	Status        PaymentStatus `json:"paymentStatus"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
}

// Pricing is frozen when the order is created
type Pricing struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// StatusChange is one entry of the append-only status history
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// Tracking holds shipment details
type Tracking struct {
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	Carrier           string     `json:"carrier,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
}

// Order represents a placed order
type Order struct {
	ID              int64          `json:"id"`
	OrderNumber     string         `json:"orderNumber"`
	UserID          int64          `json:"userId"`
	User            *UserSummary   `json:"user,omitempty"`
	Items           []OrderItem    `json:"items"`
	ShippingAddress Address        `json:"shippingAddress"`
	BillingAddress  Address        `json:"billingAddress"`
	Payment         Payment        `json:"payment"`
	Pricing         Pricing        `json:"pricing"`
	CouponCode      string         `json:"couponCode,omitempty"`
	Status          OrderStatus    `json:"status"`
	StatusHistory   []StatusChange `json:"statusHistory"`
	Tracking        Tracking       `json:"tracking"`
	Notes           string         `json:"notes,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// OrderPage is a paginated order listing
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// OrderLineRequest is one requested line of a new order
type OrderLineRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=99"`
	Size      string `json:"size" validate:"omitempty,max=10"`
	Color     string `json:"color" validate:"omitempty,max=30"`
}

// CreateOrderRequest represents a request to place an order.
// Without items the user's cart is ordered and then cleared.
type CreateOrderRequest struct {
	Items           []OrderLineRequest `json:"items" validate:"omitempty,dive"`
	ShippingAddress Address            `json:"shippingAddress"`
	BillingAddress  *Address           `json:"billingAddress" validate:"omitempty"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required,oneof=credit_card debit_card paypal cash_on_delivery"`
	CouponCode      string             `json:"couponCode" validate:"omitempty,max=30"`
	Notes           string             `json:"notes" validate:"omitempty,max=500"`
}

// CancelOrderRequest carries the optional reason for a cancellation
type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// UpdateOrderStatusRequest is the admin status update
type UpdateOrderStatusRequest struct {
	Status            OrderStatus `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	Note              string      `json:"note" validate:"omitempty,max=500"`
	TrackingNumber    string      `json:"trackingNumber" validate:"omitempty,max=100"`
	Carrier           string      `json:"carrier" validate:"omitempty,max=100"`
	EstimatedDelivery *time.Time  `json:"estimatedDelivery"`
}
