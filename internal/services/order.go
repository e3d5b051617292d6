package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SigNoz/storefront-api/internal/db"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/SigNoz/storefront-api/internal/pricing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const maxOrderNumberAttempts = 5

const orderColumns = `o.id, o.order_number, o.user_id, o.shipping_address, o.billing_address,
	o.payment_method, o.transaction_id, o.payment_status, o.paid_at,
	o.subtotal, o.tax, o.shipping, o.discount, o.total, o.coupon_code, o.status,
	o.tracking_number, o.carrier, o.estimated_delivery, o.delivered_at, o.notes,
	o.created_at, o.updated_at, u.name, u.email`

// OrderService handles order-related operations
type OrderService struct {
	db         *db.DB
	metrics    *metrics.AppMetrics
	products   *ProductService
	carts      *CartService
	promotions *pricing.Promotions

	newOrderNumber func() string
	lookupProduct  func(ctx context.Context, q querier, id int64) (*models.Product, error)
}

// NewOrderService creates a new order service
func NewOrderService(db *db.DB, metrics *metrics.AppMetrics, products *ProductService, carts *CartService, promotions *pricing.Promotions) *OrderService {
	return &OrderService{
		db:             db,
		metrics:        metrics,
		products:       products,
		carts:          carts,
		promotions:     promotions,
		newOrderNumber: generateOrderNumber,
		lookupProduct:  products.loadProduct,
	}
}

// generateOrderNumber builds ORD-<last 8 digits of unix millis>-<3 random digits>
func generateOrderNumber() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	return fmt.Sprintf("ORD-%s-%03d", ts, rand.IntN(1000))
}

// PlaceOrder validates, prices and persists an order, taking the stock it needs.
// Without explicit items the user's cart is ordered and cleared afterwards.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, req models.CreateOrderRequest) (*models.Order, error) {
	lines := req.Items
	couponCode := strings.TrimSpace(req.CouponCode)
	fromCart := len(lines) == 0

	if fromCart {
		cart, err := s.carts.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(cart.Items) == 0 {
			return nil, ruleError(ErrInvalidInput, "Cart is empty")
		}
		for _, item := range cart.Items {
			lines = append(lines, models.OrderLineRequest{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Size:      item.Size,
				Color:     item.Color,
			})
		}
		if couponCode == "" && cart.Discount != nil {
			couponCode = cart.Discount.Code
		}
	}

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, ruleError(ErrInvalidInput, "Quantity must be at least 1")
		}
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	var (
		orderID   int64
		order     models.Order
		remaining = map[int64]int{}
		category  = map[int64]string{}
	)

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		// validate every line before anything is written
		needed := map[int64]int{}
		products := map[int64]*models.Product{}
		priced := make([]pricing.Line, 0, len(lines))
		items := make([]models.OrderItem, 0, len(lines))

		for _, line := range lines {
			p, ok := products[line.ProductID]
			if !ok {
				loaded, err := s.lookupProduct(ctx, tx, line.ProductID)
				if errors.Is(err, ErrNotFound) {
					return ruleError(ErrProductUnavailable, "Product %d is not available", line.ProductID)
				}
				if err != nil {
					return err
				}
				p = loaded
				products[p.ID] = p
			}
			if !p.IsActive {
				return ruleError(ErrProductUnavailable, "Product %s is not available", p.Name)
			}

			needed[p.ID] += line.Quantity
			if p.Stock < needed[p.ID] {
				s.recordStockRejection(ctx, p.ID)
				return ruleError(ErrInsufficientStock, "Insufficient stock for %s. Available: %d, requested: %d", p.Name, p.Stock, needed[p.ID])
			}

			priced = append(priced, pricing.Line{Price: p.Price, Quantity: line.Quantity})
			items = append(items, models.OrderItem{
				ProductID: p.ID,
				Product:   &models.ProductSummary{ID: p.ID, Name: p.Name, Images: p.Images},
				Name:      p.Name,
				Price:     p.Price,
				Quantity:  line.Quantity,
				Size:      line.Size,
				Color:     line.Color,
				Image:     p.PrimaryImage(),
			})
		}

		var promo *pricing.Promotion
		if couponCode != "" {
			found, _, err := s.promotions.Evaluate(couponCode, pricing.Subtotal(priced).InexactFloat64())
			if err != nil {
				return couponError(err)
			}
			promo = &found
			couponCode = found.Code
		}

		now := time.Now().UTC()
		order = models.Order{
			UserID:          userID,
			Items:           items,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  billing,
			Payment: models.Payment{
				Method:        req.PaymentMethod,
				TransactionID: uuid.NewString(),
				Status:        models.PaymentStatusPending,
			},
			Pricing:       pricing.Quote(priced, promo),
			CouponCode:    couponCode,
			Status:        models.OrderStatusPending,
			StatusHistory: []models.StatusChange{{Status: models.OrderStatusPending, Timestamp: now, Note: "Order placed"}},
			Notes:         req.Notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		var err error
		if orderID, err = s.insertOrder(ctx, tx, &order); err != nil {
			return err
		}

		itemQuery := `INSERT INTO order_items (order_id, product_id, name, price, quantity, size, color, image)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		for i := range order.Items {
			item := &order.Items[i]
			start := time.Now()
			result, err := tx.ExecContext(ctx, itemQuery, orderID, item.ProductID, item.Name, item.Price, item.Quantity, item.Size, item.Color, item.Image)
			s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", itemQuery, start, err == nil)
			if err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			item.OrderID = orderID
			if item.ID, err = result.LastInsertId(); err != nil {
				return fmt.Errorf("failed to get order item ID: %w", err)
			}
		}

		if err := s.appendHistory(ctx, tx, orderID, order.StatusHistory[0]); err != nil {
			return err
		}

		// a concurrent order may have taken the stock since it was read
		failedID, err := s.takeStock(ctx, tx, needed, now)
		if err != nil {
			return err
		}
		if failedID != 0 {
			s.recordStockRejection(ctx, failedID)
			return ruleError(ErrInsufficientStock, "Insufficient stock for %s", products[failedID].Name)
		}
		for id, qty := range needed {
			remaining[id] = products[id].Stock - qty
			category[id] = products[id].Category
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id, stock := range remaining {
		s.products.InvalidateCache(id)
		s.products.recordInventory(ctx, id, category[id], stock)
	}

	if fromCart {
		if _, err := s.carts.Clear(ctx, userID); err != nil {
			log.Printf("[ORDER] Failed to clear cart after order %d: %v", orderID, err)
		}
	}

	s.recordOrderCreated(ctx, &order)
	log.Printf("[ORDER] Order created: order_id=%d number=%s user_id=%d total=%.2f items=%d",
		orderID, order.OrderNumber, userID, order.Pricing.Total, len(order.Items))

	return s.loadOrder(ctx, s.db, orderID)
}

// insertOrder persists the order row, drawing a new order number on collision
func (s *OrderService) insertOrder(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	query := `INSERT INTO orders (order_number, user_id, shipping_address, billing_address,
		payment_method, transaction_id, payment_status, subtotal, tax, shipping, discount, total,
		coupon_code, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order.OrderNumber = s.newOrderNumber()

		start := time.Now()
		result, err := tx.ExecContext(ctx, query, order.OrderNumber, order.UserID, order.ShippingAddress, order.BillingAddress,
			order.Payment.Method, order.Payment.TransactionID, order.Payment.Status,
			order.Pricing.Subtotal, order.Pricing.Tax, order.Pricing.Shipping, order.Pricing.Discount, order.Pricing.Total,
			order.CouponCode, order.Status, order.Notes, order.CreatedAt, order.UpdatedAt)
		s.metrics.RecordDBQuery(ctx, "INSERT", "orders", query, start, err == nil)

		if db.IsDuplicateKey(err) {
			log.Printf("[ORDER] Order number collision on %s (attempt %d)", order.OrderNumber, attempt)
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to create order: %w", err)
		}

		order.ID, err = result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get order ID: %w", err)
		}
		return order.ID, nil
	}
	return 0, fmt.Errorf("failed to allocate a unique order number after %d attempts", maxOrderNumberAttempts)
}

func (s *OrderService) appendHistory(ctx context.Context, q querier, orderID int64, change models.StatusChange) error {
	start := time.Now()
	query := "INSERT INTO order_status_history (order_id, status, note, created_at) VALUES (?, ?, ?, ?)"
	_, err := q.ExecContext(ctx, query, orderID, change.Status, change.Note, change.Timestamp)
	s.metrics.RecordDBQuery(ctx, "INSERT", "order_status_history", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// GetOrder returns an order visible to requester. Non-admins only see their own orders.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64, requester *models.User) (*models.Order, error) {
	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.IsAdmin && order.UserID != requester.ID {
		return nil, ruleError(ErrForbidden, "Access denied")
	}
	return order, nil
}

// loadOrder reads an order with its items, history and owner. Each query's rows are
// closed before the next one starts so it can run on a single-connection pool.
func (s *OrderService) loadOrder(ctx context.Context, q querier, orderID int64) (*models.Order, error) {
	var (
		o                                   models.Order
		paidAt, estimatedDelivery, delivery sql.NullTime
		user                                models.UserSummary
	)

	start := time.Now()
	query := "SELECT " + orderColumns + " FROM orders o JOIN users u ON u.id = o.user_id WHERE o.id = ?"
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.ShippingAddress, &o.BillingAddress,
		&o.Payment.Method, &o.Payment.TransactionID, &o.Payment.Status, &paidAt,
		&o.Pricing.Subtotal, &o.Pricing.Tax, &o.Pricing.Shipping, &o.Pricing.Discount, &o.Pricing.Total,
		&o.CouponCode, &o.Status, &o.Tracking.TrackingNumber, &o.Tracking.Carrier,
		&estimatedDelivery, &delivery, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
		&user.Name, &user.Email,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	user.ID = o.UserID
	o.User = &user
	o.Payment.PaidAt = nullTime(paidAt)
	o.Tracking.EstimatedDelivery = nullTime(estimatedDelivery)
	o.Tracking.DeliveredAt = nullTime(delivery)

	if o.Items, err = s.loadItems(ctx, q, orderID); err != nil {
		return nil, err
	}
	if o.StatusHistory, err = s.loadHistory(ctx, q, orderID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *OrderService) loadItems(ctx context.Context, q querier, orderID int64) ([]models.OrderItem, error) {
	start := time.Now()
	query := `SELECT oi.id, oi.order_id, oi.product_id, oi.name, oi.price, oi.quantity, oi.size, oi.color, oi.image,
		p.name, p.images
		FROM order_items oi LEFT JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ? ORDER BY oi.id`
	rows, err := q.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var item models.OrderItem
		var productName sql.NullString
		var images models.ImageList
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity,
			&item.Size, &item.Color, &item.Image, &productName, &images); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if productName.Valid {
			if images == nil {
				images = models.ImageList{}
			}
			item.Product = &models.ProductSummary{ID: item.ProductID, Name: productName.String, Images: images}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *OrderService) loadHistory(ctx context.Context, q querier, orderID int64) ([]models.StatusChange, error) {
	start := time.Now()
	query := "SELECT status, note, created_at FROM order_status_history WHERE order_id = ? ORDER BY id"
	rows, err := q.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_status_history", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get status history: %w", err)
	}
	defer rows.Close()

	history := []models.StatusChange{}
	for rows.Next() {
		var change models.StatusChange
		if err := rows.Scan(&change.Status, &change.Note, &change.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, change)
	}
	return history, rows.Err()
}

// ListUserOrders returns one page of the user's orders, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64, status string, page, limit int) (*models.OrderPage, error) {
	return s.listOrders(ctx, &userID, status, page, limit)
}

// ListAllOrders returns one page of every user's orders, newest first
func (s *OrderService) ListAllOrders(ctx context.Context, status string, page, limit int) (*models.OrderPage, error) {
	return s.listOrders(ctx, nil, status, page, limit)
}

func (s *OrderService) listOrders(ctx context.Context, userID *int64, status string, page, limit int) (*models.OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	where := []string{"1 = 1"}
	var args []any
	if userID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *userID)
	}
	if status != "" {
		if !models.OrderStatus(status).IsValid() {
			return nil, ruleError(ErrInvalidInput, "Invalid order status %q", status)
		}
		where = append(where, "status = ?")
		args = append(args, status)
	}
	whereSQL := strings.Join(where, " AND ")

	start := time.Now()
	countQuery := "SELECT COUNT(*) FROM orders WHERE " + whereSQL
	var total int64
	err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", countQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	page = clampPage(page, limit, total)

	start = time.Now()
	query := "SELECT id FROM orders WHERE " + whereSQL + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, (page-1)*limit)...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}

	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		order, err := s.loadOrder(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	return &models.OrderPage{Orders: orders, Pagination: models.NewPagination(page, limit, total)}, nil
}

// CancelOrder cancels an order that has not shipped yet and puts its stock back
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64, requester *models.User, reason string) (*models.Order, error) {
	var restored []int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var ownerID int64
		var status models.OrderStatus

		start := time.Now()
		query := "SELECT user_id, status FROM orders WHERE id = ?"
		err := tx.QueryRowContext(ctx, query, orderID).Scan(&ownerID, &status)
		s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}

		if !requester.IsAdmin && ownerID != requester.ID {
			return ruleError(ErrForbidden, "Access denied")
		}
		if !status.UserCancellable() {
			return ruleError(ErrNotCancellable, "Order cannot be cancelled")
		}

		if restored, err = s.restoreStock(ctx, tx, orderID); err != nil {
			return err
		}

		note := strings.TrimSpace(reason)
		if note == "" {
			note = "Order cancelled by customer"
		}
		return s.setStatus(ctx, tx, orderID, models.OrderStatusCancelled, note, nil, nil)
	})
	if err != nil {
		return nil, err
	}

	s.afterCancel(ctx, orderID, restored, "customer")
	return s.loadOrder(ctx, s.db, orderID)
}

// UpdateOrderStatus moves an order to any status. Moving into cancelled restores stock.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, req models.UpdateOrderStatusRequest) (*models.Order, error) {
	if !req.Status.IsValid() {
		return nil, ruleError(ErrInvalidInput, "Invalid order status %q", req.Status)
	}

	var restored, reclaimed []int64
	cancelled := false
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var current models.OrderStatus
		var paymentMethod string

		start := time.Now()
		query := "SELECT status, payment_method FROM orders WHERE id = ?"
		err := tx.QueryRowContext(ctx, query, orderID).Scan(&current, &paymentMethod)
		s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || errors.Is(err, sql.ErrNoRows))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}

		now := time.Now().UTC()
		var sets []string
		var args []any

		if req.TrackingNumber != "" {
			sets = append(sets, "tracking_number = ?")
			args = append(args, req.TrackingNumber)
		}
		if req.Carrier != "" {
			sets = append(sets, "carrier = ?")
			args = append(args, req.Carrier)
		}
		if req.EstimatedDelivery != nil {
			sets = append(sets, "estimated_delivery = ?")
			args = append(args, req.EstimatedDelivery.UTC())
		}

		switch req.Status {
		case models.OrderStatusDelivered:
			sets = append(sets, "delivered_at = ?")
			args = append(args, now)
			if paymentMethod == models.PaymentMethodCashOnDelivery {
				sets = append(sets, "payment_status = ?", "paid_at = ?")
				args = append(args, models.PaymentStatusCompleted, now)
			}
		case models.OrderStatusRefunded:
			sets = append(sets, "payment_status = ?")
			args = append(args, models.PaymentStatusRefunded)
		case models.OrderStatusCancelled:
			if current != models.OrderStatusCancelled {
				if restored, err = s.restoreStock(ctx, tx, orderID); err != nil {
					return err
				}
				cancelled = true
			}
		}

		if current == models.OrderStatusCancelled && req.Status.ReclaimsStock() {
			if reclaimed, err = s.reclaimStock(ctx, tx, orderID); err != nil {
				return err
			}
		}

		note := strings.TrimSpace(req.Note)
		if note == "" {
			note = fmt.Sprintf("Status updated to %s", req.Status)
		}
		return s.setStatus(ctx, tx, orderID, req.Status, note, sets, args)
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		s.afterCancel(ctx, orderID, restored, "admin")
	}
	s.products.InvalidateCache(reclaimed...)
	log.Printf("[ORDER] Order status updated: order_id=%d status=%s", orderID, req.Status)
	return s.loadOrder(ctx, s.db, orderID)
}

// setStatus writes the new status plus any extra assignments and appends a history entry
func (s *OrderService) setStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, note string, sets []string, args []any) error {
	now := time.Now().UTC()
	sets = append([]string{"status = ?", "updated_at = ?"}, sets...)
	args = append([]any{status, now}, args...)
	args = append(args, orderID)

	start := time.Now()
	query := "UPDATE orders SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	_, err := tx.ExecContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	return s.appendHistory(ctx, tx, orderID, models.StatusChange{Status: status, Timestamp: now, Note: note})
}

// takeStock decrements stock and increments the sales count of every product in needed,
// in id order. It returns the first product whose stock no longer covers its quantity.
func (s *OrderService) takeStock(ctx context.Context, tx *sql.Tx, needed map[int64]int, now time.Time) (int64, error) {
	query := `UPDATE products SET stock = stock - ?, sales_count = sales_count + ?, updated_at = ?
		WHERE id = ? AND stock >= ? AND is_active = ?`
	for _, id := range sortedIDs(needed) {
		qty := needed[id]
		start := time.Now()
		result, err := tx.ExecContext(ctx, query, qty, qty, now, id, qty, true)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
		if err != nil {
			return 0, fmt.Errorf("failed to update stock: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to check affected rows: %w", err)
		}
		if affected == 0 {
			return id, nil
		}
	}
	return 0, nil
}

// setStockHeld flips the order's stock_held flag from !held to held. It reports false
// when the flag already had that value.
func (s *OrderService) setStockHeld(ctx context.Context, tx *sql.Tx, orderID int64, held bool) (bool, error) {
	start := time.Now()
	query := "UPDATE orders SET stock_held = ? WHERE id = ? AND stock_held = ?"
	result, err := tx.ExecContext(ctx, query, held, orderID, !held)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return false, fmt.Errorf("failed to update stock flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return affected > 0, nil
}

// orderQuantities sums the ordered quantity per product
func (s *OrderService) orderQuantities(ctx context.Context, tx *sql.Tx, orderID int64) (map[int64]int, error) {
	start := time.Now()
	query := "SELECT product_id, SUM(quantity) FROM order_items WHERE order_id = ? GROUP BY product_id"
	rows, err := tx.QueryContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	quantities := map[int64]int{}
	for rows.Next() {
		var id int64
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		quantities[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return quantities, nil
}

// restoreStock puts back the stock of every item and takes back the sales count.
// An order whose stock was already returned is left alone.
func (s *OrderService) restoreStock(ctx context.Context, tx *sql.Tx, orderID int64) ([]int64, error) {
	held, err := s.setStockHeld(ctx, tx, orderID, false)
	if err != nil || !held {
		return nil, err
	}

	quantities, err := s.orderQuantities(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	query := `UPDATE products SET stock = stock + ?,
		sales_count = CASE WHEN sales_count >= ? THEN sales_count - ? ELSE 0 END, updated_at = ?
		WHERE id = ?`
	ids := sortedIDs(quantities)
	now := time.Now().UTC()
	for _, id := range ids {
		qty := quantities[id]
		start := time.Now()
		_, err := tx.ExecContext(ctx, query, qty, qty, qty, now, id)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to restore stock: %w", err)
		}
	}
	return ids, nil
}

// reclaimStock takes the stock of a reopened order again. It fails with
// ErrInsufficientStock when the stock has since been sold.
func (s *OrderService) reclaimStock(ctx context.Context, tx *sql.Tx, orderID int64) ([]int64, error) {
	claimed, err := s.setStockHeld(ctx, tx, orderID, true)
	if err != nil || !claimed {
		return nil, err
	}

	quantities, err := s.orderQuantities(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	failedID, err := s.takeStock(ctx, tx, quantities, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if failedID != 0 {
		s.recordStockRejection(ctx, failedID)
		return nil, ruleError(ErrInsufficientStock, "Insufficient stock to reopen order: product %d", failedID)
	}
	return sortedIDs(quantities), nil
}

func sortedIDs(m map[int64]int) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *OrderService) afterCancel(ctx context.Context, orderID int64, restored []int64, source string) {
	s.products.InvalidateCache(restored...)
	s.metrics.OrdersCancelled.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("source", source),
	})...))
	log.Printf("[ORDER] Order cancelled: order_id=%d by=%s restocked_products=%d", orderID, source, len(restored))
}

func (s *OrderService) recordOrderCreated(ctx context.Context, order *models.Order) {
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", string(order.Status)),
		attribute.String("payment_method", order.Payment.Method),
	})
	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.RevenueTotal.Add(ctx, order.Pricing.Total, metric.WithAttributes(attrs...))

	if order.CouponCode != "" {
		s.metrics.CouponsApplied.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
			attribute.String("coupon_code", order.CouponCode),
			attribute.String("source", "order"),
		})...))
	}
}

func (s *OrderService) recordStockRejection(ctx context.Context, productID int64) {
	s.metrics.StockRejections.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", productID),
		attribute.String("source", "order"),
	})...))
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
