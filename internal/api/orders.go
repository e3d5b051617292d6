package api

import (
	"net/http"

	"github.com/SigNoz/storefront-api/internal/middleware"
	"github.com/SigNoz/storefront-api/internal/models"
)

const orderNotFound = "Order not found"

// CreateOrderHandler handles POST /api/orders
func (a *App) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req models.CreateOrderRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	order, err := a.orderService.PlaceOrder(r.Context(), user.ID, req)
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

// ListOrdersHandler handles GET /api/orders
func (a *App) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	page, err := a.orderService.ListUserOrders(r.Context(), user.ID,
		r.URL.Query().Get("status"), queryInt(r, "page", 1), queryInt(r, "limit", 10))
	if err != nil {
		a.writeServiceError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListAllOrdersHandler handles GET /api/orders/admin/all
func (a *App) ListAllOrdersHandler(w http.ResponseWriter, r *http.Request) {
	page, err := a.orderService.ListAllOrders(r.Context(),
		r.URL.Query().Get("status"), queryInt(r, "page", 1), queryInt(r, "limit", 20))
	if err != nil {
		a.writeServiceError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetOrderHandler handles GET /api/orders/{id}
func (a *App) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id, ok := pathID(w, r, "id", orderNotFound)
	if !ok {
		return
	}

	order, err := a.orderService.GetOrder(r.Context(), id, user)
	if err != nil {
		a.writeServiceError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// CancelOrderHandler handles PUT /api/orders/{id}/cancel
func (a *App) CancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	id, ok := pathID(w, r, "id", orderNotFound)
	if !ok {
		return
	}

	var req models.CancelOrderRequest
	if !decodeOptionalJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	order, err := a.orderService.CancelOrder(r.Context(), id, user, req.Reason)
	if err != nil {
		a.writeServiceError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UpdateOrderStatusHandler handles PUT /api/orders/{id}/status
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", orderNotFound)
	if !ok {
		return
	}

	var req models.UpdateOrderStatusRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	order, err := a.orderService.UpdateOrderStatus(r.Context(), id, req)
	if err != nil {
		a.writeServiceError(w, r, err, orderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
