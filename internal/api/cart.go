package api

import (
	"net/http"
	"strconv"

	"github.com/SigNoz/storefront-api/internal/middleware"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/gorilla/mux"
)

const cartItemNotFound = "Item not found in cart"

// itemIndex parses the positional cart line index
func itemIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(mux.Vars(r)["itemId"])
	if err != nil || idx < 0 {
		writeError(w, http.StatusNotFound, cartItemNotFound)
		return 0, false
	}
	return idx, true
}

// GetCartHandler handles GET /api/cart
func (a *App) GetCartHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	cart, err := a.cartService.GetCart(r.Context(), user.ID)
	if err != nil {
		a.writeServiceError(w, r, err, cartItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// AddToCartHandler handles POST /api/cart
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req models.AddToCartRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	cart, err := a.cartService.AddItem(r.Context(), user.ID, req)
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// UpdateCartItemHandler handles PUT /api/cart/update/{itemId}
func (a *App) UpdateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}

	var req models.UpdateCartItemRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	cart, err := a.cartService.UpdateItem(r.Context(), user.ID, idx, req.Quantity)
	if err != nil {
		a.writeServiceError(w, r, err, cartItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveCartItemHandler handles DELETE /api/cart/remove/{itemId}
func (a *App) RemoveCartItemHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())
	idx, ok := itemIndex(w, r)
	if !ok {
		return
	}

	cart, err := a.cartService.RemoveItem(r.Context(), user.ID, idx)
	if err != nil {
		a.writeServiceError(w, r, err, cartItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ClearCartHandler handles DELETE /api/cart/clear
func (a *App) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	cart, err := a.cartService.Clear(r.Context(), user.ID)
	if err != nil {
		a.writeServiceError(w, r, err, cartItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ApplyCouponHandler handles POST /api/cart/apply-coupon
func (a *App) ApplyCouponHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	var req models.ApplyCouponRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	cart, err := a.cartService.ApplyCoupon(r.Context(), user.ID, req.Code)
	if err != nil {
		a.writeServiceError(w, r, err, cartItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveCouponHandler handles DELETE /api/cart/remove-coupon
func (a *App) RemoveCouponHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	cart, err := a.cartService.RemoveCoupon(r.Context(), user.ID)
	if err != nil {
		a.writeServiceError(w, r, err, cartItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
