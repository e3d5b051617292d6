package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/gorilla/mux"
)

const productNotFound = "Product not found"

// productFilter reads catalog query parameters. Unparsable values fall back to defaults.
func productFilter(r *http.Request) models.ProductFilter {
	q := r.URL.Query()
	f := models.ProductFilter{
		Category: q.Get("category"),
		Search:   strings.TrimSpace(q.Get("search")),
		Sort:     q.Get("sort"),
		Order:    strings.ToLower(q.Get("order")),
		Page:     queryInt(r, "page", 1),
		Limit:    queryInt(r, "limit", 0),
	}
	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}
	if v, err := strconv.ParseFloat(q.Get("minPrice"), 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseFloat(q.Get("maxPrice"), 64); err == nil {
		f.MaxPrice = &v
	}
	if v, err := strconv.ParseBool(q.Get("featured")); err == nil {
		f.Featured = &v
	}
	return f
}

// ListProductsHandler handles GET /api/products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := a.productService.ListProducts(r.Context(), productFilter(r))
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListCategoryHandler handles GET /api/products/category/{category}
func (a *App) ListCategoryHandler(w http.ResponseWriter, r *http.Request) {
	page, err := a.productService.ListByCategory(r.Context(), mux.Vars(r)["category"], productFilter(r))
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// SearchProductsHandler handles GET /api/products/search/{term}
func (a *App) SearchProductsHandler(w http.ResponseWriter, r *http.Request) {
	page, err := a.productService.SearchProducts(r.Context(), mux.Vars(r)["term"], productFilter(r))
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetProductHandler handles GET /api/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", productNotFound)
	if !ok {
		return
	}

	product, err := a.productService.GetProduct(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// CreateProductHandler handles POST /api/products
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	product, err := a.productService.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

// UpdateProductHandler handles PUT /api/products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", productNotFound)
	if !ok {
		return
	}

	var req models.UpdateProductRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	product, err := a.productService.UpdateProduct(r.Context(), id, req)
	if err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// DeleteProductHandler handles DELETE /api/products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", productNotFound)
	if !ok {
		return
	}

	if err := a.productService.DeleteProduct(r.Context(), id); err != nil {
		a.writeServiceError(w, r, err, productNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}
