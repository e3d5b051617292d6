package api

import (
	"net/http"
	"time"

	"github.com/SigNoz/storefront-api/internal/db"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/middleware"
	"github.com/SigNoz/storefront-api/internal/services"
	"github.com/SigNoz/storefront-api/pkg/config"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

// App holds application dependencies
type App struct {
	config         *config.Config
	db             *db.DB
	metrics        *metrics.AppMetrics
	productService *services.ProductService
	cartService    *services.CartService
	orderService   *services.OrderService
	userService    *services.UserService
	validator      *validator.Validate
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	database *db.DB,
	m *metrics.AppMetrics,
	ps *services.ProductService,
	cs *services.CartService,
	os *services.OrderService,
	us *services.UserService,
) *App {
	return &App{
		config:         cfg,
		db:             database,
		metrics:        m,
		productService: ps,
		cartService:    cs,
		orderService:   os,
		userService:    us,
		validator:      newValidator(),
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoveryMiddleware(!a.config.IsProduction()))
	r.Use(middleware.MetricsMiddleware(a.metrics))

	authenticate := middleware.Authenticate(a.userService)
	user := func(h http.HandlerFunc) http.Handler { return authenticate(h) }
	admin := func(h http.HandlerFunc) http.Handler { return authenticate(middleware.RequireAdmin(h)) }

	api := r.PathPrefix("/api").Subrouter()

	// Auth
	api.HandleFunc("/auth/register", a.RegisterHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", a.LoginHandler).Methods(http.MethodPost)
	api.Handle("/auth/me", user(a.MeHandler)).Methods(http.MethodGet)

	// Products
	api.HandleFunc("/products", a.ListProductsHandler).Methods(http.MethodGet)
	api.Handle("/products", admin(a.CreateProductHandler)).Methods(http.MethodPost)
	api.HandleFunc("/products/category/{category}", a.ListCategoryHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/search/{term}", a.SearchProductsHandler).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods(http.MethodGet)
	api.Handle("/products/{id}", admin(a.UpdateProductHandler)).Methods(http.MethodPut)
	api.Handle("/products/{id}", admin(a.DeleteProductHandler)).Methods(http.MethodDelete)

	// Cart
	api.Handle("/cart", user(a.GetCartHandler)).Methods(http.MethodGet)
	api.Handle("/cart", user(a.AddToCartHandler)).Methods(http.MethodPost)
	api.Handle("/cart/update/{itemId}", user(a.UpdateCartItemHandler)).Methods(http.MethodPut)
	api.Handle("/cart/remove/{itemId}", user(a.RemoveCartItemHandler)).Methods(http.MethodDelete)
	api.Handle("/cart/clear", user(a.ClearCartHandler)).Methods(http.MethodDelete)
	api.Handle("/cart/apply-coupon", user(a.ApplyCouponHandler)).Methods(http.MethodPost)
	api.Handle("/cart/remove-coupon", user(a.RemoveCouponHandler)).Methods(http.MethodDelete)

	// Orders; admin/all is registered before {id}
	api.Handle("/orders", user(a.CreateOrderHandler)).Methods(http.MethodPost)
	api.Handle("/orders", user(a.ListOrdersHandler)).Methods(http.MethodGet)
	api.Handle("/orders/admin/all", admin(a.ListAllOrdersHandler)).Methods(http.MethodGet)
	api.Handle("/orders/{id}", user(a.GetOrderHandler)).Methods(http.MethodGet)
	api.Handle("/orders/{id}/cancel", user(a.CancelOrderHandler)).Methods(http.MethodPut)
	api.Handle("/orders/{id}/status", admin(a.UpdateOrderStatusHandler)).Methods(http.MethodPut)

	// Health
	api.HandleFunc("/health", a.HealthHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
}

// HealthHandler handles GET /api/health
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	database := "connected"
	if err := a.db.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		database = "disconnected"
	}

	writeJSON(w, status, map[string]string{
		"status":      http.StatusText(status),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": a.config.AppEnv,
		"database":    database,
	})
}
