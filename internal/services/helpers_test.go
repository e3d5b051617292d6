package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/SigNoz/storefront-api/internal/auth"
	"github.com/SigNoz/storefront-api/internal/cartstore"
	"github.com/SigNoz/storefront-api/internal/db"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/SigNoz/storefront-api/internal/pricing"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type testEnv struct {
	db       *db.DB
	products *ProductService
	carts    *CartService
	orders   *OrderService
	users    *UserService
}

func createTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "store.db") + "?_foreign_keys=on&_busy_timeout=5000"
	database, err := db.NewDB(db.DriverSQLite, dsn, noop.NewMeterProvider(), "storefront-test")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Migrate(context.Background()))

	m := metrics.NewNoop()
	promotions := pricing.DefaultPromotions()
	products := NewProductService(database, m, time.Minute)
	carts := NewCartService(cartstore.NewMemoryStore(), products, promotions, m)

	return &testEnv{
		db:       database,
		products: products,
		carts:    carts,
		orders:   NewOrderService(database, m, products, carts, promotions),
		users:    NewUserService(database, m, auth.NewTokenManager("test-secret", time.Hour)),
	}
}

func (e *testEnv) createProduct(t *testing.T, name string, price float64, stock int) *models.Product {
	t.Helper()
	p, err := e.products.CreateProduct(context.Background(), models.CreateProductRequest{
		Name:        name,
		Description: name + " description",
		Price:       price,
		Category:    models.CategoryClothes,
		Tags:        []string{"basics"},
		Images:      []models.ProductImage{{URL: "https://img.example.com/" + name + ".jpg", IsPrimary: true}},
		Stock:       stock,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) createUser(t *testing.T, email string, admin bool) *models.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), "Test User", email, "password123", admin)
	require.NoError(t, err)
	return u
}

// stockOf reads stock and sales count straight from the table, bypassing the cache
func (e *testEnv) stockOf(t *testing.T, productID int64) (stock, sales int) {
	t.Helper()
	err := e.db.QueryRow("SELECT stock, sales_count FROM products WHERE id = ?", productID).Scan(&stock, &sales)
	require.NoError(t, err)
	return stock, sales
}

func (e *testEnv) countOrders(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&n))
	return n
}

func testAddress() models.Address {
	return models.Address{
		FullName: "Jane Doe",
		Street:   "1 Main St",
		City:     "Springfield",
		State:    "IL",
		ZipCode:  "62701",
		Country:  "US",
	}
}
