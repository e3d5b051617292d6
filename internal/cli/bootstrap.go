package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/SigNoz/storefront-api/internal/cartstore"
	"github.com/SigNoz/storefront-api/internal/db"
	"github.com/SigNoz/storefront-api/pkg/config"
	"go.opentelemetry.io/otel/metric"
)

// openDatabase connects to the configured driver and applies the embedded schema
func openDatabase(ctx context.Context, cfg *config.Config, meterProvider metric.MeterProvider) (*db.DB, error) {
	database, err := db.NewDB(cfg.DBDriver, cfg.GetDSN(), meterProvider, cfg.OTELServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return database, nil
}

// openCartStore returns the cart ledger backend selected by CART_STORE
func openCartStore(cfg *config.Config) (cartstore.Store, func(), error) {
	switch cfg.CartStore {
	case "", "memory":
		log.Printf("[CART] Using in-memory cart store")
		return cartstore.NewMemoryStore(), func() {}, nil
	case "redis":
		client, err := cartstore.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[CART] Using redis cart store at %s (ttl=%s)", cfg.RedisAddr, cfg.CartTTL)
		return cartstore.NewRedisStore(client, cfg.CartTTL), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cart store %q", cfg.CartStore)
	}
}
