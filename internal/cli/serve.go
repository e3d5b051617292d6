package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SigNoz/storefront-api/internal/api"
	"github.com/SigNoz/storefront-api/internal/auth"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/pricing"
	"github.com/SigNoz/storefront-api/internal/services"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

const activeCartInterval = 30 * time.Second

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Start the HTTP API server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down meter provider: %v", err)
		}
	}()

	database, err := openDatabase(ctx, cfg, meterProvider)
	if err != nil {
		return err
	}
	defer database.Close()

	store, closeStore, err := openCartStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	promotions := pricing.DefaultPromotions()
	if cfg.PromotionsFile != "" {
		if promotions, err = pricing.LoadPromotions(cfg.PromotionsFile); err != nil {
			return err
		}
		log.Printf("[CART] Loaded %d promotions from %s", len(promotions.All()), cfg.PromotionsFile)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	productService := services.NewProductService(database, appMetrics, cfg.ProductCacheTTL)
	cartService := services.NewCartService(store, productService, promotions, appMetrics)
	orderService := services.NewOrderService(database, appMetrics, productService, cartService, promotions)
	userService := services.NewUserService(database, appMetrics, tokens)

	go cartService.MonitorActiveCarts(ctx, activeCartInterval)

	app := api.NewApp(cfg, database, appMetrics, productService, cartService, orderService, userService)
	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetAppPortInt()),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s (%s, db=%s, carts=%s)", cfg.AppPort, cfg.AppEnv, cfg.DBDriver, cfg.CartStore)
		log.Printf("OTLP endpoint: %s", cfg.OTELExporterOTLPEndpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}
