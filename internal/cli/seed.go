package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/SigNoz/storefront-api/internal/auth"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/SigNoz/storefront-api/internal/services"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/noop"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded by the seed command
type SeedFile struct {
	Products []models.CreateProductRequest `yaml:"products"`
	Users    []SeedUser                    `yaml:"users"`
}

// SeedUser is an account created by the seed command if its email is unused
type SeedUser struct {
	Name     string `yaml:"name" validate:"required,min=2,max=50"`
	Email    string `yaml:"email" validate:"required,email"`
	Password string `yaml:"password" validate:"required,min=6,max=72"`
	IsAdmin  bool   `yaml:"isAdmin"`
}

// SeedResult counts what a seed run changed
type SeedResult struct {
	ProductsCreated int
	ProductsUpdated int
	UsersCreated    int
	UsersExisting   int
}

// NewSeedCommand creates the seed command
func NewSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Load products and users from a YAML file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()

			seed, err := LoadSeedFile(file)
			if err != nil {
				return err
			}

			database, err := openDatabase(cmd.Context(), cfg, noop.NewMeterProvider())
			if err != nil {
				return err
			}
			defer database.Close()

			m := metrics.NewNoop()
			products := services.NewProductService(database, m, time.Minute)
			users := services.NewUserService(database, m, auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL))

			result, err := Seed(cmd.Context(), products, users, seed)
			if err != nil {
				return err
			}
			printSeedResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "data/catalog.yaml", "seed file")
	return cmd
}

// LoadSeedFile reads and validates a seed document
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	v := validator.New()
	for i, p := range seed.Products {
		if err := v.Struct(p); err != nil {
			return nil, fmt.Errorf("product %d (%s): %w", i, p.Name, err)
		}
	}
	for i, u := range seed.Users {
		if err := v.Struct(u); err != nil {
			return nil, fmt.Errorf("user %d (%s): %w", i, u.Email, err)
		}
	}

	return &seed, nil
}

// Seed upserts products by name and creates users whose email is not taken
func Seed(ctx context.Context, products *services.ProductService, users *services.UserService, seed *SeedFile) (SeedResult, error) {
	var result SeedResult

	for _, req := range seed.Products {
		_, created, err := products.UpsertByName(ctx, req)
		if err != nil {
			return result, fmt.Errorf("failed to seed product %s: %w", req.Name, err)
		}
		if created {
			result.ProductsCreated++
		} else {
			result.ProductsUpdated++
		}
	}

	for _, u := range seed.Users {
		_, created, err := users.EnsureUser(ctx, u.Name, u.Email, u.Password, u.IsAdmin)
		if err != nil {
			return result, fmt.Errorf("failed to seed user %s: %w", u.Email, err)
		}
		if created {
			result.UsersCreated++
		} else {
			result.UsersExisting++
		}
	}

	return result, nil
}

func printSeedResult(w io.Writer, r SeedResult) {
	fmt.Fprintf(w, "Products: %d created, %d updated\n", r.ProductsCreated, r.ProductsUpdated)
	fmt.Fprintf(w, "Users:    %d created, %d already present\n", r.UsersCreated, r.UsersExisting)
}
