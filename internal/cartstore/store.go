// Package cartstore keeps per-user carts. Every implementation serializes
// read-modify-write cycles on the same user so concurrent requests cannot
// lose each other's updates.
package cartstore

import (
	"context"
	"errors"

	"github.com/SigNoz/storefront-api/internal/models"
)

// ErrConflict is returned when an update could not be applied after retrying
var ErrConflict = errors.New("cart update conflict")

// UpdateFunc mutates a cart in place. Returning an error aborts the update.
type UpdateFunc func(cart *models.Cart) error

// Store is a keyed cart ledger
type Store interface {
	// Get returns the user's cart, or an empty one if none exists yet.
	Get(ctx context.Context, userID int64) (*models.Cart, error)
	// Update applies fn atomically with respect to other updates of the same cart.
	Update(ctx context.Context, userID int64, fn UpdateFunc) (*models.Cart, error)
	Delete(ctx context.Context, userID int64) error
	// CountActive returns the number of carts holding at least one item.
	CountActive(ctx context.Context) (int, error)
}
