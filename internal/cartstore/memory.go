package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/SigNoz/storefront-api/internal/models"
)

// MemoryStore keeps carts in process memory. Carts are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[int64]*models.Cart
	locks map[int64]*sync.Mutex
}

// NewMemoryStore creates an empty in-process cart store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		carts: make(map[int64]*models.Cart),
		locks: make(map[int64]*sync.Mutex),
	}
}

func (s *MemoryStore) lockFor(userID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

func (s *MemoryStore) load(userID int64) *models.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cart, ok := s.carts[userID]; ok {
		return cart.Clone()
	}
	return models.NewCart(userID)
}

// Get returns a copy of the user's cart
func (s *MemoryStore) Get(_ context.Context, userID int64) (*models.Cart, error) {
	return s.load(userID), nil
}

// Update runs fn while holding the user's lock
func (s *MemoryStore) Update(ctx context.Context, userID int64, fn UpdateFunc) (*models.Cart, error) {
	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cart := s.load(userID)
	if err := fn(cart); err != nil {
		return nil, err
	}
	cart.UpdatedAt = time.Now().UTC()

	s.mu.Lock()
	s.carts[userID] = cart.Clone()
	s.mu.Unlock()

	return cart, nil
}

// Delete drops the user's cart
func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	l := s.lockFor(userID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	return nil
}

// CountActive counts carts with items
func (s *MemoryStore) CountActive(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, cart := range s.carts {
		if len(cart.Items) > 0 {
			n++
		}
	}
	return n, nil
}
