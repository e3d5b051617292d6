package cartstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, time.Hour), mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisTestStore(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  redisStore,
	}
}

func addOne(productID int64) UpdateFunc {
	return func(cart *models.Cart) error {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				cart.Items[i].Quantity++
				return nil
			}
		}
		cart.Items = append(cart.Items, models.CartItem{ProductID: productID, Price: 10, Quantity: 1})
		return nil
	}
}

func TestStore_GetEmpty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			cart, err := s.Get(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, int64(7), cart.UserID)
			assert.Empty(t, cart.Items)
		})
	}
}

func TestStore_UpdateAndGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(ctx, 1, addOne(100))
			require.NoError(t, err)
			updated, err := s.Update(ctx, 1, addOne(100))
			require.NoError(t, err)
			assert.Equal(t, 2, updated.Items[0].Quantity)

			cart, err := s.Get(ctx, 1)
			require.NoError(t, err)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, 2, cart.Items[0].Quantity)

			n, err := s.CountActive(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestStore_UpdateErrorLeavesCartUntouched(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(ctx, 1, addOne(100))
			require.NoError(t, err)

			_, err = s.Update(ctx, 1, func(cart *models.Cart) error {
				cart.Items = nil
				return boom
			})
			assert.ErrorIs(t, err, boom)

			cart, err := s.Get(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, cart.Items, 1)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Update(ctx, 3, addOne(1))
			require.NoError(t, err)
			require.NoError(t, s.Delete(ctx, 3))

			cart, err := s.Get(ctx, 3)
			require.NoError(t, err)
			assert.Empty(t, cart.Items)

			n, err := s.CountActive(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	const writers = 10
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.Update(ctx, 42, addOne(5))
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			cart, err := s.Get(ctx, 42)
			require.NoError(t, err)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, writers, cart.Items[0].Quantity)
		})
	}
}

func TestRedisStore_TTLAndActiveSet(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTestStore(t)

	_, err := s.Update(ctx, 9, addOne(1))
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("cart:9"))
	assert.True(t, mr.Exists("cart:9"))

	_, err = s.Update(ctx, 9, func(cart *models.Cart) error {
		cart.Items = cart.Items[:0]
		return nil
	})
	require.NoError(t, err)

	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_ExpiredCartsAreNotActive(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisTestStore(t)

	clock := time.Now()
	s.now = func() time.Time { return clock }

	_, err := s.Update(ctx, 9, addOne(1))
	require.NoError(t, err)
	mr.FastForward(30 * time.Minute)
	clock = clock.Add(30 * time.Minute)
	_, err = s.Update(ctx, 10, addOne(1))
	require.NoError(t, err)

	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// cart 9 was written 30 minutes before cart 10 and expires first
	mr.FastForward(45 * time.Minute)
	clock = clock.Add(45 * time.Minute)

	cart, err := s.Get(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	n, err = s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mr.FastForward(time.Hour)
	clock = clock.Add(time.Hour)

	n, err = s.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisStore_NoTTLStaysActive(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := NewRedisStore(client, 0)

	_, err := s.Update(ctx, 3, addOne(1))
	require.NoError(t, err)
	mr.FastForward(365 * 24 * time.Hour)

	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Update(ctx, 1, addOne(1))
	require.NoError(t, err)

	cart, _ := s.Get(ctx, 1)
	cart.Items[0].Quantity = 99

	again, _ := s.Get(ctx, 1)
	assert.Equal(t, 1, again.Items[0].Quantity)
}
