package cartstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/SigNoz/storefront-api/internal/models"
	"github.com/redis/go-redis/v9"
)

// activeCartsKey is a sorted set of user ids with a non-empty cart, scored by the
// unix millisecond at which the cart key expires.
const activeCartsKey = "carts:active"

// RedisStore keeps carts as JSON documents under cart:<userID>.
// Updates use WATCH/MULTI and are retried when another writer got there first.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxRetries int
	now        func() time.Time
}

// ConnectRedis opens and pings a Redis client
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedisStore creates a Redis-backed cart store. A zero ttl keeps carts forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, maxRetries: 50, now: time.Now}
}

// expiryScore is the active-set score of a cart written now
func (s *RedisStore) expiryScore() float64 {
	if s.ttl <= 0 {
		return math.MaxFloat64
	}
	return float64(s.now().Add(s.ttl).UnixMilli())
}

func cartKey(userID int64) string {
	return "cart:" + strconv.FormatInt(userID, 10)
}

func decodeCart(userID int64, data []byte) (*models.Cart, error) {
	cart := models.NewCart(userID)
	if err := json.Unmarshal(data, cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart %d: %w", userID, err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

// Get reads the user's cart
func (s *RedisStore) Get(ctx context.Context, userID int64) (*models.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.NewCart(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return decodeCart(userID, data)
}

// Update applies fn inside an optimistic transaction on the cart key
func (s *RedisStore) Update(ctx context.Context, userID int64, fn UpdateFunc) (*models.Cart, error) {
	key := cartKey(userID)
	member := strconv.FormatInt(userID, 10)

	var result *models.Cart
	var fnErr error

	txf := func(tx *redis.Tx) error {
		cart := models.NewCart(userID)
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if cart, err = decodeCart(userID, data); err != nil {
				return err
			}
		}

		if fnErr = fn(cart); fnErr != nil {
			return fnErr
		}
		cart.UpdatedAt = time.Now().UTC()

		encoded, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("failed to encode cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			if len(cart.Items) > 0 {
				pipe.ZAdd(ctx, activeCartsKey, redis.Z{Score: s.expiryScore(), Member: member})
			} else {
				pipe.ZRem(ctx, activeCartsKey, member)
			}
			return nil
		})
		if err == nil {
			result = cart
		}
		return err
	}

	for i := 0; i < s.maxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	log.Printf("[CART] Giving up on cart %d after %d conflicting updates", userID, s.maxRetries)
	return nil, ErrConflict
}

// Delete removes the user's cart
func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cartKey(userID))
		pipe.ZRem(ctx, activeCartsKey, strconv.FormatInt(userID, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// CountActive drops expired carts from the active set and returns its size
func (s *RedisStore) CountActive(ctx context.Context) (int, error) {
	cutoff := strconv.FormatInt(s.now().UnixMilli(), 10)

	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, activeCartsKey, "-inf", cutoff)
		card = pipe.ZCard(ctx, activeCartsKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count active carts: %w", err)
	}
	return int(card.Val()), nil
}
