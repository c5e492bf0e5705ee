// Package idempotency remembers which order a client-supplied idempotency
// key produced, so a double-submitted checkout returns the first order.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// Reserve takes the key for the first caller. Later callers get false until
// the key expires or is released.
func (s *RedisStore) Reserve(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
}

func (s *RedisStore) Release(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, lockKey(scope, key)).Err()
}

func (s *RedisStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, valueKey(scope, key), value, s.ttl).Err()
}

func (s *RedisStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, valueKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func lockKey(scope, key string) string  { return "idemp:" + scope + ":" + key }
func valueKey(scope, key string) string { return "idemp:map:" + scope + ":" + key }

// Key combines the client token with a fingerprint of the checkout so a
// reused token with a different cart is treated as a new request.
func Key(token string, method domain.PaymentMethod, addressID string, lines []domain.CartLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.ProductID+"x"+strconv.Itoa(l.Quantity))
	}
	sort.Strings(parts)
	h := sha256.New()
	h.Write([]byte(string(method) + "|" + addressID + "|" + strings.Join(parts, ",")))
	return strings.TrimSpace(token) + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}
