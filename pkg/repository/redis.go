package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisRepository caches derived values, currently per-product sales totals.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryFromClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}), cfg.TTL)
}

// NewRedisRepositoryFromClient wraps an existing client. A ttl of zero keeps
// entries until they are invalidated.
func NewRedisRepositoryFromClient(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func salesTotalKey(productID uuid.UUID) string {
	return fmt.Sprintf("sales_total:%s", productID)
}

func salesVersionKey(productID uuid.UUID) string {
	return fmt.Sprintf("sales_version:%s", productID)
}

// GetSalesTotal reports the cached total and whether one was present. On a
// miss it returns the version a following SetSalesTotal must carry. Entries
// are stored as "version:total" and only count when their version is current,
// so a total computed before an invalidation is never served after it.
func (r *RedisRepository) GetSalesTotal(ctx context.Context, productID uuid.UUID) (int64, int64, bool, error) {
	vals, err := r.client.MGet(ctx, salesVersionKey(productID), salesTotalKey(productID)).Result()
	if err != nil {
		return 0, 0, false, err
	}
	var version int64
	if s, ok := vals[0].(string); ok {
		if version, err = strconv.ParseInt(s, 10, 64); err != nil {
			return 0, 0, false, fmt.Errorf("corrupt sales version for %s: %w", productID, err)
		}
	}
	entry, ok := vals[1].(string)
	if !ok {
		return 0, version, false, nil
	}
	v, t, found := strings.Cut(entry, ":")
	if !found {
		return 0, 0, false, fmt.Errorf("corrupt sales total for %s: %q", productID, entry)
	}
	entryVersion, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("corrupt sales total for %s: %w", productID, err)
	}
	total, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("corrupt sales total for %s: %w", productID, err)
	}
	if entryVersion != version {
		return 0, version, false, nil
	}
	return total, version, true, nil
}

// SetSalesTotal stores total under the version returned by the miss that
// preceded its computation.
func (r *RedisRepository) SetSalesTotal(ctx context.Context, productID uuid.UUID, version, total int64) error {
	return r.client.Set(ctx, salesTotalKey(productID), fmt.Sprintf("%d:%d", version, total), r.ttl).Err()
}

// InvalidateSalesTotal bumps the version and drops the entry.
func (r *RedisRepository) InvalidateSalesTotal(ctx context.Context, productID uuid.UUID) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, salesVersionKey(productID))
		pipe.Del(ctx, salesTotalKey(productID))
		return nil
	})
	return err
}
