package event

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyTTL caps how long a call's dedup set may outlive a missed
// eviction (e.g. the process died between dispatch and evict).
const redisKeyTTL = 24 * time.Hour

// RedisDedup is a DedupStore backed by a Redis set per call. It lets
// multiple control-plane replicas share one idempotence space; the
// in-process MemoryDedup remains the default for single-node deployments.
type RedisDedup struct {
	client *redis.Client
	prefix string
}

// NewRedisDedup creates a Redis-backed dedup store. prefix namespaces the
// keys; empty defaults to "sonara:event".
func NewRedisDedup(client *redis.Client, prefix string) *RedisDedup {
	if prefix == "" {
		prefix = "sonara:event"
	}
	return &RedisDedup{client: client, prefix: prefix}
}

func (d *RedisDedup) key(callID string) string {
	return fmt.Sprintf("%s:%s", d.prefix, callID)
}

// MarkOnce implements DedupStore via SADD, which reports whether the
// member was new.
func (d *RedisDedup) MarkOnce(ctx context.Context, callID string, kind Kind) (bool, error) {
	key := d.key(callID)
	added, err := d.client.SAdd(ctx, key, string(kind)).Result()
	if err != nil {
		return false, fmt.Errorf("event: redis SADD: %w", err)
	}
	if err := d.client.Expire(ctx, key, redisKeyTTL).Err(); err != nil {
		return false, fmt.Errorf("event: redis EXPIRE: %w", err)
	}
	return added == 1, nil
}

// Evict implements DedupStore.
func (d *RedisDedup) Evict(ctx context.Context, callID string) error {
	if err := d.client.Del(ctx, d.key(callID)).Err(); err != nil {
		return fmt.Errorf("event: redis DEL: %w", err)
	}
	return nil
}

var _ DedupStore = (*RedisDedup)(nil)
