package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper is a best-effort seen-reference cache for external notification
// references. It is a fast path only; reconciliation correctness rests on
// the order status check, not on this cache. Callers mark a reference seen
// only after its settlement committed, so a transient failure stays
// retryable on redelivery.
type Deduper interface {
	Seen(ctx context.Context, ref string) bool
	MarkSeen(ctx context.Context, ref string)
}

// RedisDeduper implements Deduper with a TTL key per reference.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) key(ref string) string {
	return "dedup:bank-txn:" + ref
}

// Seen reports whether ref was already marked. On any Redis error it returns
// false so a cache outage never drops notifications.
func (d *RedisDeduper) Seen(ctx context.Context, ref string) bool {
	n, err := d.client.Exists(ctx, d.key(ref)).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// MarkSeen records ref, best-effort.
func (d *RedisDeduper) MarkSeen(ctx context.Context, ref string) {
	d.client.Set(ctx, d.key(ref), "1", d.ttl)
}
