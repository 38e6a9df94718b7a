package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"chainscreen/internal/liststore"
	"chainscreen/internal/platform/metrics"
)

// KV is the small cache contract the cached matcher needs. The redis client
// satisfies it via RedisKV; tests use an in-memory fake.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedMatcher caches match results keyed by snapshot version, so cached
// entries can never leak across list versions. Determinism is preserved:
// a hit replays exactly what the inner matcher produced for that version.
// Cache failures degrade to a direct match, never to a screening error.
type CachedMatcher struct {
	inner   Matcher
	kv      KV
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// CacheOption configures a CachedMatcher.
type CacheOption func(*CachedMatcher)

// WithCacheLogger sets the structured logger.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *CachedMatcher) { c.logger = logger }
}

// WithCacheMetrics enables hit/miss counters.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachedMatcher) { c.metrics = m }
}

// WithCacheTTL overrides the default entry lifetime.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *CachedMatcher) { c.ttl = ttl }
}

// NewCached wraps a matcher with a result cache.
func NewCached(inner Matcher, kv KV, opts ...CacheOption) *CachedMatcher {
	c := &CachedMatcher{
		inner: inner,
		kv:    kv,
		ttl:   15 * time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Match implements Matcher.
func (c *CachedMatcher) Match(ctx context.Context, view *liststore.View, identifier string, t liststore.EntryType, minConfidence float64) ([]MatchCandidate, error) {
	subject, err := normalizeSubject(identifier, t)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("match:%s:%s:%.4f:%s", view.ID(), t, minConfidence, subject)

	if raw, ok, err := c.kv.Get(ctx, key); err != nil {
		if c.logger != nil {
			c.logger.WarnContext(ctx, "match cache read failed", "error", err)
		}
	} else if ok {
		var cached []MatchCandidate
		if err := json.Unmarshal(raw, &cached); err == nil {
			if c.metrics != nil {
				c.metrics.MatchCacheHits.Inc()
			}
			return cached, nil
		}
	}
	if c.metrics != nil {
		c.metrics.MatchCacheMisses.Inc()
	}

	candidates, err := c.inner.Match(ctx, view, subject, t, minConfidence)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(candidates); err == nil {
		if err := c.kv.Set(ctx, key, raw, c.ttl); err != nil && c.logger != nil {
			c.logger.WarnContext(ctx, "match cache write failed", "error", err)
		}
	}
	return candidates, nil
}

// RedisKV adapts a go-redis client to the KV contract.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps a redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get implements KV.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set implements KV.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}
