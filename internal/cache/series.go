// Package cache provides a Redis read-through cache for candle series.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

const (
	defaultTTL       = 5 * time.Minute
	defaultNamespace = "series"
	keyDateLayout    = "20060102"
	scanBatch        = 200
)

// CachingSeriesProvider decorates a SeriesProvider with Redis caching. Only
// successful fetches are cached; errors always reach the caller.
type CachingSeriesProvider struct {
	inner     scanner.SeriesProvider
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	logger    zerolog.Logger
}

// NewCachingSeriesProvider wraps inner. A nil client bypasses the cache. A
// non-positive ttl defaults to five minutes and an empty namespace to "series".
func NewCachingSeriesProvider(rdb *redis.Client, ttl time.Duration, inner scanner.SeriesProvider, namespace string, logger zerolog.Logger) *CachingSeriesProvider {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &CachingSeriesProvider{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		logger:    logger,
	}
}

// NewClient opens a Redis client from configuration and checks it with PING.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// FetchSeries returns the cached series for the range or loads and caches it.
func (c *CachingSeriesProvider) FetchSeries(ctx context.Context, code string, start, end time.Time) (*models.Series, error) {
	if c.rdb == nil {
		return c.inner.FetchSeries(ctx, code, start, end)
	}

	key := c.cacheKey(code, start, end)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out models.Series
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		c.logger.Debug().Str("key", key).Msg("dropping corrupt cache entry")
		_ = c.rdb.Del(ctx, key).Err()
	} else if err != nil && err != redis.Nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
	}

	out, err := c.inner.FetchSeries(ctx, code, start, end)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return out, nil
}

// Invalidate drops every cached range of the given codes.
func (c *CachingSeriesProvider) Invalidate(ctx context.Context, codes ...string) error {
	if c.rdb == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		prefix := c.cacheKeyPrefix(code)
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		if err := c.deleteByPattern(ctx, prefix+"*"); err != nil {
			return fmt.Errorf("invalidate %s: %w", code, err)
		}
	}
	return nil
}

// Close closes the Redis client.
func (c *CachingSeriesProvider) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *CachingSeriesProvider) cacheKey(code string, start, end time.Time) string {
	return fmt.Sprintf("%s%s:%s", c.cacheKeyPrefix(code), keyDate(start), keyDate(end))
}

func (c *CachingSeriesProvider) cacheKeyPrefix(code string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(code))
}

func (c *CachingSeriesProvider) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			return nil
		}
	}
}

func keyDate(t time.Time) string {
	if t.IsZero() {
		return "open"
	}
	return t.Format(keyDateLayout)
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "_")
}
