package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/casenetai/anonymizer/internal/anonymizer"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ReportCache is a Redis-backed cache of anonymization reports, keyed by
// document content hash plus processing parameters. Repeat uploads of the
// same document skip the detector pipeline entirely.
type ReportCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   int64
	misses int64
}

// NewReportCache creates a Redis-backed report cache
func NewReportCache(config *Config, logger *zap.Logger) (*ReportCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	cache := &ReportCache{
		client: client,
		config: config,
		logger: logger,
	}

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Report cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Duration("default_ttl", config.DefaultTTL),
	)

	return cache, nil
}

// Key derives the cache key for one document-processing request. Documents
// are identified by content hash; method and threshold are part of the key
// since they change the result.
func (c *ReportCache) Key(text string, method anonymizer.Method, minConfidence float64) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:report:%s:%s:%.2f", c.config.KeyPrefix, hex.EncodeToString(sum[:]), method, minConfidence)
}

// Get fetches a cached report. A nil report with nil error means a miss.
func (c *ReportCache) Get(ctx context.Context, key string) (*anonymizer.Report, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var report anonymizer.Report
	if err := json.Unmarshal(data, &report); err != nil {
		// Corrupt entry; treat as a miss and let it be overwritten.
		atomic.AddInt64(&c.misses, 1)
		c.logger.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return &report, nil
}

// Set stores a report under the default TTL
func (c *ReportCache) Set(ctx context.Context, key string, report *anonymizer.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}

	return nil
}

// Stats returns hit/miss counters since startup
func (c *ReportCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)

	stats := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// Close releases the Redis connection pool
func (c *ReportCache) Close() error {
	return c.client.Close()
}

// maskRedisURL hides credentials when logging the connection target
func maskRedisURL(redisURL string) string {
	parsed, err := url.Parse(redisURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		parsed.User = url.User("***")
	}
	return parsed.String()
}
