package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"price-advisor/internal/config"
	"price-advisor/internal/metrics"
	"price-advisor/internal/storage"
)

// AnalysisCache keeps owners' stored analyses in Redis to spare the database
// on dashboard reads. A nil *AnalysisCache is valid and disables caching, the
// same optional-dependency shape the storage layer uses.
type AnalysisCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *metrics.Registry
	logger  zerolog.Logger
}

// New connects to Redis per config. An empty address yields a nil cache
// without error.
func New(ctx context.Context, cfg config.RedisConfig, reg *metrics.Registry, logger zerolog.Logger) (*AnalysisCache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &AnalysisCache{
		client:  client,
		ttl:     cfg.TTL,
		metrics: reg,
		logger:  logger,
	}, nil
}

func analysesKey(owner string) string {
	return "priceadvisor:analyses:" + owner
}

// GetAnalyses returns the cached analysis list for an owner. The second
// return reports whether the lookup hit.
func (c *AnalysisCache) GetAnalyses(ctx context.Context, owner string) ([]storage.ProductAnalysis, bool) {
	if c == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, analysesKey(owner)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("owner", owner).Msg("cache read failed")
		}
		c.metrics.CacheMisses.Inc()
		return nil, false
	}

	var analyses []storage.ProductAnalysis
	if err := json.Unmarshal(payload, &analyses); err != nil {
		c.logger.Warn().Err(err).Str("owner", owner).Msg("cache payload corrupt, dropping")
		_ = c.client.Del(ctx, analysesKey(owner)).Err()
		c.metrics.CacheMisses.Inc()
		return nil, false
	}

	c.metrics.CacheHits.Inc()
	return analyses, true
}

// SetAnalyses stores an owner's analysis list with the configured TTL.
// Failures are logged rather than surfaced; the cache is best effort.
func (c *AnalysisCache) SetAnalyses(ctx context.Context, owner string, analyses []storage.ProductAnalysis) {
	if c == nil {
		return
	}

	payload, err := json.Marshal(analyses)
	if err != nil {
		c.logger.Warn().Err(err).Str("owner", owner).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(ctx, analysesKey(owner), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("owner", owner).Msg("cache write failed")
	}
}

// InvalidateOwner drops an owner's cached entries after their stored
// analyses change.
func (c *AnalysisCache) InvalidateOwner(ctx context.Context, owner string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, analysesKey(owner)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("owner", owner).Msg("cache invalidate failed")
	}
}

// Ping reports cache backend health.
func (c *AnalysisCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (c *AnalysisCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
