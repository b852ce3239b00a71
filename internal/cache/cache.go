/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for expensive
// region analysis results.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types.
const (
	DefaultAnalysisTTL = 24 * time.Hour
	DefaultSilenceTTL  = 24 * time.Hour
	DefaultLoudnessTTL = 24 * time.Hour
)

// Key prefixes for Redis cache.
const (
	KeyMaxAmplitude = "regionengine:cache:max_amplitude:" // + region id
	KeyRMS          = "regionengine:cache:rms:"           // + region id
	KeySilence      = "regionengine:cache:silence:"       // + region id
	KeyLoudness     = "regionengine:cache:loudness:"      // + region id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AnalysisTTL time.Duration
	SilenceTTL  time.Duration
	LoudnessTTL time.Duration

	// DisableOnError disables caching (falling back to always
	// recomputing) on a Redis error, rather than failing the caller.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		AnalysisTTL:    DefaultAnalysisTTL,
		SilenceTTL:     DefaultSilenceTTL,
		LoudnessTTL:    DefaultLoudnessTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis analysis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "analysis_cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis analysis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "analysis_cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling analysis cache due to Redis error")
	}
}

func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// CachedMaxAmplitude is a region's cached peak sample magnitude.
type CachedMaxAmplitude struct {
	Value float32 `json:"value"`
}

// GetMaxAmplitude retrieves a region's cached max amplitude.
func (c *Cache) GetMaxAmplitude(ctx context.Context, regionID string) (float32, bool) {
	var v CachedMaxAmplitude
	found, err := c.get(ctx, KeyMaxAmplitude+regionID, &v)
	if err != nil || !found {
		return 0, false
	}
	c.logger.Debug().Str("region_id", regionID).Msg("max amplitude cache hit")
	return v.Value, true
}

// SetMaxAmplitude caches a region's max amplitude.
func (c *Cache) SetMaxAmplitude(ctx context.Context, regionID string, value float32) error {
	c.logger.Debug().Str("region_id", regionID).Float32("value", value).Msg("caching max amplitude")
	return c.set(ctx, KeyMaxAmplitude+regionID, CachedMaxAmplitude{Value: value}, c.config.AnalysisTTL)
}

// CachedRMS is a region's cached RMS level.
type CachedRMS struct {
	Value float64 `json:"value"`
}

// GetRMS retrieves a region's cached RMS level.
func (c *Cache) GetRMS(ctx context.Context, regionID string) (float64, bool) {
	var v CachedRMS
	found, err := c.get(ctx, KeyRMS+regionID, &v)
	if err != nil || !found {
		return 0, false
	}
	c.logger.Debug().Str("region_id", regionID).Msg("rms cache hit")
	return v.Value, true
}

// SetRMS caches a region's RMS level.
func (c *Cache) SetRMS(ctx context.Context, regionID string, value float64) error {
	c.logger.Debug().Str("region_id", regionID).Float64("value", value).Msg("caching rms")
	return c.set(ctx, KeyRMS+regionID, CachedRMS{Value: value}, c.config.AnalysisTTL)
}

// CachedSilenceRange is one detected silent range, in region-local samples.
type CachedSilenceRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// CachedSilence is a region's cached set of silent ranges for a given
// threshold/min-length pair.
type CachedSilence struct {
	Ranges []CachedSilenceRange `json:"ranges"`
}

func silenceCacheKey(regionID string, thresholdDB float64, minLen int64) string {
	return fmt.Sprintf("%s%s:%.2f:%d", KeySilence, regionID, thresholdDB, minLen)
}

// GetSilence retrieves a region's cached silence ranges for the given
// parameters.
func (c *Cache) GetSilence(ctx context.Context, regionID string, thresholdDB float64, minLen int64) ([]CachedSilenceRange, bool) {
	var v CachedSilence
	found, err := c.get(ctx, silenceCacheKey(regionID, thresholdDB, minLen), &v)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("region_id", regionID).Int("ranges", len(v.Ranges)).Msg("silence cache hit")
	return v.Ranges, true
}

// SetSilence caches a region's silence ranges for the given parameters.
func (c *Cache) SetSilence(ctx context.Context, regionID string, thresholdDB float64, minLen int64, ranges []CachedSilenceRange) error {
	c.logger.Debug().Str("region_id", regionID).Int("ranges", len(ranges)).Msg("caching silence ranges")
	return c.set(ctx, silenceCacheKey(regionID, thresholdDB, minLen), CachedSilence{Ranges: ranges}, c.config.SilenceTTL)
}

// CachedLoudness is a region's cached EBU R128-style loudness summary.
type CachedLoudness struct {
	IntegratedLUFS float64 `json:"integrated_lufs"`
	ShortTermLUFS  float64 `json:"short_term_lufs"`
	MomentaryLUFS  float64 `json:"momentary_lufs"`
	TruePeakDB     float64 `json:"true_peak_db"`
}

// GetLoudness retrieves a region's cached loudness summary.
func (c *Cache) GetLoudness(ctx context.Context, regionID string) (CachedLoudness, bool) {
	var v CachedLoudness
	found, err := c.get(ctx, KeyLoudness+regionID, &v)
	if err != nil || !found {
		return CachedLoudness{}, false
	}
	c.logger.Debug().Str("region_id", regionID).Msg("loudness cache hit")
	return v, true
}

// SetLoudness caches a region's loudness summary.
func (c *Cache) SetLoudness(ctx context.Context, regionID string, v CachedLoudness) error {
	c.logger.Debug().Str("region_id", regionID).Msg("caching loudness")
	return c.set(ctx, KeyLoudness+regionID, v, c.config.LoudnessTTL)
}

// InvalidateRegion removes a region's cached max amplitude, RMS and
// loudness results, called when the region's underlying content changes.
// Silence results, keyed per threshold and minimum length, are not removed.
func (c *Cache) InvalidateRegion(ctx context.Context, regionID string) error {
	c.logger.Debug().Str("region_id", regionID).Msg("invalidating analysis caches")
	if err := c.delete(ctx, KeyMaxAmplitude+regionID); err != nil {
		return err
	}
	if err := c.delete(ctx, KeyRMS+regionID); err != nil {
		return err
	}
	return c.delete(ctx, KeyLoudness+regionID)
}
