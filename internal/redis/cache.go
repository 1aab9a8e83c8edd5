package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dino-runner/internal/config"
	"github.com/dino-runner/internal/domain"
)

// topKey holds one field per requested limit, each a JSON leaderboard page.
const topKey = "leaderboard:top"

// LeaderboardCache caches leaderboard pages in Redis
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLeaderboardCache creates a new Redis leaderboard cache
func NewLeaderboardCache(cfg *config.RedisConfig, logger *slog.Logger) (*LeaderboardCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewLeaderboardCacheWithClient(client, cfg.CacheTTL, logger), nil
}

// NewLeaderboardCacheWithClient wraps an existing client.
func NewLeaderboardCacheWithClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Close closes the Redis connection
func (c *LeaderboardCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis is reachable
func (c *LeaderboardCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached page for limit, or domain.ErrCacheMiss.
func (c *LeaderboardCache) Get(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	raw, err := c.client.HGet(ctx, topKey, field(limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("getting cached leaderboard: %w", err)
	}
	entries, err := decodePage(raw)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Set stores the page for limit and refreshes the key's expiry.
func (c *LeaderboardCache) Set(ctx context.Context, limit int, entries []domain.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding leaderboard page: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, topKey, field(limit), raw)
		pipe.Expire(ctx, topKey, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("caching leaderboard: %w", err)
	}
	return nil
}

// Invalidate drops every cached page.
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, topKey).Err(); err != nil {
		return fmt.Errorf("invalidating leaderboard cache: %w", err)
	}
	return nil
}

func field(limit int) string {
	return strconv.Itoa(limit)
}

func decodePage(raw []byte) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding cached leaderboard: %w", err)
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return entries, nil
}
