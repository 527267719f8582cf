// Package cache keeps read-through copies of bracket snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DioBrando1866/tekken-tournaments/models"
)

const keyPrefix = "bracket:"

// Connect parses a redis:// or rediss:// URL and checks the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type BracketCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBracketCache(client *redis.Client, ttl time.Duration) *BracketCache {
	return &BracketCache{client: client, ttl: ttl}
}

func bracketKey(tournamentID int) string {
	return fmt.Sprintf("%s%d", keyPrefix, tournamentID)
}

// Get returns the cached snapshot. A miss is reported as (nil, false, nil).
func (c *BracketCache) Get(ctx context.Context, tournamentID int) (*models.BracketSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, bracketKey(tournamentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached bracket: %w", err)
	}

	var snap models.BracketSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		c.client.Del(ctx, bracketKey(tournamentID))
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *BracketCache) Set(ctx context.Context, snap *models.BracketSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode bracket for cache: %w", err)
	}
	return c.client.Set(ctx, bracketKey(snap.TournamentID), raw, c.ttl).Err()
}

func (c *BracketCache) Invalidate(ctx context.Context, tournamentID int) error {
	return c.client.Del(ctx, bracketKey(tournamentID)).Err()
}
