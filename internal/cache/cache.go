// Package cache stores computed suggestion results in Redis so repeated
// queries for the same spot do not re-hit Overpass and the forecast
// service.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ruvini-Rangathara/trip-planner-backend/internal/suggest"
)

// defaultTTL keeps entries short-lived; forecasts shift within hours.
const defaultTTL = 15 * time.Minute

// Cache wraps a Redis client with typed get/set/delete for suggestion
// results.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a Cache with the default 15-minute TTL.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

// key derives the Redis key for a suggestion request. Coordinates are
// rounded to 4 decimals (~11 m) so nearby repeats share an entry.
func key(opts suggest.Options) string {
	minGood := -1
	if opts.MinGoodDays != nil {
		minGood = *opts.MinGoodDays
	}
	return fmt.Sprintf("suggest:%.4f:%.4f:%.0f:%s:%s:%s:%d:%d",
		opts.Center.Lat, opts.Center.Lon, opts.RadiusM,
		strings.Join(opts.Kinds, ","), opts.Start, opts.End,
		minGood, opts.Limit)
}

// Get retrieves cached suggestions for the given request.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, opts suggest.Options) ([]suggest.Suggestion, error) {
	val, err := c.client.Get(ctx, key(opts)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var suggestions []suggest.Suggestion
	if err := json.Unmarshal([]byte(val), &suggestions); err != nil {
		return nil, fmt.Errorf("unmarshaling cached suggestions: %w", err)
	}
	return suggestions, nil
}

// Set stores suggestions for the given request with the configured TTL.
// A nil slice is a no-op; an empty non-nil slice is cached, since "no
// candidates here" is a valid answer worth remembering.
func (c *Cache) Set(ctx context.Context, opts suggest.Options, suggestions []suggest.Suggestion) error {
	if suggestions == nil {
		return nil
	}

	b, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("marshaling suggestions: %w", err)
	}

	if err := c.client.Set(ctx, key(opts), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete removes the cached entry for the given request.
func (c *Cache) Delete(ctx context.Context, opts suggest.Options) error {
	if err := c.client.Del(ctx, key(opts)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
