package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/travel-planner/internal/country"
)

// Cache wraps a Redis client and provides typed get/set/delete for country records.
// Entries carry no expiry: cached countries are immutable until deleted.
type Cache struct {
	client *redis.Client
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// key returns the Redis key for the given country code.
func key(code string) string {
	return "country:" + strings.ToUpper(strings.TrimSpace(code))
}

// Get retrieves a country from cache.
// Returns nil, nil on a cache miss (not an error).
func (c *Cache) Get(ctx context.Context, code string) (*country.Country, error) {
	val, err := c.client.Get(ctx, key(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get for country %s: %w", code, err)
	}

	var data country.Country
	if err := json.Unmarshal(val, &data); err != nil {
		return nil, fmt.Errorf("unmarshaling cached country %s: %w", code, err)
	}

	return &data, nil
}

// Set stores a country in cache without expiry.
func (c *Cache) Set(ctx context.Context, data *country.Country) error {
	if data == nil {
		return nil
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling country %s: %w", data.Code, err)
	}

	if err := c.client.Set(ctx, key(data.Code), b, 0).Err(); err != nil {
		return fmt.Errorf("cache set for country %s: %w", data.Code, err)
	}

	return nil
}

// Delete removes the cached entry for the given code.
func (c *Cache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, key(code)).Err(); err != nil {
		return fmt.Errorf("cache delete for country %s: %w", code, err)
	}
	return nil
}
