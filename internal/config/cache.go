package config

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// SettingsTTL bounds how stale cached module settings may be. Admin-side
// changes take effect within this window.
const SettingsTTL = 60 * time.Second

// SettingsCache is a read-mostly cache for module settings and template
// schemas. When REDIS_ADDR is set entries are shared through Redis; otherwise
// a per-process map with the same TTL is used.
type SettingsCache struct {
	rdb *redis.Client

	mu      sync.RWMutex
	entries map[string]localEntry
}

type localEntry struct {
	data      []byte
	expiresAt time.Time
}

var (
	cacheOnce sync.Once
	cache     *SettingsCache
)

// Cache returns the process-wide settings cache.
func Cache() *SettingsCache {
	cacheOnce.Do(func() {
		cache = &SettingsCache{entries: make(map[string]localEntry)}
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			cache.rdb = redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: os.Getenv("REDIS_PASSWORD"),
			})
			if err := cache.rdb.Ping(context.Background()).Err(); err != nil {
				logrus.WithError(err).Warn("redis unreachable, falling back to in-process settings cache")
				cache.rdb = nil
			}
		}
	})
	return cache
}

// Get unmarshals the cached value for key into out, returning false on a miss
// or decode failure.
func (c *SettingsCache) Get(ctx context.Context, key string, out interface{}) bool {
	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err != nil {
			return false
		}
		return json.Unmarshal(data, out) == nil
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return false
	}
	return json.Unmarshal(entry.data, out) == nil
}

// Set stores value under key for SettingsTTL.
func (c *SettingsCache) Set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, SettingsTTL).Err(); err != nil {
			logrus.WithError(err).Warn("failed to write settings cache")
		}
		return
	}
	c.mu.Lock()
	c.entries[key] = localEntry{data: data, expiresAt: time.Now().Add(SettingsTTL)}
	c.mu.Unlock()
}

// Invalidate drops the cached value for key, used when admin updates must be
// visible immediately.
func (c *SettingsCache) Invalidate(ctx context.Context, key string) {
	if c.rdb != nil {
		c.rdb.Del(ctx, key)
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
