package permission

import (
	"context"
	"encoding/json"
	"time"

	"licensing-controlplane/pkg/config"
	"licensing-controlplane/pkg/rediskey"
	"licensing-controlplane/services/profile"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Cache stores compiled permission sets in redis under a versioned key.
// Invalidation never deletes entries: it increments a per-license version
// counter so every cached set for that license misses on the next lookup
// and expires on its own TTL.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

type CacheParams struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewCache(p CacheParams) *Cache {
	ttl := p.Config.Entitlement.PermissionCacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{rdb: p.Redis, ttl: ttl}
}

func (c *Cache) version(ctx context.Context, licenseID string) int64 {
	v, err := c.rdb.Get(ctx, rediskey.BuildLicenseVersionKey(licenseID)).Int64()
	if err != nil && err != redis.Nil {
		zap.L().Warn("failed read license version", zap.Error(err))
	}
	return v
}

// Get returns the cached set for the license's current version, or a miss.
func (c *Cache) Get(ctx context.Context, licenseID, userID string) (*PermissionSet, bool) {
	if c.rdb == nil {
		return nil, false
	}

	key := rediskey.BuildPermissionKey(licenseID, userID, c.version(ctx, licenseID))
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("failed read permission cache", zap.Error(err))
		}
		return nil, false
	}

	var set PermissionSet
	if err := json.Unmarshal(raw, &set); err != nil {
		zap.L().Warn("corrupt permission cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if set.Features == nil {
		set.Features = map[string]profile.Rights{}
	}
	return &set, true
}

// Set caches the compiled set under the license's current version.
func (c *Cache) Set(ctx context.Context, licenseID, userID string, set *PermissionSet) {
	if c.rdb == nil {
		return
	}

	raw, err := json.Marshal(set)
	if err != nil {
		zap.L().Warn("failed marshal permission set", zap.Error(err))
		return
	}

	key := rediskey.BuildPermissionKey(licenseID, userID, c.version(ctx, licenseID))
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		zap.L().Warn("failed write permission cache", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateLicense bumps the license's version counter. Implements the
// entitlement service's cache invalidation hook.
func (c *Cache) InvalidateLicense(ctx context.Context, licenseID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Incr(ctx, rediskey.BuildLicenseVersionKey(licenseID)).Err()
}
