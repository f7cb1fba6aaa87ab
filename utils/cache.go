package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultCacheTTL = 5 * time.Minute
	// DashboardCachePrefix namespaces cached dashboards.
	DashboardCachePrefix = "dashboard:"
)

// DashboardCacheKey keys a user's dashboard by calendar day, so a cached entry
// never outlives the period it describes.
func DashboardCacheKey(userID uint, now time.Time) string {
	return fmt.Sprintf("%s%d:%s", DashboardCachePrefix, userID, now.Format("2006-01-02"))
}

// DashboardUserPrefix matches every cached dashboard of one user.
func DashboardUserPrefix(userID uint) string {
	return fmt.Sprintf("%s%d:", DashboardCachePrefix, userID)
}

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(ctx context.Context, key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// CacheGetJSON decodes a cached JSON value into v.
func CacheGetJSON(ctx context.Context, key string, v interface{}) bool {
	b, ok := CacheGetBytes(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// CacheSetBytes stores bytes; a non-positive ttl means the default.
func CacheSetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	CacheSetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(ctx context.Context, prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			break
		}
		cursor = cur
		if len(keys) > 0 {
			pipe := rc.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			_, _ = pipe.Exec(ctx)
		}
		if cursor == 0 {
			break
		}
	}
}
