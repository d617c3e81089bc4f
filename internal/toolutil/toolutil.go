// Package toolutil provides shared helpers for the REST handlers and MCP tools.
package toolutil

import (
	"context"
	"encoding/json"
	"maps"
	"strings"

	"github.com/anatolykoptev/go_douyin/internal/engine"
)

// CacheLoadJSON tries to load a cached value of type T from c.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, c *engine.Cache, key string) (T, bool) {
	var zero T
	cached, ok := c.Get(ctx, key)
	if !ok {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(cached, &out); err != nil {
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in c.
func CacheStoreJSON[T any](ctx context.Context, c *engine.Cache, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, data)
}

// MergeParams returns base overlaid with fixed. Empty values in base are
// dropped so optional query args are not forwarded as "".
func MergeParams(base, fixed map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(fixed))
	for k, v := range base {
		if v != "" {
			out[k] = v
		}
	}
	maps.Copy(out, fixed)
	return out
}

// NormAccount trims an account name; "" means automatic selection.
func NormAccount(name string) string {
	return strings.TrimSpace(name)
}
