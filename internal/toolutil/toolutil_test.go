package toolutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_douyin/internal/engine"
)

func TestMergeParams(t *testing.T) {
	got := MergeParams(
		map[string]string{"a": "1", "empty": "", "channel": "mine"},
		map[string]string{"channel": "channel_pc_web"},
	)
	assert.Equal(t, map[string]string{"a": "1", "channel": "channel_pc_web"}, got)
	assert.Empty(t, MergeParams(nil, nil))
}

func TestCacheJSON(t *testing.T) {
	ctx := context.Background()
	c := engine.NewCache(engine.CacheConfig{TTL: time.Minute})
	t.Cleanup(func() { _ = c.Close() })

	_, ok := CacheLoadJSON[map[string]any](ctx, c, "k")
	assert.False(t, ok)

	CacheStoreJSON(ctx, c, "k", map[string]any{"n": 1})
	got, ok := CacheLoadJSON[map[string]any](ctx, c, "k")
	require.True(t, ok)
	assert.Equal(t, float64(1), got["n"])

	_, ok = CacheLoadJSON[[]int](ctx, c, "k")
	assert.False(t, ok, "shape mismatch is a miss")
}

func TestCacheJSONNilCache(t *testing.T) {
	ctx := context.Background()
	CacheStoreJSON(ctx, nil, "k", 1)
	_, ok := CacheLoadJSON[int](ctx, nil, "k")
	assert.False(t, ok)
}

func TestNormAccount(t *testing.T) {
	assert.Equal(t, "a", NormAccount("  a "))
	assert.Equal(t, "", NormAccount(" "))
}
