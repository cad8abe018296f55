package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/slicewise/slicewise/mesh"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := Config{
		Addr:       mr.Addr(),
		DefaultTTL: time.Minute,
	}

	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_Unreachable(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Minute))

	value, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
}

func TestManager_GetMiss(t *testing.T) {
	_, manager := setupTestRedis(t)

	_, err := manager.Get(context.Background(), "absent")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSONRoundTrip(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	in := map[string]int{"answer": 42}
	require.NoError(t, manager.SetJSON(ctx, "j", in, 0))

	var out map[string]int
	require.NoError(t, manager.GetJSON(ctx, "j", &out))
	assert.Equal(t, in, out)
}

func TestManager_DeleteAndExists(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	require.NoError(t, manager.Set(ctx, "b", "2", 0))

	count, err := manager.Exists(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, manager.Delete(ctx, "a", "b"))
	count, err = manager.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestManager_ClosedRejectsCalls(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close(), "close is idempotent")

	_, err := manager.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.False(t, IsCacheMiss(err))
}

func TestManager_TTLExpiry(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "short", "v", time.Second))
	mr.FastForward(2 * time.Second)

	_, err := manager.Get(ctx, "short")
	assert.True(t, IsCacheMiss(err))
}

func TestFeatureCache_RoundTrip(t *testing.T) {
	_, manager := setupTestRedis(t)
	fc := NewFeatureCache(manager, time.Minute, zap.NewNop())
	ctx := context.Background()

	rec := mesh.FeatureRecord{HeightMM: 12.5, Watertight: true, MeshIssue: "ok"}
	key := FeatureKey([]byte("stl-bytes"), mesh.DefaultConfig())

	_, ok := fc.Get(ctx, key)
	assert.False(t, ok)

	fc.Put(ctx, key, rec)
	got, ok := fc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestFeatureKey_SensitiveToBytesAndConfig(t *testing.T) {
	cfg := mesh.DefaultConfig()
	base := FeatureKey([]byte("abc"), cfg)

	assert.NotEqual(t, base, FeatureKey([]byte("abd"), cfg))

	cfg.OverhangThresholdDeg = 45
	assert.NotEqual(t, base, FeatureKey([]byte("abc"), cfg),
		"tolerance changes must invalidate cached records")

	assert.Equal(t, base, FeatureKey([]byte("abc"), mesh.DefaultConfig()))
}
