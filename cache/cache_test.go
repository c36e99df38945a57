package cache

import (
	"context"
	"testing"
	"time"

	"github.com/anoixa/grammable/cache/memory"
	"github.com/anoixa/grammable/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestMemory(t *testing.T) Provider {
	t.Helper()
	provider, err := memory.NewMemory(memory.Config{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

func TestMemoryCache(t *testing.T) {
	cache := newTestMemory(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "test_key", "test_value", 10*time.Second))

	var got string
	require.NoError(t, cache.Get(ctx, "test_key", &got))
	assert.Equal(t, "test_value", got)

	exists, err := cache.Exists(ctx, "test_key")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, cache.Delete(ctx, "test_key"))
	err = cache.Get(ctx, "test_key", &got)
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, cache.Set(ctx, "raw", []byte("bytes"), time.Minute))
	var raw []byte
	require.NoError(t, cache.Get(ctx, "raw", &raw))
	assert.Equal(t, []byte("bytes"), raw)

	require.NoError(t, cache.Clear(ctx))
	err = cache.Get(ctx, "raw", &raw)
	assert.True(t, IsCacheMiss(err))
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(map[string]interface{}{
		"provider_type": "redis",
		"address":       "cache:6379",
		"password":      "secret",
		"db":            "2",
		"pool_size":     float64(20),
	})
	require.NoError(t, err)
	assert.Equal(t, "redis", opts.ProviderType)
	assert.Equal(t, "cache:6379", opts.Address)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, 5, opts.MinIdleConns)

	opts, err = DecodeOptions(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "memory", opts.ProviderType)
	assert.Equal(t, int64(1000000), opts.NumCounters)
}

func TestNewFactory(t *testing.T) {
	factory, err := NewFactory(map[string]interface{}{"provider_type": "memory"})
	require.NoError(t, err)
	defer factory.Close()
	assert.Equal(t, "memory", factory.GetProvider().Name())

	ctx := context.Background()
	require.NoError(t, factory.Set(ctx, "k", 42, time.Minute))
	var v int
	require.NoError(t, factory.Get(ctx, "k", &v))
	assert.Equal(t, 42, v)
	require.NoError(t, factory.Delete(ctx, "k"))

	_, err = NewFactory(map[string]interface{}{"provider_type": "memcached"})
	assert.ErrorContains(t, err, "unsupported cache provider type")
}

func TestKeyBuilder(t *testing.T) {
	assert.Equal(t, "gram:7", Gram.BuildID(uint(7)))
	assert.Equal(t, "empty:gram:7", Empty.Build(Gram.BuildID(7)))
	assert.Equal(t, "gram", Gram.Build())
}

func TestHelper_Gram(t *testing.T) {
	helper := NewHelper(newTestMemory(t), HelperConfig{GramCacheTTL: time.Minute})
	ctx := context.Background()

	gram := &models.Gram{
		Model:   gorm.Model{ID: 3},
		Message: "cached",
		Image:   "original/2026/01/01/abc.png",
		UserID:  1,
		User:    models.User{Username: "alice"},
	}
	require.NoError(t, helper.CacheGram(ctx, gram))

	var got models.Gram
	require.NoError(t, helper.GetCachedGram(ctx, 3, &got))
	assert.Equal(t, "cached", got.Message)
	assert.Equal(t, "alice", got.User.Username)

	require.NoError(t, helper.CacheMissingGram(ctx, 9))
	assert.True(t, helper.IsMissingGram(ctx, 9))

	require.NoError(t, helper.DeleteCachedGram(ctx, 3))
	assert.True(t, IsCacheMiss(helper.GetCachedGram(ctx, 3, &got)))

	require.NoError(t, helper.DeleteCachedGram(ctx, 9))
	assert.False(t, helper.IsMissingGram(ctx, 9))
}

func TestHelper_NilProvider(t *testing.T) {
	helper := NewHelper(nil)
	ctx := context.Background()

	assert.NoError(t, helper.CacheGram(ctx, &models.Gram{}))
	assert.True(t, IsCacheMiss(helper.GetCachedGram(ctx, 1, &models.Gram{})))
	assert.False(t, helper.IsMissingGram(ctx, 1))
}

func TestAddJitter(t *testing.T) {
	base := time.Minute
	for i := 0; i < 100; i++ {
		d := addJitter(base)
		assert.GreaterOrEqual(t, d, base)
		assert.Less(t, d, base+base/10+1)
	}
	assert.Equal(t, time.Duration(0), addJitter(0))
}
