package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/grammable/cache/memory"
	"github.com/anoixa/grammable/cache/redis"
	"github.com/mitchellh/mapstructure"
)

// Options 缓存提供者配置，从配置 map 解码
type Options struct {
	ProviderType string `mapstructure:"provider_type"`

	// memory
	NumCounters int64 `mapstructure:"num_counters"`
	MaxCost     int64 `mapstructure:"max_cost"`
	BufferItems int64 `mapstructure:"buffer_items"`
	Metrics     bool  `mapstructure:"metrics"`

	// redis
	Address      string `mapstructure:"address"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// DefaultOptions 返回默认的内存缓存配置
func DefaultOptions() Options {
	return Options{
		ProviderType: "memory",
		NumCounters:  1000000,
		MaxCost:      256 << 20, // 256MB
		BufferItems:  64,
		Metrics:      false,
		Address:      "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 5,
	}
}

// DecodeOptions 将配置 map 解码为 Options，未给出的字段保留默认值
func DecodeOptions(configMap map[string]interface{}) (Options, error) {
	opts := DefaultOptions()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := decoder.Decode(configMap); err != nil {
		return opts, fmt.Errorf("failed to decode cache options: %w", err)
	}

	if opts.ProviderType == "" {
		opts.ProviderType = "memory"
	}
	return opts, nil
}

// Factory 缓存工厂，持有当前使用的缓存提供者
type Factory struct {
	provider Provider
}

// NewFactory 根据配置 map 创建缓存工厂
func NewFactory(configMap map[string]interface{}) (*Factory, error) {
	opts, err := DecodeOptions(configMap)
	if err != nil {
		return nil, err
	}

	var provider Provider
	switch opts.ProviderType {
	case "memory":
		provider, err = createMemoryProvider(opts)
	case "redis":
		provider, err = createRedisProvider(opts)
	default:
		return nil, fmt.Errorf("unsupported cache provider type: %s", opts.ProviderType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", opts.ProviderType, err)
	}

	log.Printf("[CacheFactory] Using '%s' cache provider", provider.Name())
	return NewFactoryWithProvider(provider), nil
}

// NewFactoryWithProvider 使用已有 provider 创建工厂
func NewFactoryWithProvider(provider Provider) *Factory {
	return &Factory{provider: provider}
}

// createMemoryProvider 创建内存缓存提供者
func createMemoryProvider(opts Options) (Provider, error) {
	return memory.NewMemory(memory.Config{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxCost,
		BufferItems: opts.BufferItems,
		Metrics:     opts.Metrics,
	})
}

// createRedisProvider 创建 Redis 缓存提供者
func createRedisProvider(opts Options) (Provider, error) {
	return redis.NewRedisFromConfig(&redis.Config{
		Address:      opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		KeyPrefix:    opts.KeyPrefix,
	})
}

// GetProvider 获取缓存提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// Close 关闭缓存提供者
func (f *Factory) Close() error {
	if f.provider == nil {
		return nil
	}
	return f.provider.Close()
}

// --- 便捷方法 ---

// Set 设置缓存项
func (f *Factory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Set(ctx, key, value, expiration)
}

// Get 获取缓存项
func (f *Factory) Get(ctx context.Context, key string, dest interface{}) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Get(ctx, key, dest)
}

// Delete 删除缓存项
func (f *Factory) Delete(ctx context.Context, key string) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Delete(ctx, key)
}

// Clear 清空缓存
func (f *Factory) Clear(ctx context.Context) error {
	if f.provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	return f.provider.Clear(ctx)
}
