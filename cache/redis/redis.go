package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/grammable/cache/types"
	"github.com/go-redis/redis/v8"
)

// Config Redis 配置
type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

// Redis Redis 缓存实现
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedisFromConfig 创建 Redis 缓存并检测连接
func NewRedisFromConfig(cfg *Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	return &Redis{client: client, prefix: cfg.KeyPrefix}, nil
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Set 设置缓存项
func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, ok := value.([]byte)
	if !ok {
		var err error
		if data, err = json.Marshal(value); err != nil {
			return err
		}
	}
	return r.client.Set(ctx, r.key(key), data, expiration).Err()
}

// Get 获取缓存项
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.ErrCacheMiss
		}
		return err
	}

	if byteDest, ok := dest.(*[]byte); ok {
		*byteDest = data
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除缓存项
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}

// Exists 检查缓存项是否存在
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	return n > 0, err
}

// Clear 删除本应用前缀下的全部键，无前缀时清空当前 DB
func (r *Redis) Clear(ctx context.Context) error {
	if r.prefix == "" {
		return r.client.FlushDB(ctx).Err()
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Health 检查 Redis 健康状态
func (r *Redis) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭缓存连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Name 返回缓存提供者名称
func (r *Redis) Name() string {
	return "redis"
}
