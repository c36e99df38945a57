package memory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anoixa/grammable/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Memory 内存缓存实现
type Memory struct {
	client *ristretto.Cache
}

// Config 内存缓存配置
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

// NewMemory 创建新的内存缓存提供者
func NewMemory(config Config) (*Memory, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: config.BufferItems,
		Metrics:     config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &Memory{
		client: client,
	}, nil
}

// Set 设置缓存项，值以 JSON 形式保存，读取方拿到的是副本
func (m *Memory) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, ok := value.([]byte)
	if !ok {
		var err error
		if data, err = json.Marshal(value); err != nil {
			return err
		}
	}

	if m.client.SetWithTTL(key, data, int64(len(data)), expiration) {
		// 等待写缓冲落地，保证随后的 Get 可见
		m.client.Wait()
	}
	return nil
}

// Get 获取缓存项
func (m *Memory) Get(ctx context.Context, key string, dest interface{}) error {
	value, found := m.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}

	data, ok := value.([]byte)
	if !ok {
		return types.ErrCacheMiss
	}

	if byteDest, ok := dest.(*[]byte); ok {
		*byteDest = append([]byte(nil), data...)
		return nil
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除缓存项
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.client.Del(key)
	return nil
}

// Exists 检查缓存项是否存在
func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	_, found := m.client.Get(key)
	return found, nil
}

// Clear 清空全部缓存
func (m *Memory) Clear(ctx context.Context) error {
	m.client.Clear()
	return nil
}

// Close 关闭缓存连接
func (m *Memory) Close() error {
	m.client.Close()
	return nil
}

// Name 返回缓存提供者名称
func (m *Memory) Name() string {
	return "memory"
}
