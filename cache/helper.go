package cache

import (
	"context"
	"math/rand"
	"time"

	"github.com/anoixa/grammable/database/models"
)

const (
	// DefaultGramCacheExpiration gram 详情缓存过期时间
	DefaultGramCacheExpiration = 10 * time.Minute

	// DefaultEmptyValueCacheExpiration 空值缓存过期时间
	DefaultEmptyValueCacheExpiration = 1 * time.Minute

	emptyMarker = "1"
)

// addJitter 添加随机抖动（0~10%），防止缓存雪崩
func addJitter(duration time.Duration) time.Duration {
	if duration < 10 {
		return duration
	}
	return duration + time.Duration(rand.Int63n(int64(duration)/10))
}

// HelperConfig 缓存辅助工具配置
type HelperConfig struct {
	GramCacheTTL time.Duration
}

// DefaultHelperConfig 返回默认配置
func DefaultHelperConfig() HelperConfig {
	return HelperConfig{
		GramCacheTTL: DefaultGramCacheExpiration,
	}
}

// Helper 缓存辅助工具，provider 为 nil 时所有操作都退化为未命中
type Helper struct {
	provider Provider
	config   HelperConfig
}

// NewHelper 创建新的缓存辅助工具
func NewHelper(provider Provider, cfg ...HelperConfig) *Helper {
	c := DefaultHelperConfig()
	if len(cfg) > 0 && cfg[0].GramCacheTTL > 0 {
		c = cfg[0]
	}
	return &Helper{
		provider: provider,
		config:   c,
	}
}

// CacheGram 缓存 gram 详情（含作者与评论）
func (h *Helper) CacheGram(ctx context.Context, gram *models.Gram) error {
	if h.provider == nil {
		return nil
	}
	return h.provider.Set(ctx, Gram.BuildID(gram.ID), gram, addJitter(h.config.GramCacheTTL))
}

// GetCachedGram 读取缓存的 gram 详情
func (h *Helper) GetCachedGram(ctx context.Context, gramID uint, gram *models.Gram) error {
	if h.provider == nil {
		return ErrCacheMiss
	}
	return h.provider.Get(ctx, Gram.BuildID(gramID), gram)
}

// DeleteCachedGram 删除 gram 详情缓存及其空值标记
func (h *Helper) DeleteCachedGram(ctx context.Context, gramID uint) error {
	if h.provider == nil {
		return nil
	}
	if err := h.provider.Delete(ctx, Gram.BuildID(gramID)); err != nil {
		return err
	}
	return h.provider.Delete(ctx, Empty.Build(Gram.BuildID(gramID)))
}

// CacheMissingGram 记录不存在的 gram，防止缓存穿透
func (h *Helper) CacheMissingGram(ctx context.Context, gramID uint) error {
	if h.provider == nil {
		return nil
	}
	return h.provider.Set(ctx, Empty.Build(Gram.BuildID(gramID)), emptyMarker, DefaultEmptyValueCacheExpiration)
}

// IsMissingGram 检查 gram 是否已被标记为不存在
func (h *Helper) IsMissingGram(ctx context.Context, gramID uint) bool {
	if h.provider == nil {
		return false
	}
	exists, err := h.provider.Exists(ctx, Empty.Build(Gram.BuildID(gramID)))
	return err == nil && exists
}
