// Package base 提供通用的 Repository 基类
package base

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Repository 通用仓库基类
type Repository[T any] struct {
	db *gorm.DB
}

// NewRepository 创建新的通用仓库
func NewRepository[T any](db *gorm.DB) *Repository[T] {
	return &Repository[T]{db: db}
}

// DB 返回底层数据库连接
func (r *Repository[T]) DB() *gorm.DB {
	return r.db
}

// Create 创建记录
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

// GetByID 通过 ID 获取记录，不存在时返回 nil, nil
func (r *Repository[T]) GetByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	err := r.db.WithContext(ctx).First(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entity, nil
}

// List 获取记录列表（支持分页），按创建时间倒序
func (r *Repository[T]) List(ctx context.Context, page, pageSize int, preloads ...string) ([]*T, int64, error) {
	var entities []*T
	var total int64

	db := r.db.WithContext(ctx).Model(new(T))
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := db.Order("created_at desc, id desc").Offset(offset).Limit(pageSize)
	for _, p := range preloads {
		query = query.Preload(p)
	}
	err := query.Find(&entities).Error
	return entities, total, err
}

// Count 获取记录总数
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Count(&count).Error
	return count, err
}

// Exists 检查记录是否存在
func (r *Repository[T]) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// Transaction 执行事务
func (r *Repository[T]) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
