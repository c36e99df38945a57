package grams

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/grammable/database/models"
	"github.com/anoixa/grammable/database/repo/base"
	"gorm.io/gorm"
)

// ErrGramNotFound gram 不存在
var ErrGramNotFound = errors.New("gram not found")

// Repository gram 仓库
type Repository struct {
	*base.Repository[models.Gram]
	db *gorm.DB
}

// NewRepository 创建新的 gram 仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Repository: base.NewRepository[models.Gram](db),
		db:         db,
	}
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return NewRepository(r.db.WithContext(ctx))
}

// GetByID 通过ID获取 gram，预加载作者和按时间排序的评论
func (r *Repository) GetByID(ctx context.Context, id uint) (*models.Gram, error) {
	var gram models.Gram
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc, id asc")
		}).
		Preload("Comments.User").
		First(&gram, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGramNotFound
		}
		return nil, err
	}
	return &gram, nil
}

// List 分页获取 gram，最新的在前
func (r *Repository) List(ctx context.Context, page, limit int) ([]*models.Gram, int64, error) {
	return r.Repository.List(ctx, page, limit, "User")
}

// Create 创建 gram
func (r *Repository) Create(ctx context.Context, gram *models.Gram) error {
	if err := r.Repository.Create(ctx, gram); err != nil {
		return fmt.Errorf("failed to create gram: %w", err)
	}
	return nil
}

// UpdateMessage 只更新消息字段，作者和图片保持不变
func (r *Repository) UpdateMessage(ctx context.Context, id uint, message string) error {
	result := r.db.WithContext(ctx).Model(&models.Gram{}).Where("id = ?", id).Update("message", message)
	if result.Error != nil {
		return fmt.Errorf("failed to update gram %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGramNotFound
	}
	return nil
}

// Delete 在一个事务中物理删除 gram 及其评论
func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.Transaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("gram_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("failed to delete comments of gram %d: %w", id, err)
		}

		result := tx.Unscoped().Delete(&models.Gram{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete gram %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrGramNotFound
		}
		return nil
	})
}
