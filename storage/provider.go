package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 存储中不存在该文件
var ErrNotFound = errors.New("file not found in storage")

// Provider 存储提供者接口
// gram 图片以 storagePath（如 original/2024/01/15/a1b2c3d4e5f6.jpg）为键保存
type Provider interface {
	// SaveWithContext 保存文件到存储
	SaveWithContext(ctx context.Context, storagePath string, file io.Reader) error

	// GetWithContext 从存储获取文件，不存在时返回 ErrNotFound
	GetWithContext(ctx context.Context, storagePath string) (io.ReadSeeker, error)

	// DeleteWithContext 从存储删除文件
	DeleteWithContext(ctx context.Context, storagePath string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, storagePath string) (bool, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}
