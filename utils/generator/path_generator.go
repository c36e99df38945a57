package generator

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	hashLen     = 12
	uploadIDLen = 12
)

// PathGenerator 分层路径生成器
type PathGenerator struct{}

// NewPathGenerator 创建路径生成器
func NewPathGenerator() *PathGenerator {
	return &PathGenerator{}
}

// StorageIdentifiers 存储标识对
type StorageIdentifiers struct {
	Identifier  string // 文件标识，如 a1b2c3d4e5f6-9f8e7d6c5b4a（不含扩展名）
	StoragePath string // 存储路径，如 original/2024/01/15/a1b2c3d4e5f6-9f8e7d6c5b4a.jpg
}

// GenerateOriginalIdentifiers 按上传日期分层生成原图的 identifier 和 storage_path
// uploadID 区分同一内容的多次上传，每个 gram 独占自己的文件
func (pg *PathGenerator) GenerateOriginalIdentifiers(fileHash, uploadID, ext string, uploadTime time.Time) StorageIdentifiers {
	identifier := truncate(fileHash, hashLen)
	if id := truncate(strings.ReplaceAll(uploadID, "-", ""), uploadIDLen); id != "" {
		identifier += "-" + id
	}
	datePath := uploadTime.Format("2006/01/02")

	return StorageIdentifiers{
		Identifier:  identifier,
		StoragePath: fmt.Sprintf("original/%s/%s%s", datePath, identifier, ext),
	}
}

// IdentifierFromPath 从存储路径中取出文件标识
func (pg *PathGenerator) IdentifierFromPath(storagePath string) string {
	base := filepath.Base(storagePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
