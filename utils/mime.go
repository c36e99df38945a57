package utils

import (
	"path/filepath"
	"strings"
)

// mimeToExtMap MIME类型到安全扩展名的映射
var mimeToExtMap = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// GetSafeExtension 根据MIME类型返回安全的文件扩展名
// 如果MIME类型不被允许，返回空字符串
func GetSafeExtension(mimeType string) string {
	mimeType = strings.TrimSpace(strings.Split(mimeType, ";")[0])

	if ext, ok := mimeToExtMap[mimeType]; ok {
		return ext
	}
	return ""
}

// ContentTypeFromPath 根据存储路径的扩展名推断 MIME 类型
func ContentTypeFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for mimeType, e := range mimeToExtMap {
		if e == ext {
			return mimeType
		}
	}
	return "application/octet-stream"
}
