package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateRandomToken 生成 n 字节随机数的无填充 URL 安全编码
// 结果可直接写入 cookie，用于刷新令牌、临时密码和开发环境密钥
func GenerateRandomToken(n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("invalid token length: %d", n)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
