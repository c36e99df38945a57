package utils

import (
	"context"
	"errors"
	"strings"
	"syscall"
)

// IsClientDisconnect 判断错误是否由客户端中途断开导致
// 请求被取消或连接被对端重置时不需要再写响应
func IsClientDisconnect(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return true
	}
	// 对象存储客户端有时只保留了错误文本
	return strings.Contains(err.Error(), context.Canceled.Error())
}
