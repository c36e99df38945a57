package types

import (
	"errors"
)

// ErrCacheMiss 缓存未命中错误
var ErrCacheMiss = &cacheMissError{}

type cacheMissError struct{}

func (e *cacheMissError) Error() string {
	return "cache miss"
}

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	var cacheMissError *cacheMissError
	return errors.As(err, &cacheMissError)
}
