package utils

import (
	"log"
	"runtime/debug"
)

// SafeGo 在后台执行 fn，panic 会被记录而不会拖垮进程
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] %s panicked: %v\n%s", name, r, debug.Stack())
			}
		}()
		fn()
	}()
}
