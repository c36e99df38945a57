package middleware

import (
	"net/http"

	"github.com/anoixa/grammable/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"
)

type ConcurrencyLimiter struct {
	sem *semaphore.Weighted
}

// NewConcurrencyLimiter 并发限制器
func NewConcurrencyLimiter(maxConcurrency int64) *ConcurrencyLimiter {
	if maxConcurrency <= 0 {
		maxConcurrency = 100
	}
	return &ConcurrencyLimiter{
		sem: semaphore.NewWeighted(maxConcurrency),
	}
}

// Middleware 立即拒绝超出并发上限的请求
func (cl *ConcurrencyLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cl.sem.TryAcquire(1) {
			common.RespondErrorAbort(c, http.StatusServiceUnavailable, "Server is busy, please try again later")
			return
		}
		defer cl.sem.Release(1)

		c.Next()
	}
}
