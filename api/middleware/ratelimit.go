package middleware

import (
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anoixa/grammable/api/common"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

type IPRateLimiter struct {
	rps        float64       // 每秒请求数
	burst      int           // 令牌桶的容量
	expireTime time.Duration // 过期时间
	limiterMap *sync.Map
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewIPRateLimiter Create new IP-based rate limits
func NewIPRateLimiter(rps float64, burst int, expireTime time.Duration) *IPRateLimiter {
	if expireTime <= 0 {
		expireTime = 10 * time.Minute
	}
	limiter := &IPRateLimiter{
		rps:        rps,
		burst:      burst,
		expireTime: expireTime,
		limiterMap: &sync.Map{},
		stopChan:   make(chan struct{}),
	}

	go limiter.cleanupStaleClients()

	return limiter
}

// Middleware Return a Gin middleware handler
func (rl *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(getClientIP(c)) {
			common.RespondErrorAbort(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}

// Allow 消耗指定客户端的一个令牌
func (rl *IPRateLimiter) Allow(ip string) bool {
	val, ok := rl.limiterMap.Load(ip)
	if !ok {
		val, _ = rl.limiterMap.LoadOrStore(ip, &clientLimiter{
			limiter: rate.NewLimiter(rl.limit(), rl.burst),
		})
	}

	client := val.(*clientLimiter)
	client.lastSeen.Store(time.Now().UnixNano())
	return client.limiter.Allow()
}

// limit rps<=0 表示不限流
func (rl *IPRateLimiter) limit() rate.Limit {
	if rl.rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rl.rps)
}

func (rl *IPRateLimiter) StopCleanup() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *IPRateLimiter) cleanupStaleClients() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale(time.Now())
		case <-rl.stopChan:
			return
		}
	}
}

// evictStale 删除超过 expireTime 未出现的客户端
func (rl *IPRateLimiter) evictStale(now time.Time) {
	rl.limiterMap.Range(func(key, value interface{}) bool {
		client := value.(*clientLimiter)
		if now.Sub(time.Unix(0, client.lastSeen.Load())) > rl.expireTime {
			rl.limiterMap.Delete(key)
		}
		return true
	})
}

// getClientIP Get the client's real IP address
func getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
