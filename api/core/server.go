package core

import (
	"net/http"
	"strings"
	"time"

	"github.com/anoixa/grammable/api/middleware"
	"github.com/anoixa/grammable/cache"
	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/database"
	"github.com/anoixa/grammable/internal/auth"
	"github.com/anoixa/grammable/internal/grams"
	"github.com/anoixa/grammable/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

func uptime() string {
	return time.Since(startTime).Round(time.Second).String()
}

// ServerDependencies 服务器依赖项
type ServerDependencies struct {
	Config           *config.Config
	DatabaseProvider database.Provider
	CacheFactory     *cache.Factory
	Storage          storage.Provider
	JWTService       *auth.JWTService
	LoginService     *auth.LoginService
	GramsService     *grams.Service
}

type rateLimiters struct {
	auth  *middleware.IPRateLimiter
	api   *middleware.IPRateLimiter
	image *middleware.IPRateLimiter
}

func (rl *rateLimiters) stop() {
	rl.auth.StopCleanup()
	rl.api.StopCleanup()
	rl.image.StopCleanup()
}

// setupRouter 启动gin
func setupRouter(deps *ServerDependencies) (*gin.Engine, func()) {
	cfg := deps.Config
	router := gin.New()

	// 仅在开发版本时启用 gin 日志
	if config.IsDevelopment() {
		router.Use(gin.Logger())
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router.Use(gin.Recovery())
	origin := cfg.BaseURL()
	if !strings.Contains(origin, "://") {
		origin = "https://" + origin
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{strings.TrimRight(origin, "/")},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.SetTrustedProxies(nil)

	maxUploadMB := cfg.UploadMaxSizeMB
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	router.MaxMultipartMemory = 8 << 20

	// 并发限制（100并发，避免内存过载）
	concurrencyLimiter := middleware.NewConcurrencyLimiter(100)
	router.Use(concurrencyLimiter.Middleware())

	// 请求体大小：单张图片上限加上表单其余字段的余量
	router.Use(middleware.MaxBytesReader(int64(maxUploadMB+1) << 20))

	router.Use(middleware.RequestID())

	metrics := middleware.NewMetrics()
	router.Use(metrics.Middleware())

	limiters := &rateLimiters{
		auth:  middleware.NewIPRateLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst, cfg.RateLimitExpireTime),
		api:   middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime),
		image: middleware.NewIPRateLimiter(cfg.RateLimitImageRPS, cfg.RateLimitImageBurst, cfg.RateLimitExpireTime),
	}

	RegisterRoutes(router, deps, limiters, metrics)

	return router, limiters.stop
}

// StartServer 创建 http.Server
func StartServer(deps *ServerDependencies) (*http.Server, func()) {
	cfg := deps.Config
	router, clean := setupRouter(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
