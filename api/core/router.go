package core

import (
	"context"
	"net/http"

	"github.com/anoixa/grammable/api"
	"github.com/anoixa/grammable/api/common"
	handlerGrams "github.com/anoixa/grammable/api/handler/grams"
	"github.com/anoixa/grammable/api/middleware"
	"github.com/anoixa/grammable/config"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// LoginPath 未登录时重定向的登录入口
const LoginPath = "/users/sign_in"

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *ServerDependencies, limiters *rateLimiters, metrics *middleware.Metrics) {
	registerBasicRoutes(router, deps, metrics)

	router.Use(middleware.LoadUser(deps.JWTService))

	loginHandler := api.NewLoginHandlerWithService(deps.LoginService, deps.Config)
	loginHandler.RegisterRoutes(router, limiters.auth.Middleware())

	gramHandler := handlerGrams.NewHandler(deps.GramsService, deps.Config.BaseURL())
	gramHandler.RegisterRoutes(router,
		middleware.RequireLogin(LoginPath),
		limiters.api.Middleware(),
		limiters.image.Middleware(),
	)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *ServerDependencies, metrics *middleware.Metrics) {
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		checks := gin.H{
			"database": checkDatabaseHealth(deps.DatabaseProvider),
			"cache":    checkCacheHealth(ctx, deps.CacheFactory),
			"storage":  checkStorageHealth(ctx, deps.Storage),
		}
		httpStatus := http.StatusOK
		for _, result := range checks {
			if result != "ok" {
				httpStatus = http.StatusServiceUnavailable
				break
			}
		}
		c.JSON(httpStatus, gin.H{
			"status":  "ok",
			"uptime":  uptime(),
			"version": config.Version,
			"checks":  checks,
		})
	})

	router.GET("/version", func(c *gin.Context) {
		common.RespondSuccess(c, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	if config.IsDevelopment() {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}
