package grams

import "github.com/gin-gonic/gin"

// RegisterRoutes 注册 gram 路由
// requireLogin 只作用于需要登录的动作，图片走单独的限流器
func (h *Handler) RegisterRoutes(router gin.IRouter, requireLogin, apiLimiter, imageLimiter gin.HandlerFunc) {
	router.GET("/", apiLimiter, h.Index)
	router.GET("/grams/:id/image", imageLimiter, h.Image)

	grams := router.Group("/grams", apiLimiter)
	{
		grams.GET("", h.Index)
		grams.GET("/new", requireLogin, h.New)
		grams.POST("", requireLogin, h.Create)
		grams.GET("/:id", h.Show)
		grams.GET("/:id/edit", h.Edit)
		grams.PATCH("/:id", requireLogin, h.Update)
		grams.PUT("/:id", requireLogin, h.Update)
		grams.DELETE("/:id", requireLogin, h.Destroy)
	}
}
