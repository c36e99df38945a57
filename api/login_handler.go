package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/anoixa/grammable/api/common"
	"github.com/anoixa/grammable/api/middleware"
	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/internal/auth"
	"github.com/anoixa/grammable/utils"

	"github.com/gin-gonic/gin"
)

const (
	refreshTokenCookie = "refresh_token"
	deviceIDCookie     = "device_id"
	sessionCookiePath  = "/users/"
)

// LoginHandler 登录处理器
type LoginHandler struct {
	loginService *auth.LoginService
	cookieDomain string
}

// NewLoginHandlerWithService 使用 LoginService 创建登录处理器
func NewLoginHandlerWithService(loginService *auth.LoginService, cfg *config.Config) *LoginHandler {
	h := &LoginHandler{loginService: loginService}
	if cfg != nil {
		h.cookieDomain = utils.ExtractCookieDomain(cfg.ServerDomain)
	}
	return h
}

type userAuthRequestBody struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken       string `json:"access_token"`
	AccessTokenExpiry int64  `json:"access_token_expiry"`
}

// LoginFormHandlerFunc 登录入口，描述登录表单
// @Summary      Sign-in form
// @Tags         auth
// @Produce      json
// @Success      200  {object}  common.Response{data=common.Form}
// @Router       /users/sign_in [get]
func (h *LoginHandler) LoginFormHandlerFunc(context *gin.Context) {
	common.RespondSuccess(context, common.Form{
		Action: "/users/sign_in",
		Method: http.MethodPost,
		Fields: []common.FormField{
			{Name: "username", Type: "text", Required: true},
			{Name: "password", Type: "password", Required: true},
		},
	})
}

// LoginHandlerFunc user login
// @Summary      Sign in
// @Tags         auth
// @Accept       json,x-www-form-urlencoded
// @Produce      json
// @Param        request  body      userAuthRequestBody  true  "Credentials"
// @Success      200      {object}  common.Response{data=loginResponse}
// @Failure      400      {object}  common.Response
// @Failure      401      {object}  common.Response
// @Router       /users/sign_in [post]
func (h *LoginHandler) LoginHandlerFunc(context *gin.Context) {
	if h.loginService == nil {
		common.RespondError(context, http.StatusInternalServerError, "Login service not initialized")
		return
	}

	var req userAuthRequestBody
	if err := context.ShouldBind(&req); err != nil {
		common.RespondError(context, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.loginService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			common.RespondError(context, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("[Login] login failed for '%s': %v", utils.SanitizeLogUsername(req.Username), err)
		common.RespondError(context, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setAccessCookie(context, result.AccessToken, result.AccessTokenExpiry)
	h.setAuthCookies(context, result.RefreshToken, result.DeviceID, maxAge(result.RefreshTokenExpiry))

	common.RespondSuccessMessage(context, "Login successful", loginResponse{
		AccessToken:       "Bearer " + result.AccessToken,
		AccessTokenExpiry: result.AccessTokenExpiry.Unix(),
	})
}

// RefreshTokenHandlerFunc Refresh token authentication
// @Summary      Refresh access token
// @Tags         auth
// @Produce      json
// @Success      200  {object}  common.Response{data=loginResponse}
// @Failure      401  {object}  common.Response
// @Router       /users/refresh [post]
func (h *LoginHandler) RefreshTokenHandlerFunc(context *gin.Context) {
	if h.loginService == nil {
		common.RespondError(context, http.StatusInternalServerError, "Login service not initialized")
		return
	}

	refreshToken, err := context.Cookie(refreshTokenCookie)
	if err != nil {
		common.RespondError(context, http.StatusUnauthorized, "Refresh token not found")
		return
	}

	deviceID, err := context.Cookie(deviceIDCookie)
	if err != nil {
		common.RespondError(context, http.StatusUnauthorized, "Device ID not found")
		return
	}

	result, err := h.loginService.RefreshToken(refreshToken, deviceID)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidRefreshToken) {
			log.Printf("[Login] refresh failed: %v", err)
		}
		common.RespondError(context, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	h.setAccessCookie(context, result.AccessToken, result.AccessTokenExpiry)
	h.setAuthCookies(context, result.RefreshToken, deviceID, maxAge(result.RefreshTokenExpiry))

	common.RespondSuccessMessage(context, "Refresh token successful", loginResponse{
		AccessToken:       "Bearer " + result.AccessToken,
		AccessTokenExpiry: result.AccessTokenExpiry.Unix(),
	})
}

// LogoutHandlerFunc user logout
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  common.Response
// @Router       /users/sign_out [delete]
func (h *LoginHandler) LogoutHandlerFunc(context *gin.Context) {
	deviceID, err := context.Cookie(deviceIDCookie)
	if err == nil && h.loginService != nil {
		if err := h.loginService.Logout(deviceID); err != nil {
			log.Printf("[Login] failed to delete device %s: %v", deviceID, err)
		}
	}

	h.clearAuthCookies(context)

	if err != nil {
		common.RespondSuccessMessage(context, "Already logged out or session invalid", nil)
		return
	}
	common.RespondSuccessMessage(context, "Logout successful", nil)
}

func maxAge(expiry time.Time) int {
	return int(time.Until(expiry).Seconds())
}

// setAccessCookie 浏览器请求通过 access_token cookie 认证
func (h *LoginHandler) setAccessCookie(c *gin.Context, token string, expiry time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    token,
		MaxAge:   maxAge(expiry),
		Path:     "/",
		Domain:   h.cookieDomain,
		Secure:   config.IsProduction(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// setAuthCookies 设置 refresh_token 和 device_id 的 cookie
func (h *LoginHandler) setAuthCookies(c *gin.Context, refreshToken, deviceID string, maxAge int) {
	secure := config.IsProduction()

	for name, value := range map[string]string{refreshTokenCookie: refreshToken, deviceIDCookie: deviceID} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    value,
			MaxAge:   maxAge,
			Path:     sessionCookiePath,
			Domain:   h.cookieDomain,
			Secure:   secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// clearAuthCookies 清除认证相关的 cookie
func (h *LoginHandler) clearAuthCookies(c *gin.Context) {
	// 将 MaxAge 设置为 -1 来让浏览器删除 Cookie
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", h.cookieDomain, false, true)
	c.SetCookie(refreshTokenCookie, "", -1, sessionCookiePath, h.cookieDomain, false, true)
	c.SetCookie(deviceIDCookie, "", -1, sessionCookiePath, h.cookieDomain, false, true)
}

// RegisterRoutes 注册登录相关路由
func (h *LoginHandler) RegisterRoutes(router gin.IRouter, limiter gin.HandlerFunc) {
	users := router.Group("/users")
	users.GET("/sign_in", h.LoginFormHandlerFunc)
	users.POST("/sign_in", limiter, h.LoginHandlerFunc)
	users.POST("/refresh", limiter, h.RefreshTokenHandlerFunc)
	users.DELETE("/sign_out", h.LogoutHandlerFunc)
}
