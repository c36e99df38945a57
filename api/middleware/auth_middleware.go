package middleware

import (
	"net/http"
	"strings"

	"github.com/anoixa/grammable/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextRoleKey     = "role"

	// AccessTokenCookie 浏览器端保存访问令牌的 cookie
	AccessTokenCookie = "access_token"
)

// LoadUser 从 Authorization 头或 access_token cookie 解析当前用户
// 没有令牌或令牌无效都不是错误，只是没有当前用户
func LoadUser(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" || jwtService == nil {
			c.Next()
			return
		}

		claims, err := jwtService.ExtractClaims(token)
		if err != nil {
			c.Next()
			return
		}

		role := claims.Role
		if role == "" {
			role = "user"
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireLogin 没有当前用户时重定向到登录页
func RequireLogin(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserID(c); !ok {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID 返回当前用户 ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// CurrentUsername 返回当前用户名
func CurrentUsername(c *gin.Context) string {
	return c.GetString(ContextUsernameKey)
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	cookie, err := c.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(cookie, "Bearer ")
}
