package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/subscription_server/internal/pkg/jwt"
	"github.com/qs3c/subscription_server/internal/pkg/response"
)

const (
	UserIDKey = "userID"
)

// AdminChecker 判断用户是否具有管理权限
type AdminChecker interface {
	IsAdmin(userID int64) (bool, error)
}

// Auth JWT 认证中间件
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			if c.GetHeader("Authorization") == "" {
				response.AuthError(c, "请提供认证信息")
			} else {
				response.AuthError(c, "认证格式错误")
			}
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuth 可选认证中间件（不强制要求登录）
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err == nil {
			c.Set(UserIDKey, claims.UserID)
		}

		c.Next()
	}
}

// RequireAdmin 必须挂在 Auth 之后
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		isAdmin, err := checker.IsAdmin(userID)
		if err != nil {
			response.ServerError(c, "")
			c.Abort()
			return
		}
		if !isAdmin {
			response.PermissionError(c, "需要管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", false
	}
	return tokenString, true
}
