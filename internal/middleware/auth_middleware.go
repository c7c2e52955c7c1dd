package middleware

import (
	"net/http"
	"strings"

	"sharesphere/internal/repository"
	"sharesphere/internal/service"
	"sharesphere/pkg/logger"
	"sharesphere/pkg/redisclient"
	"sharesphere/pkg/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// gin 上下文中保存当前会话的键
	ContextSessionKey = "session"
	// 登录会话中保存用户ID的键
	SessionUserIDKey = "user_id"
	// 通过令牌认证时保存令牌声明
	ContextClaimsKey = "claims"
)

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": message,
	})
}

// 从 cookie 会话中读取用户ID，未安装会话中间件时返回 0
func sessionUserID(c *gin.Context) uint {
	if _, ok := c.Get(sessions.DefaultKey); !ok {
		return 0
	}
	id, _ := sessions.Default(c).Get(SessionUserIDKey).(uint)
	return id
}

// BearerToken 提取 "Authorization: Bearer <token>" 中的令牌
func BearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware 先检查登录会话，再检查 Bearer 令牌。
// 用户每次都从数据库重新加载，已删除的用户立即失效
func AuthMiddleware(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := sessionUserID(c)

		if userID == 0 {
			if c.GetHeader("Authorization") == "" {
				abortUnauthorized(c, "login required")
				return
			}
			token, ok := BearerToken(c)
			if !ok {
				abortUnauthorized(c, "invalid authorization format")
				return
			}

			// 解析token
			claims, err := utils.ParseToken(token)
			if err != nil {
				abortUnauthorized(c, "invalid or expired token")
				return
			}

			revoked, err := redisclient.IsBlacklisted(c.Request.Context(), claims.ID)
			if err != nil {
				logger.L.Warn("Failed to check token blacklist", zap.Error(err))
			}
			if revoked {
				abortUnauthorized(c, "token has been invalidated")
				return
			}
			userID = claims.UserID
			c.Set(ContextClaimsKey, claims)
		}

		// 获取用户信息
		user, err := userRepo.FindByID(c.Request.Context(), userID)
		if err != nil {
			logger.L.Error("Failed to load user for request", zap.Uint("userID", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "internal error",
			})
			return
		}
		if user == nil {
			abortUnauthorized(c, "user not found")
			return
		}

		c.Set(ContextSessionKey, &service.Session{
			UserID:   user.ID,
			Username: user.Username,
			IsAdmin:  user.IsAdmin,
		})
		c.Set("userID", user.ID)
		c.Next()
	}
}

// AdminMiddleware 必须在 AuthMiddleware 之后使用
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, ok := CurrentSession(c)
		if !ok {
			abortUnauthorized(c, "login required")
			return
		}
		if !sess.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "admin privileges required",
			})
			return
		}
		c.Next()
	}
}

// CurrentSession 取出 AuthMiddleware 设置的会话
func CurrentSession(c *gin.Context) (*service.Session, bool) {
	v, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil, false
	}
	sess, ok := v.(*service.Session)
	return sess, ok && sess != nil
}
