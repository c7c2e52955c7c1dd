package api

import (
	"net/http"
	"time"

	"sharesphere/internal/apperr"
	"sharesphere/internal/middleware"
	"sharesphere/internal/service"
	"sharesphere/pkg/logger"
	"sharesphere/pkg/redisclient"
	"sharesphere/pkg/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 处理认证相关的HTTP请求
type AuthHandler struct {
	authService *service.AuthService
}

// 创建一个新的认证处理器实例
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// 处理用户登陆请求。成功后同时写入 cookie 会话并返回 JWT
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	sess, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if apperr.Is(err, apperr.KindPermissionDenied) {
			respondFail(c, http.StatusUnauthorized, err.Error())
			return
		}
		respondError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserIDKey, sess.UserID)
	if err := session.Save(); err != nil {
		logger.L.Error("Failed to save login session", zap.Uint("userID", sess.UserID), zap.Error(err))
		respondFail(c, http.StatusInternalServerError, "failed to save session")
		return
	}

	respondOK(c, http.StatusOK, "login successful", gin.H{
		"token": token,
		"user":  sess,
	})
}

// 注销：清除会话，并把令牌加入黑名单
func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondFail(c, http.StatusInternalServerError, "failed to clear session")
		return
	}

	if token, ok := middleware.BearerToken(c); ok {
		if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
			ttl := time.Until(claims.ExpiresAt.Time)
			if err := redisclient.Blacklist(c.Request.Context(), claims.ID, ttl); err != nil {
				logger.L.Warn("Failed to blacklist token", zap.Uint("userID", claims.UserID), zap.Error(err))
			}
		}
	}

	respondOK(c, http.StatusOK, "logged out", nil)
}

// 当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	user, err := h.authService.Profile(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", user)
}

func (h *AuthHandler) SetDarkMode(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFail(c, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := h.authService.SetDarkMode(c.Request.Context(), sess, *req.Enabled); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "preference saved", gin.H{"dark_mode": *req.Enabled})
}
