package middleware

import (
	"net/http"
	"strings"
	"time"

	"sharesphere/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	RequestIDHeader     = "X-Request-ID"
	ContextRequestIDKey = "requestID"
)

// 健康检查和静态资源只在 debug 级别记录
func quietPath(path string) bool {
	return path == "/api/health" || !strings.HasPrefix(path, "/api/")
}

// GinZapLogger 每个请求一条访问日志，附带请求 id 和当前用户
func GinZapLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if sess, ok := CurrentSession(c); ok {
			fields = append(fields, zap.Uint("user_id", sess.UserID), zap.String("username", sess.Username))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, zap.String("error", errs))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.L.Error("Request", fields...)
		case status >= http.StatusBadRequest:
			logger.L.Warn("Request", fields...)
		case quietPath(path):
			logger.L.Debug("Request", fields...)
		default:
			logger.L.Info("Request", fields...)
		}
	}
}
