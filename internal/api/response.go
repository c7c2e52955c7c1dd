package api

import (
	"net/http"
	"strconv"

	"sharesphere/internal/apperr"
	"sharesphere/internal/middleware"
	"sharesphere/internal/service"
	"sharesphere/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 统一响应格式 {success, message, data}
func respondOK(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// 错误类别对应的 HTTP 状态码
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindDuplicate:
		return http.StatusConflict
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError 内部错误只记录日志，不把细节返回给客户端
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.L.Error("Request failed",
			zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", string(apperr.KindOf(err))),
			zap.Error(err))
		_ = c.Error(err)
	}
	respondFail(c, status, service.ResultOf(err, "").Message)
}

func currentSession(c *gin.Context) (*service.Session, bool) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		respondFail(c, http.StatusUnauthorized, "login required")
		return nil, false
	}
	return sess, true
}

// 解析路径中的数字ID
func getIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		respondFail(c, http.StatusBadRequest, "invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}

func getPaginationParams(c *gin.Context) (limit, offset int) {
	var err error
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
