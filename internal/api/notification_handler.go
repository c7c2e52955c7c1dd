package api

import (
	"net/http"

	"sharesphere/internal/service"

	"github.com/gin-gonic/gin"
)

// 处理站内通知相关的HTTP请求
type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// ListNotifications ?unread=true&limit=&offset=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	limit, offset := getPaginationParams(c)
	unreadOnly := c.Query("unread") == "true"

	ns, err := h.notificationService.List(c.Request.Context(), sess, unreadOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notificationService.UnreadCount(c.Request.Context(), sess)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{
		"notifications": ns,
		"unread":        unread,
	})
}

// MarkRead 请求体 {"ids": [...]}，ids 为空时全部标记为已读
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}
	var req struct {
		IDs []uint `json:"ids"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondFail(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	n, err := h.notificationService.MarkRead(c.Request.Context(), sess, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"marked": n})
}
