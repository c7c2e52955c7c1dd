package api

import (
	"net/http"

	"sharesphere/internal/interfaces"
	internalws "sharesphere/internal/websocket"
	"sharesphere/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	hub        interfaces.PushHub
	msgHandler interfaces.FrameHandler
	upgrader   websocket.Upgrader
}

// NewWSHandler allowedOrigins 为空时接受所有来源
func NewWSHandler(hub interfaces.PushHub, msgHandler interfaces.FrameHandler, allowedOrigins []string) *WSHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &WSHandler{
		hub:        hub,
		msgHandler: msgHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(origins) == 0 || origin == "" || origins[origin]
			},
		},
	}
}

// HandleConnection 建立通知推送连接
func (h *WSHandler) HandleConnection(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L.Error("Failed to upgrade WebSocket connection", zap.Uint("userID", sess.UserID), zap.Error(err))
		return
	}
	logger.L.Info("WebSocket connection upgraded", zap.Uint("userID", sess.UserID))

	client := internalws.NewClient(sess.UserID, conn, h.msgHandler, h.hub)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
