package websocket

import (
	"context"
	"errors"

	"sharesphere/internal/interfaces"
	"sharesphere/pkg/config"
	"sharesphere/pkg/logger"

	"go.uber.org/zap"
)

var ErrQueueFull = errors.New("hub delivery queue is full")

// 待投递的通知帧
type delivery struct {
	userID uint
	data   []byte
}

// Hub 单实例部署使用的推送中心，所有投递都在 Run 的 goroutine 中完成
type Hub struct {
	reg        *registry
	queue      chan delivery
	register   chan interfaces.Client
	unregister chan interfaces.Client
	// Run 退出后关闭
	done chan struct{}
}

func NewHub(presence interfaces.PresenceHandler) *Hub {
	wsConfig := config.GlobalConfig.WebSocket

	queueSize := wsConfig.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	return &Hub{
		reg:        newRegistry(presence),
		queue:      make(chan delivery, queueSize),
		register:   make(chan interfaces.Client),
		unregister: make(chan interfaces.Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Register(client interfaces.Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client interfaces.Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) SetPresenceHandler(handler interfaces.PresenceHandler) {
	h.reg.setPresence(handler)
}

func (h *Hub) IsClientConnected(userID uint) bool {
	_, ok := h.reg.get(userID)
	return ok
}

// PushToUser 不阻塞调用方：队列满时丢弃，通知仍可通过接口查询
func (h *Hub) PushToUser(userID uint, data []byte) (bool, error) {
	if !h.IsClientConnected(userID) {
		return false, nil
	}
	select {
	case h.queue <- delivery{userID: userID, data: data}:
		return true, nil
	default:
		logger.L.Warn("Hub queue full, dropping notification frame", zap.Uint("userID", userID))
		return false, ErrQueueFull
	}
}

func (h *Hub) deliver(d delivery) {
	client, ok := h.reg.get(d.userID)
	if !ok {
		logger.L.Debug("Recipient went offline, notification stays unread", zap.Uint("userID", d.userID))
		return
	}
	switch err := client.QueueBytes(d.data); {
	case err == nil:
	case errors.Is(err, ErrSendBufferFull):
		// 不在 Run 中等待慢客户端，直接断开；客户端重连后会重新收到未读数
		logger.L.Warn("Client send buffer full, closing connection", zap.Uint("userID", d.userID))
		h.reg.remove(client)
	default:
		logger.L.Debug("Dropping frame for closed client", zap.Uint("userID", d.userID), zap.Error(err))
	}
}

// Run 处理注册和投递，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, client := range h.reg.all() {
				h.reg.remove(client)
			}
			logger.L.Info("Hub stopped")
			return
		case client := <-h.register:
			h.reg.add(client)
		case client := <-h.unregister:
			h.reg.remove(client)
		case d := <-h.queue:
			h.deliver(d)
		}
	}
}
