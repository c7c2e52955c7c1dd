package service

import (
	"context"
	"encoding/json"
	"time"

	"sharesphere/internal/apperr"
	"sharesphere/internal/interfaces"
	"sharesphere/internal/model"
	"sharesphere/internal/repository"
	"sharesphere/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	EventNotification = "notification"
	EventUnread       = "unread"

	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// PushEvent 通过 websocket 推送给客户端的 JSON 帧
type PushEvent struct {
	Type         string              `json:"type"`
	Notification *model.Notification `json:"notification,omitempty"`
	Unread       int64               `json:"unread"`
}

// ClientCommand 客户端上行的 JSON 帧
type ClientCommand struct {
	Type string `json:"type"` // mark_read
	IDs  []uint `json:"ids"`
}

// NotificationService 持久化站内通知，并推送给在线用户
type NotificationService struct {
	hub  interfaces.PushHub
	repo *repository.NotificationRepository
}

func NewNotificationService(hub interfaces.PushHub, repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{
		hub:  hub,
		repo: repo,
	}
}

// SetHub 在 Hub 创建之后注入
func (s *NotificationService) SetHub(hub interfaces.PushHub) {
	s.hub = hub
}

// Notify 为每个接收者保存一条通知并尝试实时推送。
// 通知失败只记录日志，不影响调用方的业务结果
func (s *NotificationService) Notify(ctx context.Context, userIDs []uint, kind model.NotificationKind, content string, payload map[string]interface{}) {
	if len(userIDs) == 0 {
		return
	}
	ns := make([]*model.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		ns = append(ns, &model.Notification{
			UserID:  id,
			Kind:    kind,
			Content: content,
			Payload: datatypes.JSONMap(payload),
		})
	}
	// 业务请求结束后仍需保存通知
	if err := s.repo.CreateBatch(context.WithoutCancel(ctx), ns); err != nil {
		logger.L.Error("Failed to save notifications",
			zap.String("kind", string(kind)),
			zap.Int("recipients", len(userIDs)),
			zap.Error(err))
		return
	}
	for _, n := range ns {
		s.push(ctx, n.UserID, &PushEvent{Type: EventNotification, Notification: n})
	}
}

func (s *NotificationService) push(ctx context.Context, userID uint, event *PushEvent) {
	if s.hub == nil {
		return
	}
	if event.Type == EventNotification {
		unread, err := s.repo.CountUnread(ctx, userID)
		if err == nil {
			event.Unread = unread
		}
	}
	data, err := json.Marshal(event)
	if err != nil {
		logger.L.Error("Failed to marshal push event", zap.Error(err))
		return
	}
	sent, err := s.hub.PushToUser(userID, data)
	if err != nil {
		logger.L.Warn("Failed to push notification", zap.Uint("userID", userID), zap.Error(err))
		return
	}
	logger.L.Debug("Push event queued", zap.Uint("userID", userID), zap.Bool("online", sent))
}

// List 当前用户的通知，最新的在前
func (s *NotificationService) List(ctx context.Context, sess *Session, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}
	ns, err := s.repo.FindByUser(ctx, sess.UserID, unreadOnly, limit, offset)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list notifications")
	}
	return ns, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, sess *Session) (int64, error) {
	n, err := s.repo.CountUnread(ctx, sess.UserID)
	if err != nil {
		return 0, apperr.Internal(err, "failed to count notifications")
	}
	return n, nil
}

// MarkRead 标记已读，ids 为空时标记全部
func (s *NotificationService) MarkRead(ctx context.Context, sess *Session, ids []uint) (int64, error) {
	n, err := s.repo.MarkRead(ctx, sess.UserID, ids)
	if err != nil {
		return 0, apperr.Internal(err, "failed to mark notifications read")
	}
	s.pushUnread(ctx, sess.UserID)
	return n, nil
}

func (s *NotificationService) pushUnread(ctx context.Context, userID uint) {
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		logger.L.Warn("Failed to count unread notifications", zap.Uint("userID", userID), zap.Error(err))
		return
	}
	s.push(ctx, userID, &PushEvent{Type: EventUnread, Unread: unread})
}

// HandleMessage 处理 websocket 上行消息
func (s *NotificationService) HandleMessage(message []byte, senderID uint) {
	logger.L.Debug("HandleMessage called by WebSocket client", zap.Uint("senderID", senderID))

	var cmd ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		logger.L.Warn("Failed to unmarshal client command",
			zap.Uint("senderID", senderID),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch cmd.Type {
	case "mark_read":
		if _, err := s.MarkRead(ctx, &Session{UserID: senderID}, cmd.IDs); err != nil {
			logger.L.Error("Failed to mark notifications read via WebSocket",
				zap.Uint("senderID", senderID),
				zap.Error(err))
		}
	default:
		logger.L.Warn("Unknown client command", zap.Uint("senderID", senderID), zap.String("type", cmd.Type))
	}
}

// HandleUserConnected 连接建立时推送未读数量
func (s *NotificationService) HandleUserConnected(userID uint) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.pushUnread(ctx, userID)
}

func (s *NotificationService) HandleUserDisconnected(userID uint) {
	logger.L.Debug("User disconnected from notifications", zap.Uint("userID", userID))
}
