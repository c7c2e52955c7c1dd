package interfaces

// Client 单个用户的推送连接
type Client interface {
	GetUserID() uint
	QueueBytes(data []byte) error
	Close()
}

// FrameHandler 处理客户端发来的帧，由 service.NotificationService 实现
type FrameHandler interface {
	HandleMessage(message []byte, senderID uint)
}

// PresenceHandler 用户上线/下线回调
type PresenceHandler interface {
	HandleUserConnected(userID uint)
	HandleUserDisconnected(userID uint)
}

// PushHub 把通知帧送到用户的在线连接
type PushHub interface {
	Register(client Client)
	Unregister(client Client)
	// PushToUser 返回 false 表示用户不在本实例在线，通知仍保存在数据库中
	PushToUser(userID uint, data []byte) (delivered bool, err error)
	IsClientConnected(userID uint) bool
	SetPresenceHandler(handler PresenceHandler)
}
