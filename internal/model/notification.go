package model

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationKind string

const (
	NotifyFileShared      NotificationKind = "file_shared"
	NotifyFileDownloaded  NotificationKind = "file_downloaded"
	NotifyRequestCreated  NotificationKind = "group_request_created"
	NotifyRequestApproved NotificationKind = "group_request_approved"
	NotifyRequestRejected NotificationKind = "group_request_rejected"
)

type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UserID    uint              `gorm:"not null;index" json:"user_id"` // 接收者
	Kind      NotificationKind  `gorm:"type:varchar(40);not null" json:"kind"`
	Content   string            `gorm:"type:text" json:"content"`
	Payload   datatypes.JSONMap `json:"payload,omitempty"`
	Read      bool              `gorm:"column:is_read;not null;default:false;index" json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}
