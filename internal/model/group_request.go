package model

import (
	"fmt"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// GroupRequest 用户加入群组的申请
type GroupRequest struct {
	ID      uint          `gorm:"primaryKey" json:"id"`
	UserID  uint          `gorm:"not null;index" json:"user_id"`
	GroupID uint          `gorm:"not null;index" json:"group_id"`
	Status  RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	// 仅在 pending 状态下非空，唯一索引保证同一 (用户, 群组) 最多一条待处理申请
	PendingKey *string   `gorm:"type:varchar(64);uniqueIndex:idx_group_request_pending" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User  User  `gorm:"foreignKey:UserID" json:"user"`
	Group Group `gorm:"foreignKey:GroupID" json:"group"`
}

func PendingKeyFor(userID, groupID uint) *string {
	key := fmt.Sprintf("%d:%d", userID, groupID)
	return &key
}
