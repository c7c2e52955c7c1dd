package model

import (
	"time"
)

// FileShare 表示文件分享记录：允许某个非所有者用户访问某个文件
type FileShare struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	FileID   uint `gorm:"not null;index;uniqueIndex:idx_file_share" json:"file_id"`
	UserID   uint `gorm:"not null;index;uniqueIndex:idx_file_share" json:"user_id"` // 分享给的用户
	IsShared bool `gorm:"not null;default:false" json:"is_shared"`
	// 通过群组展开的分享记录来源群组，直接分享为 0
	GroupID   uint      `gorm:"index" json:"group_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
