package model

import (
	"time"
)

type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_group_name" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Members []GroupMember `gorm:"foreignKey:GroupID" json:"members,omitempty"`
}

// GROUPS 在 MySQL 8 中是保留字
func (Group) TableName() string {
	return "share_groups"
}
