package model

import "time"

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_user_username" json:"username"`
	Password  string    `gorm:"type:varchar(100);not null" json:"-"` // bcrypt 哈希
	IsAdmin   bool      `gorm:"not null;default:false" json:"is_admin"`
	DarkMode  bool      `gorm:"not null;default:false" json:"dark_mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
