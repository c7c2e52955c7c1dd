package model

import "time"

// File 上传文件的元数据，创建后不再修改
type File struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Filename    string    `gorm:"type:varchar(255);not null" json:"filename"`
	StoragePath string    `gorm:"type:varchar(1024);not null" json:"-"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Comment     string    `gorm:"type:text" json:"comment,omitempty"`
	Size        int64     `gorm:"not null;default:0" json:"size"`
	MimeType    string    `gorm:"type:varchar(100)" json:"mime_type"`
	UploadedAt  time.Time `gorm:"autoCreateTime" json:"uploaded_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"owner"`
}
