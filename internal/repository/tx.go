package repository

import (
	"context"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
)

// TxManager 在一个数据库事务中执行多个存储库操作
type TxManager struct {
	db *gorm.DB
}

func NewTxManager() *TxManager {
	return &TxManager{db: db.DB}
}

// Transaction fn 返回错误时回滚
func (m *TxManager) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}
