package repository

import (
	"context"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{db: db.DB}
}

func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

// 保存通知
func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// 批量保存通知
func (r *NotificationRepository) CreateBatch(ctx context.Context, ns []*model.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&ns).Error
}

// 获取用户的通知，最新的在前
func (r *NotificationRepository) FindByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	notifications := []model.Notification{}
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	err := q.Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	return notifications, err
}

// 未读数量
func (r *NotificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	return n, err
}

// 标记已读，只作用于该用户自己的通知。ids 为空时标记全部
func (r *NotificationRepository) MarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ? AND is_read = ?", userID, false)
	if len(ids) > 0 {
		q = q.Where("id IN ?", ids)
	}
	res := q.Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Notification{}).Error
}
