package repository

import (
	"context"
	"errors"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
)

// GroupRequestRepository 加入群组申请的持久化
type GroupRequestRepository struct {
	db *gorm.DB
}

func NewGroupRequestRepository() *GroupRequestRepository {
	return &GroupRequestRepository{db: db.DB}
}

func (r *GroupRequestRepository) WithTx(tx *gorm.DB) *GroupRequestRepository {
	return &GroupRequestRepository{db: tx}
}

// 新建待处理申请。同一 (用户, 群组) 已有待处理申请时返回 gorm.ErrDuplicatedKey
func (r *GroupRequestRepository) Create(ctx context.Context, req *model.GroupRequest) error {
	req.Status = model.RequestPending
	req.PendingKey = model.PendingKeyFor(req.UserID, req.GroupID)
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *GroupRequestRepository) FindByID(ctx context.Context, id uint) (*model.GroupRequest, error) {
	var req model.GroupRequest
	err := r.db.WithContext(ctx).Preload("User").Preload("Group").First(&req, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// 查找用户对某群组的待处理申请
func (r *GroupRequestRepository) FindPending(ctx context.Context, userID, groupID uint) (*model.GroupRequest, error) {
	var req model.GroupRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ? AND status = ?", userID, groupID, model.RequestPending).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// 列出申请，status 为空时返回全部
func (r *GroupRequestRepository) List(ctx context.Context, status model.RequestStatus) ([]model.GroupRequest, error) {
	var reqs []model.GroupRequest
	q := r.db.WithContext(ctx).Preload("User").Preload("Group")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("id ASC").Find(&reqs).Error
	return reqs, err
}

// 列出用户自己的申请
func (r *GroupRequestRepository) ListByUser(ctx context.Context, userID uint) ([]model.GroupRequest, error) {
	var reqs []model.GroupRequest
	err := r.db.WithContext(ctx).Preload("Group").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&reqs).Error
	return reqs, err
}

// Resolve 将待处理申请改为终态并清除 PendingKey。
// 只更新仍处于 pending 的行，返回是否更新成功
func (r *GroupRequestRepository) Resolve(ctx context.Context, id uint, status model.RequestStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.GroupRequest{}).
		Where("id = ? AND status = ?", id, model.RequestPending).
		Updates(map[string]interface{}{
			"status":      status,
			"pending_key": nil,
		})
	return res.RowsAffected > 0, res.Error
}

// 删除用户的全部申请
func (r *GroupRequestRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.GroupRequest{}).Error
}
