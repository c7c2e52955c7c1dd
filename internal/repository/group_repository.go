package repository

import (
	"context"
	"errors"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
)

type GroupRepository struct {
	db *gorm.DB
}

func NewGroupRepository() *GroupRepository {
	return &GroupRepository{db: db.DB}
}

func (r *GroupRepository) WithTx(tx *gorm.DB) *GroupRepository {
	return &GroupRepository{db: tx}
}

// 创建新群组
func (r *GroupRepository) Create(ctx context.Context, group *model.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// 根据ID查找群组，并预加载成员和用户信息
func (r *GroupRepository) FindByID(ctx context.Context, groupID uint) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).Preload("Members").Preload("Members.User").First(&group, groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // group not found
		}
		return nil, err
	}
	return &group, nil
}

// 根据名称查找群组
func (r *GroupRepository) FindByName(ctx context.Context, name string) (*model.Group, error) {
	var group model.Group
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&group).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

// 按名称批量查找，不存在的名称被忽略
func (r *GroupRepository) FindByNames(ctx context.Context, names []string) ([]model.Group, error) {
	groups := []model.Group{}
	if len(names) == 0 {
		return groups, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Order("id ASC").Find(&groups).Error
	return groups, err
}

// 所有群组，预加载成员
func (r *GroupRepository) List(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	err := r.db.WithContext(ctx).
		Preload("Members").
		Preload("Members.User").
		Order("share_groups.id ASC").
		Find(&groups).Error
	return groups, err
}

// 查找用户所属的所有群组
func (r *GroupRepository) FindUserGroups(ctx context.Context, userID uint) ([]model.Group, error) {
	var groups []model.Group
	// 通过 GroupMember 连接查询
	err := r.db.WithContext(ctx).
		Joins("JOIN group_members ON share_groups.id = group_members.group_id").
		Where("group_members.user_id = ?", userID).
		Order("share_groups.id ASC").
		Find(&groups).Error
	return groups, err
}

// 查找用户尚未加入的群组
func (r *GroupRepository) FindAvailableGroups(ctx context.Context, userID uint) ([]model.Group, error) {
	var groups []model.Group
	sub := r.db.Model(&model.GroupMember{}).Select("group_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("id NOT IN (?)", sub).
		Order("id ASC").
		Find(&groups).Error
	return groups, err
}
