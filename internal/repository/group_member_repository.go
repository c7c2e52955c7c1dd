package repository

import (
	"context"
	"errors"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupMemberRepository struct {
	db *gorm.DB
}

func NewGroupMemberRepository() *GroupMemberRepository {
	return &GroupMemberRepository{db: db.DB}
}

func (r *GroupMemberRepository) WithTx(tx *gorm.DB) *GroupMemberRepository {
	return &GroupMemberRepository{db: tx}
}

// 将用户添加到群组，已是成员时不做任何事
func (r *GroupMemberRepository) AddMember(ctx context.Context, groupID, userID uint) error {
	member := &model.GroupMember{
		GroupID: groupID,
		UserID:  userID,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error
}

// 判断用户是否为群组成员
func (r *GroupMemberRepository) IsMember(ctx context.Context, groupID, userID uint) (bool, error) {
	var member model.GroupMember
	err := r.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// 获取若干群组全部成员的ID，去重
func (r *GroupMemberRepository) FindGroupMemberIDs(ctx context.Context, groupIDs []uint) ([]uint, error) {
	userIDs := []uint{}
	if len(groupIDs) == 0 {
		return userIDs, nil
	}
	err := r.db.WithContext(ctx).Model(&model.GroupMember{}).
		Where("group_id IN ?", groupIDs).
		Distinct().
		Order("user_id ASC").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// 删除用户的全部成员关系
func (r *GroupMemberRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.GroupMember{}).Error
}
