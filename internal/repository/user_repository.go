package repository

import (
	"context"
	"errors"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
)

// UserRepository 处理用户数据持久化
type UserRepository struct {
	db *gorm.DB
}

// 创建一个新的用户存储库实例
func NewUserRepository() *UserRepository {
	return &UserRepository{db: db.DB}
}

// WithTx 返回绑定到事务的存储库
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// 新建用户
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// 通过用户名查找用户，精确匹配
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 通过ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // 用户不存在
		}
		return nil, err
	}
	return &user, nil
}

// 所有用户，按创建顺序
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

// 除指定用户外所有用户的ID
func (r *UserRepository) ListIDsExcept(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id <> ?", userID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// 过滤出实际存在的用户ID
func (r *UserRepository) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return []uint{}, nil
	}
	var existing []uint
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id IN ?", ids).
		Order("id ASC").
		Pluck("id", &existing).Error
	return existing, err
}

// 所有管理员的ID
func (r *UserRepository) AdminIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("is_admin = ?", true).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Count(&n).Error
	return n, err
}

// 更新密码哈希，返回是否找到该用户
func (r *UserRepository) UpdatePassword(ctx context.Context, id uint, hash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("password", hash)
	return res.RowsAffected > 0, res.Error
}

// 更新暗色模式偏好
func (r *UserRepository) UpdateDarkMode(ctx context.Context, id uint, enabled bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Update("dark_mode", enabled)
	return res.RowsAffected > 0, res.Error
}

// 删除用户行。关联数据由调用方在同一事务中先行删除
func (r *UserRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.User{}, id)
	return res.RowsAffected > 0, res.Error
}
