package repository

import (
	"context"
	"errors"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FileShareRepository struct {
	db *gorm.DB
}

func NewFileShareRepository() *FileShareRepository {
	return &FileShareRepository{db: db.DB}
}

func (r *FileShareRepository) WithTx(tx *gorm.DB) *FileShareRepository {
	return &FileShareRepository{db: tx}
}

// 批量创建分享记录，(file_id, user_id) 已存在时跳过
func (r *FileShareRepository) CreateShares(ctx context.Context, shares []model.FileShare) error {
	if len(shares) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&shares).Error
}

// 查找用户对文件的有效分享记录
func (r *FileShareRepository) FindShare(ctx context.Context, fileID, userID uint) (*model.FileShare, error) {
	var share model.FileShare
	err := r.db.WithContext(ctx).
		Where("file_id = ? AND user_id = ? AND is_shared = ?", fileID, userID, true).
		First(&share).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &share, nil
}

// 文件的全部分享记录
func (r *FileShareRepository) ListByFile(ctx context.Context, fileID uint) ([]model.FileShare, error) {
	shares := []model.FileShare{}
	err := r.db.WithContext(ctx).Where("file_id = ?", fileID).Order("id ASC").Find(&shares).Error
	return shares, err
}

func (r *FileShareRepository) DeleteByFile(ctx context.Context, fileID uint) error {
	return r.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&model.FileShare{}).Error
}

func (r *FileShareRepository) DeleteByFiles(ctx context.Context, fileIDs []uint) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("file_id IN ?", fileIDs).Delete(&model.FileShare{}).Error
}

// 删除分享给用户的全部记录
func (r *FileShareRepository) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.FileShare{}).Error
}
