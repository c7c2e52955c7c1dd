package repository

import (
	"context"
	"errors"
	"sharesphere/internal/model"
	"sharesphere/pkg/db"

	"gorm.io/gorm"
)

// FileRepository 文件元数据的持久化
type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository() *FileRepository {
	return &FileRepository{db: db.DB}
}

func (r *FileRepository) WithTx(tx *gorm.DB) *FileRepository {
	return &FileRepository{db: tx}
}

func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *FileRepository) FindByID(ctx context.Context, id uint) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).Preload("Owner").First(&file, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// 用户拥有的文件，按上传顺序
func (r *FileRepository) ListByOwner(ctx context.Context, ownerID uint) ([]model.File, error) {
	files := []model.File{}
	err := r.db.WithContext(ctx).Preload("Owner").
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Find(&files).Error
	return files, err
}

// 通过 is_shared 授权分享给用户的文件
func (r *FileRepository) ListSharedWith(ctx context.Context, userID uint) ([]model.File, error) {
	files := []model.File{}
	err := r.db.WithContext(ctx).Preload("Owner").
		Joins("JOIN file_shares ON file_shares.file_id = files.id").
		Where("file_shares.user_id = ? AND file_shares.is_shared = ?", userID, true).
		Order("files.id ASC").
		Find(&files).Error
	return files, err
}

// 所有文件，供管理员审核
func (r *FileRepository) ListAll(ctx context.Context) ([]model.File, error) {
	files := []model.File{}
	err := r.db.WithContext(ctx).Preload("Owner").Order("id ASC").Find(&files).Error
	return files, err
}

func (r *FileRepository) ListIDsByOwner(ctx context.Context, ownerID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&model.File{}).Where("owner_id = ?", ownerID).Pluck("id", &ids).Error
	return ids, err
}

func (r *FileRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.File{}, id)
	return res.RowsAffected > 0, res.Error
}

func (r *FileRepository) DeleteByOwner(ctx context.Context, ownerID uint) error {
	return r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&model.File{}).Error
}
