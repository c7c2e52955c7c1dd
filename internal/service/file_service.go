package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"sharesphere/internal/apperr"
	"sharesphere/internal/authz"
	"sharesphere/internal/model"
	"sharesphere/internal/repository"
	"sharesphere/pkg/logger"
	"sharesphere/pkg/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FileService 管理文件上传、列表、下载和删除
type FileService struct {
	tx          *repository.TxManager
	fileRepo    *repository.FileRepository
	shareRepo   *repository.FileShareRepository
	shares      *FileShareService
	store       *storage.BlobStore
	policy      *authz.Policy
	notifier    *NotificationService
	maxFileSize int64
}

// NewFileService 创建新的文件服务。maxFileSize <= 0 表示不限制
func NewFileService(
	tx *repository.TxManager,
	fileRepo *repository.FileRepository,
	shareRepo *repository.FileShareRepository,
	shares *FileShareService,
	store *storage.BlobStore,
	policy *authz.Policy,
	notifier *NotificationService,
	maxFileSize int64,
) *FileService {
	return &FileService{
		tx:          tx,
		fileRepo:    fileRepo,
		shareRepo:   shareRepo,
		shares:      shares,
		store:       store,
		policy:      policy,
		notifier:    notifier,
		maxFileSize: maxFileSize,
	}
}

// UploadRequest 上传参数
type UploadRequest struct {
	Filename  string    `validate:"required,notblank,max=255"`
	Content   io.Reader `validate:"required"`
	Comment   string    `validate:"max=1000"`
	ShareMode ShareMode `validate:"-"`
	UserIDs   []uint    `validate:"-"`
	GroupIDs  []uint    `validate:"-"`
}

// Upload 先写入文件内容，再在一个事务中写入元数据和授权记录。
// 数据库失败时删除已写入的文件内容
func (s *FileService) Upload(ctx context.Context, sess *Session, req UploadRequest) (*model.File, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	mode, err := ParseShareMode(string(req.ShareMode))
	if err != nil {
		return nil, err
	}

	content := req.Content
	if s.maxFileSize > 0 {
		content = io.LimitReader(content, s.maxFileSize+1)
	}

	// 1. 写入文件内容
	blob, err := s.store.Put(sess.Username, req.Filename, content)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			return nil, apperr.Validation("invalid file name '%s'", req.Filename)
		}
		logger.L.Error("Failed to store blob", zap.Uint("userID", sess.UserID), zap.Error(err))
		return nil, apperr.IO(err, "failed to store file")
	}
	if s.maxFileSize > 0 && blob.Size > s.maxFileSize {
		s.removeBlob(blob.Path)
		return nil, apperr.Validation("file exceeds the maximum size of %d bytes", s.maxFileSize)
	}

	file := &model.File{
		Filename:    blob.Name,
		StoragePath: blob.Path,
		OwnerID:     sess.UserID,
		Comment:     req.Comment,
		Size:        blob.Size,
		MimeType:    blob.MimeType,
	}

	// 2. 元数据和授权在同一事务中
	var grants []model.FileShare
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.fileRepo.WithTx(tx).Create(ctx, file); err != nil {
			return err
		}
		g, err := s.shares.ExpandGrants(ctx, tx, sess.UserID, file.ID, mode, req.UserIDs, req.GroupIDs)
		if err != nil {
			return err
		}
		if err := s.shareRepo.WithTx(tx).CreateShares(ctx, g); err != nil {
			return err
		}
		grants = g
		return nil
	})
	if err != nil {
		// 3. 补偿：删除孤立的文件内容
		s.removeBlob(blob.Path)
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Internal(err, "failed to save file metadata")
		}
		return nil, err
	}

	logger.L.Info("File uploaded",
		zap.Uint("fileID", file.ID),
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size),
		zap.Uint("ownerID", sess.UserID),
		zap.String("shareMode", string(mode)),
		zap.Int("grants", len(grants)))

	if s.notifier != nil && len(grants) > 0 {
		recipients := make([]uint, 0, len(grants))
		for _, g := range grants {
			recipients = append(recipients, g.UserID)
		}
		s.notifier.Notify(ctx, recipients, model.NotifyFileShared,
			fmt.Sprintf("%s shared '%s' with you", sess.Username, file.Filename),
			map[string]interface{}{"file_id": file.ID, "owner_id": sess.UserID})
	}
	return file, nil
}

func (s *FileService) removeBlob(path string) {
	if err := s.store.Remove(path); err != nil {
		logger.L.Error("Failed to remove orphaned blob", zap.String("path", path), zap.Error(err))
	}
}

// ListAccessible 用户拥有的文件和分享给用户的文件
func (s *FileService) ListAccessible(ctx context.Context, sess *Session) (owned, shared []model.File, err error) {
	owned, err = s.fileRepo.ListByOwner(ctx, sess.UserID)
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to list files")
	}
	shared, err = s.fileRepo.ListSharedWith(ctx, sess.UserID)
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to list shared files")
	}
	return owned, shared, nil
}

// ListAll 所有文件，管理员审核用
func (s *FileService) ListAll(ctx context.Context, sess *Session) ([]model.File, error) {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return nil, err
	}
	files, err := s.fileRepo.ListAll(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list files")
	}
	return files, nil
}

func (s *FileService) load(ctx context.Context, fileID uint) (*model.File, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load file")
	}
	if file == nil {
		return nil, apperr.NotFound("file %d not found", fileID)
	}
	return file, nil
}

// Download 打开文件内容。调用方负责关闭返回的 ReadCloser
func (s *FileService) Download(ctx context.Context, sess *Session, fileID uint) (*model.File, io.ReadCloser, error) {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.policy.CanAccess(ctx, sess.UserID, file)
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to check permission")
	}
	if !ok {
		return nil, nil, apperr.PermissionDenied("you do not have access to this file")
	}

	rc, err := s.store.Open(file.StoragePath)
	if err != nil {
		logger.L.Error("Failed to open blob", zap.Uint("fileID", file.ID), zap.Error(err))
		return nil, nil, apperr.IO(err, "failed to read file")
	}

	if s.notifier != nil && sess.UserID != file.OwnerID {
		s.notifier.Notify(ctx, []uint{file.OwnerID}, model.NotifyFileDownloaded,
			fmt.Sprintf("%s downloaded '%s'", sess.Username, file.Filename),
			map[string]interface{}{"file_id": file.ID, "user_id": sess.UserID})
	}
	return file, rc, nil
}

// Delete 管理员或所有者可删除
func (s *FileService) Delete(ctx context.Context, sess *Session, fileID uint) error {
	file, err := s.load(ctx, fileID)
	if err != nil {
		return err
	}
	if !s.policy.CanDelete(sess.UserID, sess.IsAdmin, file) {
		return apperr.PermissionDenied("only the owner or an admin can delete this file")
	}
	if err := s.deleteFile(ctx, file); err != nil {
		return err
	}
	logger.L.Info("File deleted", zap.Uint("fileID", file.ID), zap.Uint("by", sess.UserID))
	return nil
}

// 授权记录、元数据和文件内容作为一个整体删除。
// 文件内容在事务内移入回收区，回滚时恢复，提交后清除
func (s *FileService) deleteFile(ctx context.Context, file *model.File) error {
	var trashed *storage.Trashed
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.shareRepo.WithTx(tx).DeleteByFile(ctx, file.ID); err != nil {
			return err
		}
		ok, err := s.fileRepo.WithTx(tx).Delete(ctx, file.ID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("file %d not found", file.ID)
		}
		t, err := s.store.Trash(file.StoragePath)
		if err != nil {
			return apperr.IO(err, "failed to remove file")
		}
		trashed = t
		return nil
	})
	if err != nil {
		if rerr := trashed.Restore(); rerr != nil {
			logger.L.Error("Failed to restore blob after rollback",
				zap.Uint("fileID", file.ID), zap.Error(rerr))
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			return apperr.Internal(err, "failed to delete file")
		}
		return err
	}

	if err := trashed.Purge(); err != nil {
		logger.L.Error("File record deleted but blob could not be purged",
			zap.Uint("fileID", file.ID), zap.String("path", file.StoragePath), zap.Error(err))
		return apperr.IO(err, "file record deleted but its content could not be removed")
	}
	return nil
}
