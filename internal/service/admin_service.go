package service

import (
	"context"

	"sharesphere/internal/apperr"
	"sharesphere/internal/authz"
	"sharesphere/internal/model"
	"sharesphere/internal/repository"
	"sharesphere/pkg/logger"
	"sharesphere/pkg/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultLogLines = 100
	maxLogLines     = 1000
)

// AdminService 账号管理、文件审核和系统日志
type AdminService struct {
	tx          *repository.TxManager
	userRepo    *repository.UserRepository
	fileRepo    *repository.FileRepository
	shareRepo   *repository.FileShareRepository
	memberRepo  *repository.GroupMemberRepository
	requestRepo *repository.GroupRequestRepository
	notifyRepo  *repository.NotificationRepository
	auth        *AuthService
	files       *FileService
	store       *storage.BlobStore
	policy      *authz.Policy
}

func NewAdminService(
	tx *repository.TxManager,
	userRepo *repository.UserRepository,
	fileRepo *repository.FileRepository,
	shareRepo *repository.FileShareRepository,
	memberRepo *repository.GroupMemberRepository,
	requestRepo *repository.GroupRequestRepository,
	notifyRepo *repository.NotificationRepository,
	auth *AuthService,
	files *FileService,
	store *storage.BlobStore,
	policy *authz.Policy,
) *AdminService {
	return &AdminService{
		tx:          tx,
		userRepo:    userRepo,
		fileRepo:    fileRepo,
		shareRepo:   shareRepo,
		memberRepo:  memberRepo,
		requestRepo: requestRepo,
		notifyRepo:  notifyRepo,
		auth:        auth,
		files:       files,
		store:       store,
		policy:      policy,
	}
}

// CreateUserRequest 管理员创建用户
type CreateUserRequest struct {
	Username string   `json:"username" binding:"required"`
	Password string   `json:"password" binding:"required"`
	IsAdmin  bool     `json:"is_admin"`
	Groups   []string `json:"groups"`
}

func (s *AdminService) ListUsers(ctx context.Context, sess *Session) ([]model.User, error) {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list users")
	}
	return users, nil
}

func (s *AdminService) CreateUser(ctx context.Context, sess *Session, req CreateUserRequest) (*model.User, error) {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return nil, err
	}
	return s.auth.CreateAccount(ctx, req.Username, req.Password, req.IsAdmin, req.Groups...)
}

func (s *AdminService) ResetUserPassword(ctx context.Context, sess *Session, userID uint, newPassword string) error {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return err
	}
	return s.auth.ResetPassword(ctx, userID, newPassword)
}

// DeleteUser 在一个事务中删除用户及其全部关联数据：
// 分享给该用户的授权、其文件上的授权、其文件、成员关系、申请、通知和用户行。
// 用户目录在事务内移入回收区，提交后清除
func (s *AdminService) DeleteUser(ctx context.Context, sess *Session, userID uint) error {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return err
	}
	if userID == sess.UserID {
		return apperr.Validation("you cannot delete your own account")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return apperr.Internal(err, "failed to load user")
	}
	if user == nil {
		return apperr.NotFound("user %d not found", userID)
	}

	var trashed *storage.Trashed
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		files := s.fileRepo.WithTx(tx)
		shares := s.shareRepo.WithTx(tx)

		fileIDs, err := files.ListIDsByOwner(ctx, userID)
		if err != nil {
			return err
		}
		if err := shares.DeleteByFiles(ctx, fileIDs); err != nil {
			return err
		}
		if err := shares.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := files.DeleteByOwner(ctx, userID); err != nil {
			return err
		}
		if err := s.memberRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.requestRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		if err := s.notifyRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
			return err
		}
		ok, err := s.userRepo.WithTx(tx).Delete(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("user %d not found", userID)
		}

		t, err := s.store.Trash(storage.UserDir(user.Username))
		if err != nil {
			return apperr.IO(err, "failed to remove user files")
		}
		trashed = t
		return nil
	})
	if err != nil {
		if rerr := trashed.Restore(); rerr != nil {
			logger.L.Error("Failed to restore user directory after rollback",
				zap.Uint("userID", userID), zap.Error(rerr))
		}
		if apperr.KindOf(err) == apperr.KindInternal {
			return apperr.Internal(err, "failed to delete user")
		}
		return err
	}

	if err := trashed.Purge(); err != nil {
		logger.L.Error("User deleted but directory could not be purged",
			zap.Uint("userID", userID), zap.Error(err))
		return apperr.IO(err, "user deleted but their files could not be removed")
	}

	logger.L.Info("User deleted",
		zap.Uint("userID", userID),
		zap.String("username", user.Username),
		zap.Uint("by", sess.UserID))
	return nil
}

func (s *AdminService) ListFiles(ctx context.Context, sess *Session) ([]model.File, error) {
	return s.files.ListAll(ctx, sess)
}

// ForceDeleteFile 管理员删除任意文件
func (s *AdminService) ForceDeleteFile(ctx context.Context, sess *Session, fileID uint) error {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return err
	}
	admin := *sess
	admin.IsAdmin = true
	return s.files.Delete(ctx, &admin, fileID)
}

// SystemLogs 日志文件最后若干行
func (s *AdminService) SystemLogs(ctx context.Context, sess *Session, lines int) ([]string, error) {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return nil, err
	}
	if lines <= 0 {
		lines = defaultLogLines
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}
	out, err := logger.Tail(lines)
	if err != nil {
		return nil, apperr.IO(err, "failed to read system logs")
	}
	return out, nil
}
