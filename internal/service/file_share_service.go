package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sharesphere/internal/apperr"
	"sharesphere/internal/authz"
	"sharesphere/internal/model"
	"sharesphere/internal/repository"

	"gorm.io/gorm"
)

// ShareMode 上传时的分享方式
type ShareMode string

const (
	ShareNone           ShareMode = "none"
	ShareAllUsers       ShareMode = "all_users"
	ShareSpecificUsers  ShareMode = "specific_users"
	ShareSpecificGroups ShareMode = "specific_groups"
)

// ParseShareMode 不区分大小写，空字符串视为 none
func ParseShareMode(s string) (ShareMode, error) {
	switch mode := ShareMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return ShareNone, nil
	case ShareNone, ShareAllUsers, ShareSpecificUsers, ShareSpecificGroups:
		return mode, nil
	default:
		return "", apperr.Validation("unknown share mode '%s'", s)
	}
}

// FileShareService 将分享方式展开为逐用户的授权记录
type FileShareService struct {
	fileShareRepo   *repository.FileShareRepository
	fileRepo        *repository.FileRepository
	userRepo        *repository.UserRepository
	groupMemberRepo *repository.GroupMemberRepository
	policy          *authz.Policy
}

type SharedFileInfo struct {
	FileID   uint      `json:"file_id"`
	UserID   uint      `json:"user_id"`
	Username string    `json:"username"`
	GroupID  uint      `json:"group_id,omitempty"`
	SharedAt time.Time `json:"shared_at"`
}

// NewFileShareService 创建新的文件分享服务
func NewFileShareService(
	fileShareRepo *repository.FileShareRepository,
	fileRepo *repository.FileRepository,
	userRepo *repository.UserRepository,
	groupMemberRepo *repository.GroupMemberRepository,
	policy *authz.Policy,
) *FileShareService {
	return &FileShareService{
		fileShareRepo:   fileShareRepo,
		fileRepo:        fileRepo,
		userRepo:        userRepo,
		groupMemberRepo: groupMemberRepo,
		policy:          policy,
	}
}

// ExpandGrants 在事务 tx 中计算授权记录。
// 所有者和不存在的用户被跳过，结果按用户去重。群组分享记录来源群组
func (s *FileShareService) ExpandGrants(ctx context.Context, tx *gorm.DB, ownerID, fileID uint, mode ShareMode, userIDs, groupIDs []uint) ([]model.FileShare, error) {
	grants := []model.FileShare{}
	seen := map[uint]bool{ownerID: true}
	add := func(userID, groupID uint) {
		if seen[userID] {
			return
		}
		seen[userID] = true
		grants = append(grants, model.FileShare{FileID: fileID, UserID: userID, IsShared: true, GroupID: groupID})
	}

	users := s.userRepo.WithTx(tx)
	switch mode {
	case ShareNone:
		return grants, nil

	case ShareAllUsers:
		// 上传时刻的其他全部用户，之后注册的用户不会获得授权
		ids, err := users.ListIDsExcept(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		for _, id := range ids {
			add(id, 0)
		}

	case ShareSpecificUsers:
		ids, err := users.ExistingIDs(ctx, userIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to verify target users: %w", err)
		}
		for _, id := range ids {
			add(id, 0)
		}

	case ShareSpecificGroups:
		members := s.groupMemberRepo.WithTx(tx)
		for _, groupID := range groupIDs {
			ids, err := members.FindGroupMemberIDs(ctx, []uint{groupID})
			if err != nil {
				return nil, fmt.Errorf("failed to list group members: %w", err)
			}
			for _, id := range ids {
				add(id, groupID)
			}
		}

	default:
		return nil, apperr.Validation("unknown share mode '%s'", mode)
	}
	return grants, nil
}

// ListGrants 文件的授权列表，仅所有者或管理员可见
func (s *FileShareService) ListGrants(ctx context.Context, sess *Session, fileID uint) ([]SharedFileInfo, error) {
	file, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load file")
	}
	if file == nil {
		return nil, apperr.NotFound("file %d not found", fileID)
	}
	if !s.policy.CanDelete(sess.UserID, sess.IsAdmin, file) {
		return nil, apperr.PermissionDenied("only the owner can view who a file is shared with")
	}

	shares, err := s.fileShareRepo.ListByFile(ctx, fileID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list shares")
	}

	result := make([]SharedFileInfo, 0, len(shares))
	for _, share := range shares {
		info := SharedFileInfo{
			FileID:   share.FileID,
			UserID:   share.UserID,
			GroupID:  share.GroupID,
			SharedAt: share.CreatedAt,
		}
		if u, err := s.userRepo.FindByID(ctx, share.UserID); err == nil && u != nil {
			info.Username = u.Username
		}
		result = append(result, info)
	}
	return result, nil
}
