package service

import (
	"context"
	"errors"
	"fmt"

	"sharesphere/internal/apperr"
	"sharesphere/internal/authz"
	"sharesphere/internal/model"
	"sharesphere/internal/repository"
	"sharesphere/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GroupService 群组与加入申请
type GroupService struct {
	tx          *repository.TxManager
	groupRepo   *repository.GroupRepository
	memberRepo  *repository.GroupMemberRepository
	requestRepo *repository.GroupRequestRepository
	userRepo    *repository.UserRepository
	policy      *authz.Policy
	notifier    *NotificationService
}

func NewGroupService(
	tx *repository.TxManager,
	groupRepo *repository.GroupRepository,
	memberRepo *repository.GroupMemberRepository,
	requestRepo *repository.GroupRequestRepository,
	userRepo *repository.UserRepository,
	policy *authz.Policy,
	notifier *NotificationService,
) *GroupService {
	return &GroupService{
		tx:          tx,
		groupRepo:   groupRepo,
		memberRepo:  memberRepo,
		requestRepo: requestRepo,
		userRepo:    userRepo,
		policy:      policy,
		notifier:    notifier,
	}
}

type groupInput struct {
	Name string `validate:"required,notblank,max=100"`
}

// 管理员操作前从存储中确认当前用户仍是管理员
func requireAdmin(ctx context.Context, policy *authz.Policy, sess *Session) error {
	if sess == nil {
		return apperr.PermissionDenied("login required")
	}
	ok, err := policy.CanAdminister(ctx, sess.UserID)
	if err != nil {
		return apperr.Internal(err, "failed to check permission")
	}
	if !ok {
		return apperr.PermissionDenied("admin privileges required")
	}
	return nil
}

// CreateGroup 新建群组，重名时返回 DuplicateError
func (s *GroupService) CreateGroup(ctx context.Context, sess *Session, name string) (*model.Group, error) {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return nil, err
	}
	if err := validateStruct(groupInput{Name: name}); err != nil {
		return nil, err
	}

	existing, err := s.groupRepo.FindByName(ctx, name)
	if err != nil {
		return nil, apperr.Internal(err, "failed to look up group")
	}
	if existing != nil {
		return nil, apperr.Duplicate("group '%s' already exists", name)
	}

	group := &model.Group{Name: name}
	if err := s.groupRepo.Create(ctx, group); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Duplicate("group '%s' already exists", name)
		}
		return nil, apperr.Internal(err, "failed to create group")
	}

	logger.L.Info("Group created", zap.Uint("groupID", group.ID), zap.String("name", name), zap.Uint("by", sess.UserID))
	return group, nil
}

// ListGroups 所有群组及其成员
func (s *GroupService) ListGroups(ctx context.Context) ([]model.Group, error) {
	groups, err := s.groupRepo.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list groups")
	}
	return groups, nil
}

// GetGroup 单个群组及其成员
func (s *GroupService) GetGroup(ctx context.Context, groupID uint) (*model.Group, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load group")
	}
	if group == nil {
		return nil, apperr.NotFound("group %d not found", groupID)
	}
	return group, nil
}

// UserGroups 当前用户已加入的群组
func (s *GroupService) UserGroups(ctx context.Context, sess *Session) ([]model.Group, error) {
	groups, err := s.groupRepo.FindUserGroups(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list groups")
	}
	return groups, nil
}

// AvailableGroups 当前用户尚未加入的群组
func (s *GroupService) AvailableGroups(ctx context.Context, sess *Session) ([]model.Group, error) {
	groups, err := s.groupRepo.FindAvailableGroups(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list groups")
	}
	return groups, nil
}

// RequestJoin 申请加入群组。已有待处理申请时返回 created=false 且不报错
func (s *GroupService) RequestJoin(ctx context.Context, sess *Session, groupID uint) (created bool, err error) {
	var req *model.GroupRequest
	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		group, err := s.groupRepo.WithTx(tx).FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return apperr.NotFound("group %d not found", groupID)
		}

		member, err := s.memberRepo.WithTx(tx).IsMember(ctx, groupID, sess.UserID)
		if err != nil {
			return err
		}
		if member {
			return apperr.Validation("already a member of group '%s'", group.Name)
		}

		requests := s.requestRepo.WithTx(tx)
		pending, err := requests.FindPending(ctx, sess.UserID, groupID)
		if err != nil {
			return err
		}
		if pending != nil {
			return nil
		}

		r := &model.GroupRequest{UserID: sess.UserID, GroupID: groupID}
		if err := requests.Create(ctx, r); err != nil {
			return err
		}
		r.Group = *group
		req = r
		return nil
	})

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// 并发写入者已创建了待处理申请
		return false, nil
	case err != nil:
		if apperr.KindOf(err) == apperr.KindInternal {
			return false, apperr.Internal(err, "failed to create join request")
		}
		return false, err
	case req == nil:
		logger.L.Debug("Join request already pending", zap.Uint("userID", sess.UserID), zap.Uint("groupID", groupID))
		return false, nil
	}

	logger.L.Info("Join request created",
		zap.Uint("requestID", req.ID),
		zap.Uint("userID", sess.UserID),
		zap.Uint("groupID", groupID))

	s.notifyAdmins(ctx, req, sess.Username)
	return true, nil
}

func (s *GroupService) notifyAdmins(ctx context.Context, req *model.GroupRequest, username string) {
	if s.notifier == nil {
		return
	}
	adminIDs, err := s.userRepo.AdminIDs(ctx)
	if err != nil {
		logger.L.Warn("Failed to load admins for notification", zap.Error(err))
		return
	}
	content := fmt.Sprintf("%s requested to join group '%s'", username, req.Group.Name)
	s.notifier.Notify(ctx, adminIDs, model.NotifyRequestCreated, content, map[string]interface{}{
		"request_id": req.ID,
		"group_id":   req.GroupID,
		"user_id":    req.UserID,
	})
}

// ListRequests 列出申请，status 为空时返回全部
func (s *GroupService) ListRequests(ctx context.Context, sess *Session, status model.RequestStatus) ([]model.GroupRequest, error) {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return nil, err
	}
	switch status {
	case "", model.RequestPending, model.RequestApproved, model.RequestRejected:
	default:
		return nil, apperr.Validation("unknown request status '%s'", status)
	}
	reqs, err := s.requestRepo.List(ctx, status)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list requests")
	}
	return reqs, nil
}

// MyRequests 当前用户提交的申请
func (s *GroupService) MyRequests(ctx context.Context, sess *Session) ([]model.GroupRequest, error) {
	reqs, err := s.requestRepo.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list requests")
	}
	return reqs, nil
}

// Approve 批准申请并在同一事务中加入成员
func (s *GroupService) Approve(ctx context.Context, sess *Session, requestID uint) error {
	return s.resolve(ctx, sess, requestID, model.RequestApproved)
}

// Reject 拒绝申请，不改变成员关系
func (s *GroupService) Reject(ctx context.Context, sess *Session, requestID uint) error {
	return s.resolve(ctx, sess, requestID, model.RequestRejected)
}

// 终态不可变更：重复同一操作视为成功，相反操作返回 ValidationError
func (s *GroupService) resolve(ctx context.Context, sess *Session, requestID uint, target model.RequestStatus) error {
	if err := requireAdmin(ctx, s.policy, sess); err != nil {
		return err
	}

	var (
		req     *model.GroupRequest
		changed bool
	)
	err := s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		requests := s.requestRepo.WithTx(tx)
		r, err := requests.FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if r == nil {
			return apperr.NotFound("request %d not found", requestID)
		}
		req = r

		if r.Status != model.RequestPending {
			if r.Status == target {
				return nil
			}
			return apperr.Validation("request %d is already %s", requestID, r.Status)
		}

		ok, err := requests.Resolve(ctx, requestID, target)
		if err != nil {
			return err
		}
		if !ok {
			// 被并发处理，重新读取终态
			latest, err := requests.FindByID(ctx, requestID)
			if err != nil {
				return err
			}
			if latest != nil && latest.Status == target {
				return nil
			}
			return apperr.Validation("request %d was resolved concurrently", requestID)
		}

		if target == model.RequestApproved {
			if err := s.memberRepo.WithTx(tx).AddMember(ctx, r.GroupID, r.UserID); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return apperr.Internal(err, "failed to resolve request")
		}
		return err
	}
	if !changed {
		return nil
	}

	logger.L.Info("Join request resolved",
		zap.Uint("requestID", requestID),
		zap.String("status", string(target)),
		zap.Uint("by", sess.UserID))

	if s.notifier != nil {
		kind := model.NotifyRequestApproved
		if target == model.RequestRejected {
			kind = model.NotifyRequestRejected
		}
		content := fmt.Sprintf("Your request to join group '%s' was %s", req.Group.Name, target)
		s.notifier.Notify(ctx, []uint{req.UserID}, kind, content, map[string]interface{}{
			"request_id": req.ID,
			"group_id":   req.GroupID,
		})
	}
	return nil
}
