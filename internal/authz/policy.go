package authz

import (
	"context"
	"fmt"

	"sharesphere/internal/model"
	"sharesphere/internal/repository"
)

// Policy 访问控制判断，每次都重新查询当前状态，不做缓存
type Policy struct {
	userRepo  *repository.UserRepository
	shareRepo *repository.FileShareRepository
}

func NewPolicy(userRepo *repository.UserRepository, shareRepo *repository.FileShareRepository) *Policy {
	return &Policy{userRepo: userRepo, shareRepo: shareRepo}
}

// CanAccess 所有者，或存在 is_shared=true 的分享记录
func (p *Policy) CanAccess(ctx context.Context, userID uint, file *model.File) (bool, error) {
	if file == nil {
		return false, nil
	}
	if file.OwnerID == userID {
		return true, nil
	}
	share, err := p.shareRepo.FindShare(ctx, file.ID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up file share: %w", err)
	}
	return share != nil, nil
}

// CanDelete 管理员或所有者
func (p *Policy) CanDelete(userID uint, isAdmin bool, file *model.File) bool {
	if file == nil {
		return false
	}
	return isAdmin || file.OwnerID == userID
}

// CanAdminister 从存储中读取用户当前的管理员标记，用户不存在时为 false
func (p *Policy) CanAdminister(ctx context.Context, userID uint) (bool, error) {
	user, err := p.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return user != nil && user.IsAdmin, nil
}
