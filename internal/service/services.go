package service

import (
	"sharesphere/internal/authz"
	"sharesphere/internal/interfaces"
	"sharesphere/internal/repository"
	"sharesphere/pkg/storage"
)

// Services 按依赖顺序创建的全部业务服务。须在 db.InitDB 之后调用
type Services struct {
	Users         *repository.UserRepository
	Policy        *authz.Policy
	Auth          *AuthService
	Groups        *GroupService
	Shares        *FileShareService
	Files         *FileService
	Admin         *AdminService
	Notifications *NotificationService
}

// NewServices hub 可以为 nil，之后通过 Notifications.SetHub 注入
func NewServices(hub interfaces.PushHub, store *storage.BlobStore, maxFileSize int64) *Services {
	tx := repository.NewTxManager()
	userRepo := repository.NewUserRepository()
	groupRepo := repository.NewGroupRepository()
	memberRepo := repository.NewGroupMemberRepository()
	requestRepo := repository.NewGroupRequestRepository()
	fileRepo := repository.NewFileRepository()
	shareRepo := repository.NewFileShareRepository()
	notifyRepo := repository.NewNotificationRepository()

	policy := authz.NewPolicy(userRepo, shareRepo)
	notifications := NewNotificationService(hub, notifyRepo)
	auth := NewAuthService(tx, userRepo, groupRepo, memberRepo)
	shares := NewFileShareService(shareRepo, fileRepo, userRepo, memberRepo, policy)
	files := NewFileService(tx, fileRepo, shareRepo, shares, store, policy, notifications, maxFileSize)

	return &Services{
		Users:         userRepo,
		Policy:        policy,
		Auth:          auth,
		Groups:        NewGroupService(tx, groupRepo, memberRepo, requestRepo, userRepo, policy, notifications),
		Shares:        shares,
		Files:         files,
		Admin:         NewAdminService(tx, userRepo, fileRepo, shareRepo, memberRepo, requestRepo, notifyRepo, auth, files, store, policy),
		Notifications: notifications,
	}
}
