package service

import (
	"context"
	"errors"
	"sync"

	"sharesphere/internal/apperr"
	"sharesphere/internal/model"
	"sharesphere/internal/repository"
	"sharesphere/pkg/logger"
	"sharesphere/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 登录失败时统一的提示，不区分用户不存在和密码错误
var ErrInvalidCredentials = apperr.New(apperr.KindPermissionDenied, "invalid username or password")

// 处理认证相关业务逻辑
type AuthService struct {
	tx         *repository.TxManager
	userRepo   *repository.UserRepository
	groupRepo  *repository.GroupRepository
	memberRepo *repository.GroupMemberRepository
}

// 创建一个新的认证服务实例
func NewAuthService(
	tx *repository.TxManager,
	userRepo *repository.UserRepository,
	groupRepo *repository.GroupRepository,
	memberRepo *repository.GroupMemberRepository,
) *AuthService {
	return &AuthService{
		tx:         tx,
		userRepo:   userRepo,
		groupRepo:  groupRepo,
		memberRepo: memberRepo,
	}
}

// 用户登陆请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type accountInput struct {
	Username string `validate:"required,notblank,max=100,safename"`
	Password string `validate:"required,notblank,max=72"`
}

type passwordInput struct {
	Password string `validate:"required,notblank,max=72"`
}

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

// 用户不存在时也做一次哈希比较，使耗时与密码错误一致
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("sharesphere-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// 校验用户名和密码，失败时返回 nil
func (s *AuthService) verify(ctx context.Context, username, password string) *model.User {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		logger.L.Error("Failed to look up user during authentication", zap.Error(err))
		compareDummy(password)
		return nil
	}
	if user == nil {
		compareDummy(password)
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil
	}
	return user
}

// Authenticate 校验凭据，失败时总是返回 (false, false)
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (ok bool, isAdmin bool) {
	user := s.verify(ctx, username, password)
	if user == nil {
		return false, false
	}
	return true, user.IsAdmin
}

// Login 校验凭据并签发令牌
func (s *AuthService) Login(ctx context.Context, username, password string) (*Session, string, error) {
	user := s.verify(ctx, username, password)
	if user == nil {
		logger.L.Info("Login failed", zap.String("username", username))
		return nil, "", ErrInvalidCredentials
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.IsAdmin)
	if err != nil {
		return nil, "", apperr.Internal(err, "failed to generate token")
	}

	logger.L.Info("User logged in", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return &Session{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}, token, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal(err, "failed to hash password")
	}
	return string(hashed), nil
}

// CreateAccount 新建用户，可同时加入若干已存在的群组（不存在的群组名被忽略）
func (s *AuthService) CreateAccount(ctx context.Context, username, password string, isAdmin bool, groupNames ...string) (*model.User, error) {
	if err := validateStruct(accountInput{Username: username, Password: password}); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username: username,
		Password: hashed,
		IsAdmin:  isAdmin,
	}

	err = s.tx.Transaction(ctx, func(tx *gorm.DB) error {
		users := s.userRepo.WithTx(tx)
		existing, err := users.FindByUsername(ctx, username)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Duplicate("username '%s' already exists", username)
		}
		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Duplicate("username '%s' already exists", username)
			}
			return err
		}

		groups, err := s.groupRepo.WithTx(tx).FindByNames(ctx, groupNames)
		if err != nil {
			return err
		}
		members := s.memberRepo.WithTx(tx)
		for _, g := range groups {
			if err := members.AddMember(ctx, g.ID, user.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			return nil, apperr.Internal(err, "failed to create user")
		}
		return nil, err
	}

	logger.L.Info("User created",
		zap.Uint("userID", user.ID),
		zap.String("username", user.Username),
		zap.Bool("isAdmin", user.IsAdmin))
	return user, nil
}

// ResetPassword 重新哈希并覆盖密码
func (s *AuthService) ResetPassword(ctx context.Context, userID uint, newPassword string) error {
	if err := validateStruct(passwordInput{Password: newPassword}); err != nil {
		return err
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	found, err := s.userRepo.UpdatePassword(ctx, userID, hashed)
	if err != nil {
		return apperr.Internal(err, "failed to update password")
	}
	if !found {
		return apperr.NotFound("user %d not found", userID)
	}
	logger.L.Info("Password reset", zap.Uint("userID", userID))
	return nil
}

// SetDarkMode 保存显示偏好
func (s *AuthService) SetDarkMode(ctx context.Context, sess *Session, enabled bool) error {
	found, err := s.userRepo.UpdateDarkMode(ctx, sess.UserID, enabled)
	if err != nil {
		return apperr.Internal(err, "failed to update preference")
	}
	if !found {
		return apperr.NotFound("user %d not found", sess.UserID)
	}
	return nil
}

// Profile 当前用户信息
func (s *AuthService) Profile(ctx context.Context, sess *Session) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load user")
	}
	if user == nil {
		return nil, apperr.NotFound("user %d not found", sess.UserID)
	}
	return user, nil
}
