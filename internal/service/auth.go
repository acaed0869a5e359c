// Package service 认证服务
package service

import (
	"context"
	"errors"

	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/pu-ac-cn/sso-gateway/internal/repository"
)

// 认证相关错误
var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrAccountSuspended   = errors.New("账户已停用")
	ErrAccountPending     = errors.New("账户待审核")
	ErrUserNotFound       = errors.New("用户不存在")
)

// AuthService 认证服务接口
type AuthService interface {
	// AuthenticateByEmail 通过邮箱验证用户凭据
	AuthenticateByEmail(ctx context.Context, email, password string) (*model.User, error)
}

// authService 认证服务实现
type authService struct {
	userRepo repository.UserRepository
}

// NewAuthService 创建认证服务
func NewAuthService(userRepo repository.UserRepository) AuthService {
	return &authService{userRepo: userRepo}
}

// AuthenticateByEmail 通过邮箱验证用户凭据
func (s *authService) AuthenticateByEmail(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 检查账户状态
	switch user.Status {
	case model.StatusSuspended:
		return nil, ErrAccountSuspended
	case model.StatusPending:
		return nil, ErrAccountPending
	}

	// 验证密码
	if !user.VerifyPassword(password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}
