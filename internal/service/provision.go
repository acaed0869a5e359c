// Package service SSO 用户开通服务
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/pu-ac-cn/sso-gateway/internal/repository"
	"go.uber.org/zap"
)

// 开通相关错误
var (
	ErrEmployeeNumberInvalid = errors.New("学工号格式无效")
	ErrAccountInconsistent   = errors.New("账户数据不一致")
	ErrProfileCreation       = errors.New("用户档案创建失败")
)

// CreateSSOUserInput 创建 SSO 用户所需数据
type CreateSSOUserInput struct {
	EmployeeNumber string
	Username       string
	FullName       string
	ProviderID     string
	ProviderName   string
	EmailDomain    string
}

// ProvisionService SSO 用户开通服务接口
// 学工号在任何查找或创建之前都必须通过提供商配置的格式校验，
// 格式不合法按拒绝处理而不是"未找到"
type ProvisionService interface {
	// FindByEmployeeNumber 按学工号查找用户，不存在时返回 repository.ErrUserNotFound
	FindByEmployeeNumber(ctx context.Context, employeeNumber, pattern string) (*model.User, error)
	// CreateSSOUser 创建 SSO 用户，学工号已存在时返回 ErrAccountInconsistent
	CreateSSOUser(ctx context.Context, input *CreateSSOUserInput, pattern string) (*model.User, error)
	// TouchLogin 记录登录时间，失败只记日志，绝不阻断登录
	TouchLogin(ctx context.Context, userID string)
}

type provisionService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewProvisionService 创建 SSO 用户开通服务
func NewProvisionService(userRepo repository.UserRepository, logger *zap.Logger) ProvisionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &provisionService{
		userRepo: userRepo,
		logger:   logger,
		patterns: make(map[string]*regexp.Regexp),
	}
}

// FindByEmployeeNumber 按学工号查找用户
func (s *provisionService) FindByEmployeeNumber(ctx context.Context, employeeNumber, pattern string) (*model.User, error) {
	if err := s.validateEmployeeNumber(employeeNumber, pattern); err != nil {
		return nil, err
	}
	return s.userRepo.GetByEmployeeNumber(ctx, employeeNumber)
}

// CreateSSOUser 创建 SSO 用户
// 邮箱在创建时由学工号与邮箱域拼接生成并持久化，后续登录一律使用存量邮箱
func (s *provisionService) CreateSSOUser(ctx context.Context, input *CreateSSOUserInput, pattern string) (*model.User, error) {
	if err := s.validateEmployeeNumber(input.EmployeeNumber, pattern); err != nil {
		return nil, err
	}

	// 创建前再查一次，缩小并发窗口
	if _, err := s.userRepo.GetByEmployeeNumber(ctx, input.EmployeeNumber); err == nil {
		return nil, ErrAccountInconsistent
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrProfileCreation, err)
	}

	fullName := input.FullName
	if fullName == "" {
		fullName = input.Username
	}

	user := &model.User{
		EmployeeNumber: input.EmployeeNumber,
		Username:       input.Username,
		FullName:       fullName,
		Email:          input.EmployeeNumber + "@" + input.EmailDomain,
		Status:         model.StatusActive,
		AuthSource:     input.ProviderName,
		SsoProviderID:  input.ProviderID,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 唯一索引冲突说明并发请求已抢先创建
		if errors.Is(err, repository.ErrEmployeeExists) || errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrAccountInconsistent
		}
		return nil, fmt.Errorf("%w: %v", ErrProfileCreation, err)
	}

	s.logger.Info("SSO 用户创建成功",
		zap.String("user_id", user.ID),
		zap.String("employee_number", user.EmployeeNumber),
		zap.String("provider", input.ProviderName),
	)
	return user, nil
}

// TouchLogin 记录登录时间
func (s *provisionService) TouchLogin(ctx context.Context, userID string) {
	if err := s.userRepo.TouchLogin(ctx, userID, time.Now()); err != nil {
		// 登录时间写入失败不能影响认证流程
		s.logger.Warn("更新最后登录时间失败", zap.String("user_id", userID), zap.Error(err))
	}
}

// validateEmployeeNumber 按配置的正则校验学工号格式
func (s *provisionService) validateEmployeeNumber(employeeNumber, pattern string) error {
	if employeeNumber == "" {
		return ErrEmployeeNumberInvalid
	}
	if pattern == "" {
		pattern = model.DefaultEmployeePattern
	}

	s.mu.Lock()
	re, ok := s.patterns[pattern]
	s.mu.Unlock()
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			s.logger.Error("学工号格式正则无效", zap.String("pattern", pattern), zap.Error(err))
			return ErrEmployeeNumberInvalid
		}
		s.mu.Lock()
		s.patterns[pattern] = re
		s.mu.Unlock()
	}

	if !re.MatchString(employeeNumber) {
		return ErrEmployeeNumberInvalid
	}
	return nil
}
