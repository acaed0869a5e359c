// Package service 会话引导服务
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/pu-ac-cn/sso-gateway/internal/repository"
	"go.uber.org/zap"
)

// 引导相关错误
var (
	ErrBootstrapExpired   = errors.New("SSO 登录数据已过期")
	ErrIdentityNotFound   = errors.New("用户不存在")
	ErrCredentialIssuance = errors.New("临时凭据设置失败")
	ErrSessionCreation    = errors.New("会话创建失败")
	ErrSessionValidation  = errors.New("会话校验失败")
)

// SessionResult 会话引导结果
type SessionResult struct {
	Session      *model.Session `json:"session"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"` // 秒
}

// SessionMinter 会话铸造接口
// 临时凭据方案整个隔离在该接口之后；会话后端一旦提供"为已知用户直铸会话"
// 的管理原语，换实现即可，引导流程其余部分不动
type SessionMinter interface {
	Mint(ctx context.Context, user *model.User) (*SessionResult, error)
}

// BootstrapService 会话引导服务接口
// 把已校验、已开通的身份兑换成真正的应用会话
type BootstrapService interface {
	Bootstrap(ctx context.Context, secret *model.BootstrapSecret) (*SessionResult, error)
}

type bootstrapService struct {
	userRepo repository.UserRepository
	minter   SessionMinter
	flights  *FlightGroup
	logger   *zap.Logger
}

// NewBootstrapService 创建会话引导服务
func NewBootstrapService(userRepo repository.UserRepository, minter SessionMinter, flights *FlightGroup, logger *zap.Logger) BootstrapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &bootstrapService{
		userRepo: userRepo,
		minter:   minter,
		flights:  flights,
		logger:   logger,
	}
}

// Bootstrap 执行会话引导
// 过期检查先于任何查找与凭据操作；同一 (用户, 登录事件) 的并发请求
// 经 FlightGroup 合并，只产生一次凭据改写和一次登录
func (s *bootstrapService) Bootstrap(ctx context.Context, secret *model.BootstrapSecret) (*SessionResult, error) {
	if secret.IsExpired() {
		return nil, ErrBootstrapExpired
	}

	return s.flights.RunExclusive(ctx, secret.DedupKey(), func() (*SessionResult, error) {
		user, err := s.userRepo.GetByID(ctx, secret.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrIdentityNotFound
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
		}

		result, err := s.minter.Mint(ctx, user)
		if err != nil {
			return nil, err
		}

		s.logger.Info("SSO 会话引导成功",
			zap.String("user_id", user.ID),
			zap.String("auth_source", secret.AuthSource),
			zap.String("session_id", result.Session.ID),
		)
		return result, nil
	})
}

// credentialMinter 基于临时凭据的会话铸造实现
// 给用户设置一个高熵随机密码，用它走正常登录换取会话，再立即清除
type credentialMinter struct {
	userRepo       repository.UserRepository
	authService    AuthService
	tokenService   TokenService
	sessionService SessionService
	logger         *zap.Logger
}

// NewCredentialMinter 创建临时凭据会话铸造器
func NewCredentialMinter(
	userRepo repository.UserRepository,
	authService AuthService,
	tokenService TokenService,
	sessionService SessionService,
	logger *zap.Logger,
) SessionMinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &credentialMinter{
		userRepo:       userRepo,
		authService:    authService,
		tokenService:   tokenService,
		sessionService: sessionService,
		logger:         logger,
	}
}

// Mint 铸造会话
func (m *credentialMinter) Mint(ctx context.Context, user *model.User) (*SessionResult, error) {
	// 生成高熵随机临时密码
	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialIssuance, err)
	}
	if err := user.SetPassword(tempPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialIssuance, err)
	}
	if err := m.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialIssuance, err)
	}

	// 无论登录成败都必须清除临时凭据；浏览器中断请求也不能跳过，
	// 所以清理使用与请求取消无关的上下文，失败只记日志，不掩盖原始错误
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		user.ClearPassword()
		if cerr := m.userRepo.Update(cleanupCtx, user); cerr != nil {
			m.logger.Warn("清除临时凭据失败", zap.String("user_id", user.ID), zap.Error(cerr))
		}
	}()

	// 用临时凭据换取真实会话；邮箱一律使用存量档案值，不信任外部输入
	authed, err := m.authService.AuthenticateByEmail(ctx, user.Email, tempPassword)
	if err != nil {
		if errors.Is(err, ErrAccountSuspended) || errors.Is(err, ErrAccountPending) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	claims := &TokenClaims{
		UserID:     authed.ID,
		Username:   authed.Username,
		Email:      authed.Email,
		AuthSource: authed.AuthSource,
	}
	accessToken, err := m.tokenService.GenerateAccessToken(ctx, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}
	refreshToken, err := m.tokenService.GenerateRefreshToken(ctx, &TokenClaims{
		UserID:     authed.ID,
		Username:   authed.Username,
		Email:      authed.Email,
		AuthSource: authed.AuthSource,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	session := &model.Session{
		UserID:     authed.ID,
		AuthSource: authed.AuthSource,
	}
	if err := m.sessionService.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
	}

	// 会话回读，确认确实可用
	stored, err := m.sessionService.Get(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionValidation, err)
	}

	return &SessionResult{
		Session:      stored,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(time.Until(stored.ExpiresAt).Seconds()),
	}, nil
}

// generateTempPassword 生成高熵随机临时密码
func generateTempPassword() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "sso_tmp_" + hex.EncodeToString(bytes), nil
}
