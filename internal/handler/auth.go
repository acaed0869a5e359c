package handler

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/pu-ac-cn/sso-gateway/internal/config"
	"github.com/pu-ac-cn/sso-gateway/internal/repository"
	"github.com/pu-ac-cn/sso-gateway/internal/service"
	"github.com/pu-ac-cn/sso-gateway/pkg/response"
	"go.uber.org/zap"
)

// AuthHandler 会话引导与用户信息处理器
type AuthHandler struct {
	cfg       *config.Config
	bootstrap service.BootstrapService
	userRepo  repository.UserRepository
	logger    *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config, bootstrap service.BootstrapService, userRepo repository.UserRepository, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		cfg:       cfg,
		bootstrap: bootstrap,
		userRepo:  userRepo,
		logger:    logger,
	}
}

// SSOSigninRequest 引导请求体
// 仅作前端兼容保留，身份字段一律以服务端 Cookie 为准，请求体不参与任何判定
type SSOSigninRequest struct {
	UserEmail   string          `json:"userEmail"`
	SSOUserData json.RawMessage `json:"ssoUserData"`
}

// SSOSignin 用握手 Cookie 兑换应用会话
// POST /auth/sso-signin
// 敏感数据只在服务端读取；无论成败，两段握手 Cookie 都在响应中清除
func (h *AuthHandler) SSOSignin(c *gin.Context) {
	var req SSOSigninRequest
	_ = c.ShouldBindJSON(&req)

	secret, state := consumeHandoffSecret(c)
	clearHandoffCookies(c, h.cfg)

	switch state {
	case handoffMissing, handoffInvalid:
		response.ErrorWithMsg(c, response.CodeBootstrapExpired, "SSO 登录数据缺失或无效，请重新登录")
		return
	case handoffExpired:
		response.Error(c, response.CodeBootstrapExpired)
		return
	}

	result, err := h.bootstrap.Bootstrap(c.Request.Context(), secret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapExpired):
			response.Error(c, response.CodeBootstrapExpired)
		case errors.Is(err, service.ErrIdentityNotFound):
			response.Error(c, response.CodeUserNotFound)
		case errors.Is(err, service.ErrAccountSuspended):
			response.Error(c, response.CodeAccountSuspended)
		case errors.Is(err, service.ErrAccountPending):
			response.Error(c, response.CodeAccountPending)
		case errors.Is(err, service.ErrCredentialIssuance):
			response.Error(c, response.CodeCredentialIssuance)
		case errors.Is(err, service.ErrSessionValidation):
			response.Error(c, response.CodeSessionValidation)
		case errors.Is(err, service.ErrSessionCreation):
			response.Error(c, response.CodeSessionCreation)
		default:
			h.logger.Error("SSO 会话引导失败", zap.String("user_id", secret.UserID), zap.Error(err))
			response.Error(c, response.CodeServerError)
		}
		return
	}

	response.Success(c, gin.H{
		"session_id":    result.Session.ID,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"token_type":    result.TokenType,
		"expires_in":    result.ExpiresIn,
	})
}

// GetCurrentUser 获取当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	// 由认证中间件写入上下文
	userID, exists := c.Get("user_id")
	if !exists {
		response.Error(c, response.CodeInvalidToken)
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), userID.(string))
	if err != nil {
		response.Error(c, response.CodeUserNotFound)
		return
	}

	response.Success(c, gin.H{
		"id":              user.ID,
		"employee_number": user.EmployeeNumber,
		"username":        user.Username,
		"full_name":       user.FullName,
		"email":           user.Email,
		"status":          user.Status,
		"auth_source":     user.AuthSource,
		"last_login_at":   user.LastLoginAt,
		"created_at":      user.CreatedAt,
	})
}
