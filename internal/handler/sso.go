package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pu-ac-cn/sso-gateway/internal/cas"
	"github.com/pu-ac-cn/sso-gateway/internal/config"
	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/pu-ac-cn/sso-gateway/internal/repository"
	"github.com/pu-ac-cn/sso-gateway/internal/service"
	"github.com/pu-ac-cn/sso-gateway/pkg/response"
	"go.uber.org/zap"
)

// 回调失败时携带到登录页的错误码
const (
	errMissingTicket       = "missing_ticket"
	errCASValidationFailed = "cas_validation_failed"
	errInvalidEmployee     = "invalid_employee_number"
	errAccountInconsistent = "account_data_inconsistent"
	errProfileCreation     = "profile_creation_failed"
	errAccountSuspended    = "account_suspended"
	errProviderNotFound    = "provider_not_found"
	errServerError         = "server_error"
)

// SSOHandler SSO 登录流程处理器
type SSOHandler struct {
	cfg          *config.Config
	providerRepo repository.SsoProviderRepository
	provision    service.ProvisionService
	logger       *zap.Logger
}

// NewSSOHandler 创建 SSO 处理器
func NewSSOHandler(cfg *config.Config, providerRepo repository.SsoProviderRepository, provision service.ProvisionService, logger *zap.Logger) *SSOHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SSOHandler{
		cfg:          cfg,
		providerRepo: providerRepo,
		provision:    provision,
		logger:       logger,
	}
}

// ProviderInfo 对外展示的提供商信息
type ProviderInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Protocol     string `json:"protocol"`
	DisplayOrder int    `json:"display_order"`
	LoginURL     string `json:"login_url"`
}

// ListProviders 列出已启用的 SSO 提供商
// GET /sso/providers
func (h *SSOHandler) ListProviders(c *gin.Context) {
	providers, err := h.providerRepo.ListEnabled(c.Request.Context())
	if err != nil {
		response.Error(c, response.CodeServerError)
		return
	}

	infos := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, ProviderInfo{
			ID:           p.ID,
			Name:         p.Name,
			Protocol:     p.Protocol,
			DisplayOrder: p.DisplayOrder,
			LoginURL:     "/sso/" + p.ID + "/login",
		})
	}
	response.Success(c, gin.H{"providers": infos})
}

// Login 重定向到 CAS 登录页
// GET /sso/:providerId/login
func (h *SSOHandler) Login(c *gin.Context) {
	provider, ok := h.lookupProvider(c)
	if !ok {
		return
	}

	returnURL := h.sanitizeReturnURL(c.Query("returnUrl"))
	casCfg := cas.ConfigFromProvider(provider, h.cfg.App.PublicURL, h.cfg.SSO.ValidateTimeout)
	c.Redirect(http.StatusFound, casCfg.LoginURL(returnURL))
}

// Logout 重定向到 CAS 登出页
// GET /sso/:providerId/logout
func (h *SSOHandler) Logout(c *gin.Context) {
	provider, ok := h.lookupProvider(c)
	if !ok {
		return
	}

	clearHandoffCookies(c, h.cfg)

	casCfg := cas.ConfigFromProvider(provider, h.cfg.App.PublicURL, h.cfg.SSO.ValidateTimeout)
	backURL := strings.TrimRight(h.cfg.App.PublicURL, "/") + h.cfg.App.LoginPath
	c.Redirect(http.StatusFound, casCfg.LogoutURL(backURL))
}

// Callback CAS 登录回调
// GET /sso/:providerId/callback
// 校验票据、开通（或找回）用户档案、写入两段式握手 Cookie，最后跳转处理页；
// 任何失败都跳回登录页并携带错误码，绝不自动重试票据校验
func (h *SSOHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	provider, err := h.providerRepo.GetByID(ctx, c.Param("providerId"))
	if err != nil || !provider.Enabled {
		h.redirectLoginError(c, errProviderNotFound, "SSO 提供商不存在或未启用")
		return
	}

	ticket := c.Query("ticket")
	if ticket == "" {
		h.redirectLoginError(c, errMissingTicket, "回调缺少票据参数")
		return
	}

	// service 必须与登录时注册的地址逐字节一致，returnUrl 取原始值参与重建
	rawReturnURL := c.Query("returnUrl")
	casCfg := cas.ConfigFromProvider(provider, h.cfg.App.PublicURL, h.cfg.SSO.ValidateTimeout)
	client := cas.NewClient(casCfg)

	result, err := client.ValidateTicket(ctx, ticket, casCfg.ServiceURLFor(rawReturnURL))
	if err != nil {
		h.logger.Error("CAS 票据校验请求失败", zap.String("provider", provider.Name), zap.Error(err))
		h.redirectLoginError(c, errCASValidationFailed, "票据校验请求失败")
		return
	}
	if !result.Success {
		h.logger.Warn("CAS 票据校验未通过",
			zap.String("provider", provider.Name),
			zap.String("code", result.ErrorCode),
			zap.String("message", result.ErrorMessage),
		)
		h.redirectLoginError(c, errCASValidationFailed, result.ErrorMessage)
		return
	}

	user, err := h.findOrCreateUser(c, provider, result)
	if err != nil {
		// findOrCreateUser 已完成跳转
		return
	}

	if user.Status == model.StatusSuspended {
		h.redirectLoginError(c, errAccountSuspended, "账户已停用")
		return
	}

	now := time.Now()
	secret := &model.BootstrapSecret{
		UserID:         user.ID,
		EmployeeNumber: user.EmployeeNumber,
		AuthSource:     provider.AuthSource(),
		LoginTime:      now.UnixMilli(),
		ExpiresAt:      now.Add(h.cfg.SSO.BootstrapTTL).UnixMilli(),
	}
	public := &model.BootstrapPublic{
		Username: user.Username,
		FullName: user.FullName,
		Provider: provider.Name,
	}
	if err := issueHandoffCookies(c, h.cfg, secret, public); err != nil {
		h.logger.Error("写入握手 Cookie 失败", zap.Error(err))
		h.redirectLoginError(c, errServerError, "登录状态写入失败")
		return
	}

	welcome := user.FullName
	if welcome == "" {
		welcome = user.Username
	}
	params := url.Values{}
	params.Set("sso_login", "success")
	params.Set("user_id", user.ID)
	params.Set("user_email", user.Email)
	params.Set("redirect_to", h.sanitizeReturnURL(rawReturnURL))
	params.Set("welcome", welcome)

	h.logger.Info("SSO 回调成功",
		zap.String("provider", provider.Name),
		zap.String("user_id", user.ID),
		zap.String("employee_number", user.EmployeeNumber),
	)
	c.Redirect(http.StatusFound, h.cfg.App.ProcessingPath+"?"+params.Encode())
}

// findOrCreateUser 按学工号找回已有档案，不存在时即时开通
// 出错时完成登录页跳转并返回非 nil error
func (h *SSOHandler) findOrCreateUser(c *gin.Context, provider *model.SsoProvider, result *cas.ValidationResult) (*model.User, error) {
	ctx := c.Request.Context()

	user, err := h.provision.FindByEmployeeNumber(ctx, result.EmployeeNumber, provider.EmployeePattern)
	if err == nil {
		h.provision.TouchLogin(ctx, user.ID)
		return user, nil
	}

	if errors.Is(err, service.ErrEmployeeNumberInvalid) {
		h.redirectLoginError(c, errInvalidEmployee, "学工号格式无效")
		return nil, err
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		h.logger.Error("查询用户档案失败", zap.String("employee_number", result.EmployeeNumber), zap.Error(err))
		h.redirectLoginError(c, errServerError, "用户档案查询失败")
		return nil, err
	}

	emailDomain := provider.EmailDomain
	if emailDomain == "" {
		emailDomain = h.cfg.App.DefaultEmailDomain
	}

	user, err = h.provision.CreateSSOUser(ctx, &service.CreateSSOUserInput{
		EmployeeNumber: result.EmployeeNumber,
		Username:       result.Username,
		FullName:       result.FullName,
		ProviderID:     provider.ID,
		ProviderName:   provider.AuthSource(),
		EmailDomain:    emailDomain,
	}, provider.EmployeePattern)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountInconsistent):
			h.redirectLoginError(c, errAccountInconsistent, "账户数据不一致，请联系管理员")
		case errors.Is(err, service.ErrEmployeeNumberInvalid):
			h.redirectLoginError(c, errInvalidEmployee, "学工号格式无效")
		default:
			h.logger.Error("创建用户档案失败", zap.String("employee_number", result.EmployeeNumber), zap.Error(err))
			h.redirectLoginError(c, errProfileCreation, "用户档案创建失败")
		}
		return nil, err
	}
	return user, nil
}

// lookupProvider 取路径参数对应的提供商，未找到时返回 404 响应
func (h *SSOHandler) lookupProvider(c *gin.Context) (*model.SsoProvider, bool) {
	provider, err := h.providerRepo.GetByID(c.Request.Context(), c.Param("providerId"))
	if err != nil || !provider.Enabled {
		response.Error(c, response.CodeProviderNotFound)
		return nil, false
	}
	return provider, true
}

// redirectLoginError 携带错误码跳回登录页
func (h *SSOHandler) redirectLoginError(c *gin.Context, code, message string) {
	params := url.Values{}
	params.Set("error", code)
	if message != "" {
		params.Set("message", message)
	}
	c.Redirect(http.StatusFound, h.cfg.App.LoginPath+"?"+params.Encode())
}

// sanitizeReturnURL 校验登录后的跳转地址
// 只允许站内相对路径，其余一律回退到默认地址，防止开放重定向
func (h *SSOHandler) sanitizeReturnURL(returnURL string) string {
	fallback := h.cfg.App.DefaultReturnURL
	if returnURL == "" {
		return fallback
	}
	if !strings.HasPrefix(returnURL, "/") {
		return fallback
	}
	if strings.HasPrefix(returnURL, "//") || strings.HasPrefix(returnURL, "/\\") {
		return fallback
	}
	if strings.Contains(returnURL, "://") {
		return fallback
	}
	return returnURL
}
