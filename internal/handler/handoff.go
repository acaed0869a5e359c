// Package handler HTTP 处理器
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pu-ac-cn/sso-gateway/internal/config"
	"github.com/pu-ac-cn/sso-gateway/internal/model"
)

// 握手 Cookie 名称
const (
	secretCookieName = "sso_secret"
	publicCookieName = "sso_public"
)

// 敏感 Cookie 的消费结果
type handoffState int

const (
	handoffValid   handoffState = iota // 数据有效
	handoffMissing                     // Cookie 不存在
	handoffInvalid                     // 数据无法解析
	handoffExpired                     // 数据已过期
)

// issueHandoffCookies 写入两段式握手 Cookie
// 敏感段 httpOnly，展示段脚本可读；两段同寿命，SameSite=Lax 保证
// CAS 顶级跳转回来时 Cookie 仍随请求发送
func issueHandoffCookies(c *gin.Context, cfg *config.Config, secret *model.BootstrapSecret, public *model.BootstrapPublic) error {
	secretJSON, err := json.Marshal(secret)
	if err != nil {
		return err
	}
	publicJSON, err := json.Marshal(public)
	if err != nil {
		return err
	}

	maxAge := int(cfg.SSO.BootstrapTTL.Seconds())
	secure := isSecureOrigin(cfg)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(secretCookieName, string(secretJSON), maxAge, "/", "", secure, true)
	c.SetCookie(publicCookieName, string(publicJSON), maxAge, "/", "", secure, false)
	return nil
}

// consumeHandoffSecret 读取并解析敏感握手 Cookie
// 只读取不删除，删除由调用方在所有出口统一执行
func consumeHandoffSecret(c *gin.Context) (*model.BootstrapSecret, handoffState) {
	raw, err := c.Cookie(secretCookieName)
	if err != nil {
		return nil, handoffMissing
	}

	var secret model.BootstrapSecret
	if err := json.Unmarshal([]byte(raw), &secret); err != nil {
		return nil, handoffInvalid
	}
	if secret.UserID == "" || secret.LoginTime == 0 {
		return nil, handoffInvalid
	}
	if secret.IsExpired() {
		return &secret, handoffExpired
	}
	return &secret, handoffValid
}

// clearHandoffCookies 清除两段握手 Cookie
// 握手数据一次性使用，无论引导成败都必须清除
func clearHandoffCookies(c *gin.Context, cfg *config.Config) {
	secure := isSecureOrigin(cfg)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(secretCookieName, "", -1, "/", "", secure, true)
	c.SetCookie(publicCookieName, "", -1, "/", "", secure, false)
}

// isSecureOrigin 应用公开地址是否为 HTTPS
func isSecureOrigin(cfg *config.Config) bool {
	return strings.HasPrefix(cfg.App.PublicURL, "https://")
}
