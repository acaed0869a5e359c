// Package cas 实现 CAS 2.0/3.0 客户端：登录/登出地址生成与票据校验
package cas

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pu-ac-cn/sso-gateway/internal/model"
)

// Endpoints CAS 服务器端点路径
type Endpoints struct {
	Login      string
	Logout     string
	Validate   string
	ValidateV3 string
}

// AttributeMapping 属性字段映射
type AttributeMapping struct {
	EmployeeID string
	Username   string
	FullName   string
	Email      string
}

// Config 单个提供商的 CAS 客户端配置
// ServiceURL 必须与登录时注册的回调地址逐字节一致，CAS 在任何不一致时静默校验失败
type Config struct {
	ID          string
	Name        string
	BaseURL     string
	ServiceURL  string
	Version     string
	Timeout     time.Duration
	Endpoints   Endpoints
	Mapping     AttributeMapping
	EmailDomain string
}

// ConfigFromProvider 由提供商配置行和应用公开地址构造 CAS 配置
func ConfigFromProvider(p *model.SsoProvider, appURL string, timeout time.Duration) Config {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return Config{
		ID:         p.ID,
		Name:       p.Name,
		BaseURL:    strings.TrimRight(p.BaseURL, "/"),
		ServiceURL: fmt.Sprintf("%s/sso/%s/callback", strings.TrimRight(appURL, "/"), p.ID),
		Version:    p.Version,
		Timeout:    timeout,
		Endpoints: Endpoints{
			Login:      p.LoginPath,
			Logout:     p.LogoutPath,
			Validate:   p.ValidatePath,
			ValidateV3: p.ValidateV3Path,
		},
		Mapping: AttributeMapping{
			EmployeeID: p.EmployeeIDAttr,
			Username:   p.UsernameAttr,
			FullName:   p.FullNameAttr,
			Email:      p.EmailAttr,
		},
		EmailDomain: p.EmailDomain,
	}
}

// ServiceURLFor 生成携带 returnUrl 的 service 地址
// 登录和校验必须使用同一函数，保证参数顺序与编码完全一致
func (c *Config) ServiceURLFor(returnURL string) string {
	if returnURL == "" {
		return c.ServiceURL
	}
	return c.ServiceURL + "?returnUrl=" + url.QueryEscape(returnURL)
}

// LoginURL 生成 CAS 登录页地址
func (c *Config) LoginURL(returnURL string) string {
	params := url.Values{}
	params.Set("service", c.ServiceURLFor(returnURL))
	return c.BaseURL + c.Endpoints.Login + "?" + params.Encode()
}

// LogoutURL 生成 CAS 登出页地址
func (c *Config) LogoutURL(returnURL string) string {
	if returnURL == "" {
		return c.BaseURL + c.Endpoints.Logout
	}
	params := url.Values{}
	params.Set("service", returnURL)
	return c.BaseURL + c.Endpoints.Logout + "?" + params.Encode()
}

// validateURL 按协议版本选择校验端点
func (c *Config) validateURL(ticket, service string) string {
	endpoint := c.Endpoints.Validate
	if c.Version == model.CASVersion3 && c.Endpoints.ValidateV3 != "" {
		endpoint = c.Endpoints.ValidateV3
	}
	params := url.Values{}
	params.Set("service", service)
	params.Set("ticket", ticket)
	return c.BaseURL + endpoint + "?" + params.Encode()
}
