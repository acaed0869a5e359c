package cas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/beevik/etree"
)

// ValidationResult 票据校验结果
// 协议层失败（HTTP 非 2xx、XML 畸形、认证失败）一律归一为 Success=false，
// 只有传输层错误才以 error 形式返回
type ValidationResult struct {
	Success        bool              `json:"success"`
	EmployeeNumber string            `json:"employee_number"`
	Username       string            `json:"username"`
	FullName       string            `json:"full_name"`
	Attributes     map[string]string `json:"attributes"`
	RawResponse    string            `json:"-"`
	ErrorCode      string            `json:"error_code,omitempty"`
	ErrorMessage   string            `json:"error_message,omitempty"`
}

// Client CAS 票据校验客户端
type Client struct {
	config Config
	http   *http.Client
	mapper AttributeMapper
}

// NewClient 创建 CAS 客户端
func NewClient(cfg Config) *Client {
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		mapper: NewPrefixMapper(cfg.Mapping),
	}
}

// NewClientWithMapper 创建使用自定义属性映射器的 CAS 客户端
func NewClientWithMapper(cfg Config, mapper AttributeMapper) *Client {
	c := NewClient(cfg)
	c.mapper = mapper
	return c
}

// Config 获取客户端配置
func (c *Client) Config() Config {
	return c.config
}

// ValidateTicket 校验 CAS 票据
// service 必须与票据签发时注册的地址完全一致；CAS 服务器在一次成功校验后
// 即作废票据，调用方不得自动重试
func (c *Client) ValidateTicket(ctx context.Context, ticket, service string) (*ValidationResult, error) {
	if ticket == "" || service == "" {
		return &ValidationResult{
			Success:      false,
			ErrorMessage: "票据或 service 参数缺失",
		}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.validateURL(ticket, service), nil)
	if err != nil {
		return nil, fmt.Errorf("构造校验请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/xml, text/xml")
	req.Header.Set("User-Agent", "sso-gateway-cas-client/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 CAS 校验端点失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 CAS 校验响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ValidationResult{
			Success:      false,
			RawResponse:  string(body),
			ErrorMessage: fmt.Sprintf("CAS 校验端点返回 HTTP %d", resp.StatusCode),
		}, nil
	}

	return c.parseResponse(string(body)), nil
}

// parseResponse 解析 CAS 校验响应 XML
func (c *Client) parseResponse(xmlText string) *ValidationResult {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		return &ValidationResult{
			Success:      false,
			RawResponse:  xmlText,
			ErrorMessage: "CAS 响应 XML 解析失败: " + err.Error(),
		}
	}

	root := doc.Root()
	if root == nil || root.Tag != "serviceResponse" {
		return &ValidationResult{
			Success:      false,
			RawResponse:  xmlText,
			ErrorMessage: "无效的 CAS 响应：缺少 serviceResponse 节点",
		}
	}

	if success := root.SelectElement("authenticationSuccess"); success != nil {
		user := ""
		if el := success.SelectElement("user"); el != nil {
			user = strings.TrimSpace(el.Text())
		}
		attrs := flattenAttributes(success.SelectElement("attributes"))

		identity := c.mapper.Map(user, attrs)
		return &ValidationResult{
			Success:        true,
			EmployeeNumber: identity.EmployeeNumber,
			Username:       identity.Username,
			FullName:       identity.FullName,
			Attributes:     attrs,
			RawResponse:    xmlText,
		}
	}

	if failure := root.SelectElement("authenticationFailure"); failure != nil {
		code := failure.SelectAttrValue("code", "UNKNOWN_ERROR")
		message := strings.TrimSpace(failure.Text())
		if message == "" {
			message = "认证失败"
		}
		return &ValidationResult{
			Success:      false,
			RawResponse:  xmlText,
			ErrorCode:    code,
			ErrorMessage: message,
		}
	}

	return &ValidationResult{
		Success:      false,
		RawResponse:  xmlText,
		ErrorMessage: "无效的 CAS 响应：缺少成功或失败节点",
	}
}

// flattenAttributes 展开 cas:attributes 子节点为字符串映射
// 去掉命名空间前缀，所有值一律按字符串处理，不做类型推断
func flattenAttributes(attributes *etree.Element) map[string]string {
	attrs := make(map[string]string)
	if attributes == nil {
		return attrs
	}
	for _, child := range attributes.ChildElements() {
		attrs[child.Tag] = strings.TrimSpace(child.Text())
	}
	return attrs
}
