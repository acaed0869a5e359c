package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pu-ac-cn/sso-gateway/internal/config"
	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// 测试用配置
func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			PublicURL:          "http://localhost:8080",
			ProcessingPath:     "/sso/processing",
			LoginPath:          "/login",
			DefaultReturnURL:   "/chat",
			DefaultEmailDomain: "example.com",
		},
		SSO: config.SSOConfig{
			BootstrapTTL:    10 * time.Minute,
			DedupGrace:      time.Second,
			ValidateTimeout: 5 * time.Second,
		},
	}
}

func testSecret() *model.BootstrapSecret {
	now := time.Now()
	return &model.BootstrapSecret{
		UserID:         "user-123",
		EmployeeNumber: "2021011221",
		AuthSource:     "bistu_sso",
		LoginTime:      now.UnixMilli(),
		ExpiresAt:      now.Add(10 * time.Minute).UnixMilli(),
	}
}

// 构造携带敏感握手 Cookie 的请求值（gin 读取时会做 URL 解码）
func encodeSecretCookie(t *testing.T, secret *model.BootstrapSecret) string {
	data, err := json.Marshal(secret)
	require.NoError(t, err)
	return url.QueryEscape(string(data))
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestIssueHandoffCookies(t *testing.T) {
	cfg := testConfig()
	router := gin.New()
	router.GET("/issue", func(c *gin.Context) {
		err := issueHandoffCookies(c, cfg, testSecret(), &model.BootstrapPublic{
			Username: "zhangsan",
			FullName: "张三",
			Provider: "BISTU",
		})
		require.NoError(t, err)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/issue", nil))

	cookies := w.Result().Cookies()
	secret := findCookie(cookies, "sso_secret")
	public := findCookie(cookies, "sso_public")
	require.NotNil(t, secret)
	require.NotNil(t, public)

	// 敏感段 httpOnly，展示段脚本可读，两段同寿命
	assert.True(t, secret.HttpOnly)
	assert.False(t, public.HttpOnly)
	assert.Equal(t, 600, secret.MaxAge)
	assert.Equal(t, 600, public.MaxAge)
	assert.Equal(t, "/", secret.Path)
	assert.Equal(t, http.SameSiteLaxMode, secret.SameSite)

	// 公开地址非 HTTPS 时不设 Secure
	assert.False(t, secret.Secure)

	raw, err := url.QueryUnescape(public.Value)
	require.NoError(t, err)
	var pub model.BootstrapPublic
	require.NoError(t, json.Unmarshal([]byte(raw), &pub))
	assert.Equal(t, "张三", pub.FullName)
	assert.Equal(t, "BISTU", pub.Provider)
}

func TestIssueHandoffCookies_SecureOnHTTPS(t *testing.T) {
	cfg := testConfig()
	cfg.App.PublicURL = "https://app.example.com"

	router := gin.New()
	router.GET("/issue", func(c *gin.Context) {
		require.NoError(t, issueHandoffCookies(c, cfg, testSecret(), &model.BootstrapPublic{}))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/issue", nil))

	secret := findCookie(w.Result().Cookies(), "sso_secret")
	require.NotNil(t, secret)
	assert.True(t, secret.Secure)
}

func TestConsumeHandoffSecret(t *testing.T) {
	router := gin.New()
	var gotSecret *model.BootstrapSecret
	var gotState handoffState
	router.GET("/consume", func(c *gin.Context) {
		gotSecret, gotState = consumeHandoffSecret(c)
		c.Status(http.StatusOK)
	})

	// 有效数据
	req := httptest.NewRequest(http.MethodGet, "/consume", nil)
	req.AddCookie(&http.Cookie{Name: "sso_secret", Value: encodeSecretCookie(t, testSecret())})
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, handoffValid, gotState)
	require.NotNil(t, gotSecret)
	assert.Equal(t, "user-123", gotSecret.UserID)

	// Cookie 缺失
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/consume", nil))
	assert.Equal(t, handoffMissing, gotState)

	// 数据无法解析
	req = httptest.NewRequest(http.MethodGet, "/consume", nil)
	req.AddCookie(&http.Cookie{Name: "sso_secret", Value: "not-json"})
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, handoffInvalid, gotState)

	// 关键字段缺失也按无效处理
	req = httptest.NewRequest(http.MethodGet, "/consume", nil)
	req.AddCookie(&http.Cookie{Name: "sso_secret", Value: url.QueryEscape(`{"employeeNumber":"2021011221"}`)})
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, handoffInvalid, gotState)

	// 已过期
	expired := testSecret()
	expired.ExpiresAt = time.Now().Add(-time.Minute).UnixMilli()
	req = httptest.NewRequest(http.MethodGet, "/consume", nil)
	req.AddCookie(&http.Cookie{Name: "sso_secret", Value: encodeSecretCookie(t, expired)})
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, handoffExpired, gotState)
	require.NotNil(t, gotSecret)
}

func TestClearHandoffCookies(t *testing.T) {
	cfg := testConfig()
	router := gin.New()
	router.GET("/clear", func(c *gin.Context) {
		clearHandoffCookies(c, cfg)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clear", nil))

	cookies := w.Result().Cookies()
	secret := findCookie(cookies, "sso_secret")
	public := findCookie(cookies, "sso_public")
	require.NotNil(t, secret)
	require.NotNil(t, public)
	assert.Less(t, secret.MaxAge, 0)
	assert.Less(t, public.MaxAge, 0)
	assert.Empty(t, secret.Value)
}
