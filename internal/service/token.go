// Package service 令牌服务
package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 令牌相关错误
var (
	ErrInvalidToken     = errors.New("无效的令牌")
	ErrTokenExpired     = errors.New("令牌已过期")
	ErrInvalidSignature = errors.New("签名验证失败")
	ErrInvalidIssuer    = errors.New("无效的签发者")
)

// TokenClaims JWT 声明
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID     string `json:"uid,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	AuthSource string `json:"auth_source,omitempty"`
	Type       string `json:"type,omitempty"` // access, refresh
}

// TokenService 令牌服务接口
type TokenService interface {
	// GenerateAccessToken 生成访问令牌
	GenerateAccessToken(ctx context.Context, claims *TokenClaims) (string, error)
	// GenerateRefreshToken 生成刷新令牌
	GenerateRefreshToken(ctx context.Context, claims *TokenClaims) (string, error)
	// ValidateToken 验证令牌
	ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error)
}

// tokenService 令牌服务实现
type tokenService struct {
	privateKey    *rsa.PrivateKey
	publicKey     *rsa.PublicKey
	keyID         string
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// TokenServiceConfig 令牌服务配置
type TokenServiceConfig struct {
	PrivateKey    *rsa.PrivateKey
	PublicKey     *rsa.PublicKey
	KeyID         string
	Issuer        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// NewTokenService 创建令牌服务
func NewTokenService(cfg *TokenServiceConfig) TokenService {
	if cfg.AccessExpiry == 0 {
		cfg.AccessExpiry = DefaultAccessExpiry
	}
	if cfg.RefreshExpiry == 0 {
		cfg.RefreshExpiry = DefaultRefreshExpiry
	}
	return &tokenService{
		privateKey:    cfg.PrivateKey,
		publicKey:     cfg.PublicKey,
		keyID:         cfg.KeyID,
		issuer:        cfg.Issuer,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
	}
}

// GenerateAccessToken 生成访问令牌
func (s *tokenService) GenerateAccessToken(ctx context.Context, claims *TokenClaims) (string, error) {
	return s.generate(claims, "access", s.accessExpiry)
}

// GenerateRefreshToken 生成刷新令牌
func (s *tokenService) GenerateRefreshToken(ctx context.Context, claims *TokenClaims) (string, error) {
	return s.generate(claims, "refresh", s.refreshExpiry)
}

func (s *tokenService) generate(claims *TokenClaims, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims.Type = tokenType
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		ID:        generateTokenID(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID

	return token.SignedString(s.privateKey)
}

// ValidateToken 验证令牌
func (s *tokenService) ValidateToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidSignature
		}
		return s.publicKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// 验证签发者
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidIssuer
	}

	return claims, nil
}

// generateTokenID 生成令牌 ID
func generateTokenID() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return base64.URLEncoding.EncodeToString(bytes)[:16]
}

// 令牌有效期常量
const (
	DefaultAccessExpiry  = 15 * time.Minute
	DefaultRefreshExpiry = 7 * 24 * time.Hour
)
