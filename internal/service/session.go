// Package service 业务逻辑层
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("会话不存在")
	ErrSessionExpired  = errors.New("会话已过期")
)

// SessionService 会话服务接口
type SessionService interface {
	Create(ctx context.Context, session *model.Session) error
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	Delete(ctx context.Context, sessionID string) error
	DeleteByUserID(ctx context.Context, userID string) error
	ListByUserID(ctx context.Context, userID string) ([]*model.Session, error)
}

// SessionServiceConfig 会话服务配置
type SessionServiceConfig struct {
	SessionExpiry time.Duration // 会话有效期，默认 7 天
}

type sessionService struct {
	redis  *redis.Client
	config *SessionServiceConfig
}

// NewSessionService 创建会话服务
func NewSessionService(redisClient *redis.Client, config *SessionServiceConfig) SessionService {
	if config == nil {
		config = &SessionServiceConfig{}
	}
	if config.SessionExpiry == 0 {
		config.SessionExpiry = 7 * 24 * time.Hour // 默认 7 天
	}
	return &sessionService{
		redis:  redisClient,
		config: config,
	}
}

// Redis key 前缀
const (
	sessionKeyPrefix   = "session:"
	userSessionsPrefix = "user_sessions:"
)

// Create 创建会话
func (s *sessionService) Create(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = time.Now().Add(s.config.SessionExpiry)
	}
	session.CreatedAt = time.Now()

	// 序列化会话数据
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	// 计算过期时间
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("会话过期时间无效")
	}

	// 存储会话
	key := sessionKeyPrefix + session.ID
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("存储会话失败: %w", err)
	}

	// 添加到用户会话列表
	userKey := userSessionsPrefix + session.UserID
	if err := s.redis.SAdd(ctx, userKey, session.ID).Err(); err != nil {
		return fmt.Errorf("添加用户会话索引失败: %w", err)
	}
	// 设置用户会话列表过期时间（比最长会话稍长）
	s.redis.Expire(ctx, userKey, s.config.SessionExpiry+time.Hour)

	return nil
}

// Get 获取会话
func (s *sessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	key := sessionKeyPrefix + sessionID
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("获取会话失败: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("反序列化会话失败: %w", err)
	}

	if session.IsExpired() {
		// 直接删除 key，避免递归调用
		s.redis.Del(ctx, key)
		// 从用户会话列表中移除
		userKey := userSessionsPrefix + session.UserID
		s.redis.SRem(ctx, userKey, sessionID)
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Delete 删除会话
func (s *sessionService) Delete(ctx context.Context, sessionID string) error {
	// 先获取会话以获取用户 ID
	session, err := s.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
		return err
	}

	// 删除会话
	key := sessionKeyPrefix + sessionID
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("删除会话失败: %w", err)
	}

	// 从用户会话列表中移除
	if session != nil {
		userKey := userSessionsPrefix + session.UserID
		s.redis.SRem(ctx, userKey, sessionID)
	}

	return nil
}

// DeleteByUserID 删除用户的所有会话
func (s *sessionService) DeleteByUserID(ctx context.Context, userID string) error {
	userKey := userSessionsPrefix + userID
	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("获取用户会话列表失败: %w", err)
	}

	// 删除所有会话
	for _, sessionID := range sessionIDs {
		key := sessionKeyPrefix + sessionID
		s.redis.Del(ctx, key)
	}

	// 删除用户会话列表
	s.redis.Del(ctx, userKey)

	return nil
}

// ListByUserID 列出用户的所有会话
func (s *sessionService) ListByUserID(ctx context.Context, userID string) ([]*model.Session, error) {
	userKey := userSessionsPrefix + userID
	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取用户会话列表失败: %w", err)
	}

	var sessions []*model.Session
	for _, sessionID := range sessionIDs {
		session, err := s.Get(ctx, sessionID)
		if err != nil {
			// 跳过已过期或不存在的会话
			if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
				s.redis.SRem(ctx, userKey, sessionID)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, nil
}
