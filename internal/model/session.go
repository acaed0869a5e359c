// Package model 数据模型定义
package model

import (
	"time"
)

// Session 用户会话
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AuthSource string    `json:"auth_source,omitempty"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsExpired 检查会话是否过期
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
