package model

import (
	"strconv"
	"time"
)

// BootstrapSecret 握手数据的敏感部分
// 仅存放在 httpOnly Cookie 中，脚本不可读；字段为内部 ID 与精确时间戳
type BootstrapSecret struct {
	UserID         string `json:"userId"`
	EmployeeNumber string `json:"employeeNumber"`
	AuthSource     string `json:"authSource"`
	LoginTime      int64  `json:"loginTime"` // 毫秒时间戳
	ExpiresAt      int64  `json:"expiresAt"` // 毫秒时间戳
}

// BootstrapPublic 握手数据的展示部分
// 存放在脚本可读 Cookie 中，供处理页在会话建立前渲染欢迎信息
type BootstrapPublic struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Provider string `json:"provider"`
}

// IsExpired 检查敏感数据是否过期
func (s *BootstrapSecret) IsExpired() bool {
	return time.Now().UnixMilli() > s.ExpiresAt
}

// DedupKey 生成去重键：同一用户的同一次登录事件共享一次引导
func (s *BootstrapSecret) DedupKey() string {
	return s.UserID + ":" + strconv.FormatInt(s.LoginTime, 10)
}
