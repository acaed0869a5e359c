package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User SSO 用户档案
// EmployeeNumber 为外部身份源返回的学工号，创建后不可变更；
// Email 在创建时由学工号与提供商邮箱域拼接生成并持久化。
type User struct {
	BaseModel
	EmployeeNumber string     `gorm:"type:varchar(32);uniqueIndex" json:"employee_number"`
	Username       string     `gorm:"type:varchar(100);index" json:"username"`
	FullName       string     `gorm:"type:varchar(100)" json:"full_name"`
	Email          string     `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	PasswordHash   string     `gorm:"type:varchar(255)" json:"-"`
	Status         string     `gorm:"type:varchar(20);default:active" json:"status"`
	AuthSource     string     `gorm:"type:varchar(100)" json:"auth_source"`
	SsoProviderID  string     `gorm:"type:char(36);index" json:"sso_provider_id,omitempty"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// SetPassword 设置密码（哈希存储）
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// VerifyPassword 验证密码
func (u *User) VerifyPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}

// ClearPassword 清除密码
// SSO 用户平时不持有可交互凭据，临时密码用完即清
func (u *User) ClearPassword() {
	u.PasswordHash = ""
}

// IsActive 检查用户是否启用
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}
