package model

import "strings"

// SsoProvider CAS 提供商配置
// ServiceURL 不入库，由应用公开地址加提供商 ID 动态拼接，
// 保证校验时的 service 参数与登录时注册的地址完全一致
type SsoProvider struct {
	BaseModel
	Name            string `gorm:"type:varchar(100);uniqueIndex" json:"name"`
	Protocol        string `gorm:"type:varchar(20);default:CAS" json:"protocol"`
	Enabled         bool   `gorm:"default:true" json:"enabled"`
	DisplayOrder    int    `gorm:"default:0" json:"display_order"`
	BaseURL         string `gorm:"type:varchar(500)" json:"base_url"`
	Version         string `gorm:"type:varchar(10);default:2.0" json:"version"` // CAS 协议版本：2.0 或 3.0
	LoginPath       string `gorm:"type:varchar(200);default:/login" json:"login_path"`
	LogoutPath      string `gorm:"type:varchar(200);default:/logout" json:"logout_path"`
	ValidatePath    string `gorm:"type:varchar(200);default:/serviceValidate" json:"validate_path"`
	ValidateV3Path  string `gorm:"type:varchar(200);default:/p3/serviceValidate" json:"validate_v3_path"`
	EmployeeIDAttr  string `gorm:"type:varchar(100);default:cas:user" json:"employee_id_attr"`
	UsernameAttr    string `gorm:"type:varchar(100);default:cas:username" json:"username_attr"`
	FullNameAttr    string `gorm:"type:varchar(100);default:cas:name" json:"full_name_attr"`
	EmailAttr       string `gorm:"type:varchar(100);default:cas:mail" json:"email_attr"`
	EmailDomain     string `gorm:"type:varchar(255)" json:"email_domain"`
	EmployeePattern string `gorm:"type:varchar(200)" json:"employee_pattern"` // 学工号格式正则，默认 ^\d{10}$
}

// TableName 指定表名
func (SsoProvider) TableName() string {
	return "sso_providers"
}

// 协议常量
const (
	ProtocolCAS = "CAS"

	CASVersion2 = "2.0"
	CASVersion3 = "3.0"
)

// DefaultEmployeePattern 默认学工号格式
const DefaultEmployeePattern = `^\d{10}$`

// AuthSource 生成该提供商的认证来源标识，如 "bistu_sso"
func (p *SsoProvider) AuthSource() string {
	return strings.ReplaceAll(strings.ToLower(p.Name), " ", "_") + "_sso"
}
