package cas

import "strings"

// Identity 属性映射后的外部身份
type Identity struct {
	EmployeeNumber string
	Username       string
	FullName       string
	Email          string
}

// AttributeMapper 属性映射器
// 命名空间处理与字段取位因提供商而异，做成可插拔接口便于接入新的 CAS 系提供商
type AttributeMapper interface {
	Map(user string, attrs map[string]string) Identity
}

// prefixMapper 默认映射器
// 配置的字段名允许带 cas: 前缀；展开后的属性键已无前缀，查找时先去前缀，
// 查不到时学工号与用户名回退到 cas:user 节点值
type prefixMapper struct {
	mapping AttributeMapping
}

// NewPrefixMapper 创建默认属性映射器
func NewPrefixMapper(mapping AttributeMapping) AttributeMapper {
	return &prefixMapper{mapping: mapping}
}

func (m *prefixMapper) Map(user string, attrs map[string]string) Identity {
	employeeNumber := lookup(attrs, m.mapping.EmployeeID)
	if employeeNumber == "" {
		employeeNumber = user
	}
	username := lookup(attrs, m.mapping.Username)
	if username == "" {
		username = user
	}
	return Identity{
		EmployeeNumber: employeeNumber,
		Username:       username,
		FullName:       lookup(attrs, m.mapping.FullName),
		Email:          lookup(attrs, m.mapping.Email),
	}
}

// lookup 按配置字段名取属性值，兼容带前缀与不带前缀两种写法
func lookup(attrs map[string]string, field string) string {
	if field == "" {
		return ""
	}
	plain := strings.TrimPrefix(field, "cas:")
	if v, ok := attrs[plain]; ok {
		return v
	}
	if v, ok := attrs[field]; ok {
		return v
	}
	return ""
}
