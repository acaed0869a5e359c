// Package main CAS 提供商注册工具
package main

import (
	"context"
	"flag"
	"log"

	"github.com/pu-ac-cn/sso-gateway/internal/config"
	"github.com/pu-ac-cn/sso-gateway/internal/database"
	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"github.com/pu-ac-cn/sso-gateway/internal/repository"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "", "配置文件路径")
	name := flag.String("name", "", "提供商名称（唯一）")
	baseURL := flag.String("base-url", "", "CAS 服务器基础地址，如 https://cas.example.edu.cn/cas")
	version := flag.String("version", model.CASVersion2, "CAS 协议版本：2.0 或 3.0")
	emailDomain := flag.String("email-domain", "", "合成邮箱使用的域名")
	pattern := flag.String("employee-pattern", "", "学工号格式正则，留空使用默认值")
	displayOrder := flag.Int("display-order", 0, "登录页展示顺序")
	flag.Parse()

	if *name == "" || *baseURL == "" {
		log.Fatal("必须提供 -name 和 -base-url 参数")
	}
	if *version != model.CASVersion2 && *version != model.CASVersion3 {
		log.Fatalf("不支持的 CAS 协议版本: %s", *version)
	}

	// 加载配置
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化数据库连接
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(&model.SsoProvider{}); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	provider := &model.SsoProvider{
		Name:            *name,
		Protocol:        model.ProtocolCAS,
		Enabled:         true,
		DisplayOrder:    *displayOrder,
		BaseURL:         *baseURL,
		Version:         *version,
		LoginPath:       "/login",
		LogoutPath:      "/logout",
		ValidatePath:    "/serviceValidate",
		ValidateV3Path:  "/p3/serviceValidate",
		EmployeeIDAttr:  "cas:user",
		UsernameAttr:    "cas:username",
		FullNameAttr:    "cas:name",
		EmailAttr:       "cas:mail",
		EmailDomain:     *emailDomain,
		EmployeePattern: *pattern,
	}

	repo := repository.NewSsoProviderRepository(database.GetDB())
	if err := repo.Create(context.Background(), provider); err != nil {
		log.Fatalf("创建提供商失败: %v", err)
	}

	log.Printf("提供商创建成功: %s (ID: %s)", provider.Name, provider.ID)
	log.Printf("登录入口: /sso/%s/login", provider.ID)
	log.Printf("回调地址: %s/sso/%s/callback", cfg.App.PublicURL, provider.ID)
}
