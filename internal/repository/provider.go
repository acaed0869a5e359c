package repository

import (
	"context"
	"errors"

	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"gorm.io/gorm"
)

var (
	ErrProviderNotFound = errors.New("SSO 提供商不存在")
	ErrProviderExists   = errors.New("SSO 提供商已存在")
)

type SsoProviderRepository interface {
	Create(ctx context.Context, provider *model.SsoProvider) error
	GetByID(ctx context.Context, id string) (*model.SsoProvider, error)
	GetByName(ctx context.Context, name string) (*model.SsoProvider, error)
	Update(ctx context.Context, provider *model.SsoProvider) error
	ListEnabled(ctx context.Context) ([]*model.SsoProvider, error)
}

type ssoProviderRepository struct {
	db *gorm.DB
}

func NewSsoProviderRepository(db *gorm.DB) SsoProviderRepository {
	return &ssoProviderRepository{db: db}
}

func (r *ssoProviderRepository) Create(ctx context.Context, provider *model.SsoProvider) error {
	var count int64
	r.db.WithContext(ctx).Model(&model.SsoProvider{}).Where("name = ?", provider.Name).Count(&count)
	if count > 0 {
		return ErrProviderExists
	}
	return r.db.WithContext(ctx).Create(provider).Error
}

func (r *ssoProviderRepository) GetByID(ctx context.Context, id string) (*model.SsoProvider, error) {
	var provider model.SsoProvider
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

func (r *ssoProviderRepository) GetByName(ctx context.Context, name string) (*model.SsoProvider, error) {
	var provider model.SsoProvider
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&provider).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &provider, nil
}

func (r *ssoProviderRepository) Update(ctx context.Context, provider *model.SsoProvider) error {
	result := r.db.WithContext(ctx).Save(provider)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *ssoProviderRepository) ListEnabled(ctx context.Context) ([]*model.SsoProvider, error) {
	var providers []*model.SsoProvider
	err := r.db.WithContext(ctx).
		Where("protocol = ? AND enabled = ?", model.ProtocolCAS, true).
		Order("display_order").
		Find(&providers).Error
	return providers, err
}
