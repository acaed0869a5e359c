package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pu-ac-cn/sso-gateway/internal/model"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound   = errors.New("用户不存在")
	ErrEmployeeExists = errors.New("学工号已存在")
	ErrEmailExists    = errors.New("邮箱已存在")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	ExistsByEmployeeNumber(ctx context.Context, employeeNumber string) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	exists, _ := r.ExistsByEmployeeNumber(ctx, user.EmployeeNumber)
	if exists {
		return ErrEmployeeExists
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil && isUniqueViolation(err) {
		// 并发创建时存储层兜底，唯一索引冲突按已存在处理
		return ErrEmployeeExists
	}
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmployeeNumber(ctx context.Context, employeeNumber string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("employee_number = ?", employeeNumber).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	result := r.db.WithContext(ctx).Save(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("last_login_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) ExistsByEmployeeNumber(ctx context.Context, employeeNumber string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("employee_number = ?", employeeNumber).Count(&count).Error
	return count > 0, err
}

// isUniqueViolation 判断是否为唯一约束冲突
// gorm 未统一各方言的错误类型，按驱动错误文本兜底判断
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
