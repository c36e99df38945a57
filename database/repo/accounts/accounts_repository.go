package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/grammable/database/models"
	"github.com/anoixa/grammable/utils"
	cryptopackage "github.com/anoixa/grammable/utils/crypto"
	"gorm.io/gorm"
)

// ErrUserNotFound 用户不存在错误
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists 用户名已被占用
var ErrUserExists = errors.New("username already taken")

// Repository 账户仓库
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建新的账户仓库
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB 返回底层数据库连接
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: r.db.WithContext(ctx)}
}

// CreateDefaultAdminUser 创建默认管理员用户
// 已存在时返回空密码，调用者决定是否打印
func (r *Repository) CreateDefaultAdminUser() (string, error) {
	exists, err := r.UserExists("admin")
	if err != nil {
		return "", fmt.Errorf("failed to check admin user existence: %w", err)
	}
	if exists {
		return "", nil
	}

	randomPassword, err := utils.GenerateRandomToken(12)
	if err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}

	if _, err := r.CreateUser("admin", randomPassword, models.RoleAdmin); err != nil {
		return "", fmt.Errorf("failed to create default admin user: %w", err)
	}
	return randomPassword, nil
}

// GetUserByUsername 通过用户名获取用户
func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID 通过ID获取用户
func (r *Repository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser 哈希密码并创建用户
func (r *Repository) CreateUser(username, password, role string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	if role == "" {
		role = models.RoleUser
	}

	exists, err := r.UserExists(username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	hashedPassword, err := cryptopackage.GenerateFromPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Password: hashedPassword,
		Role:     role,
	}
	if err := r.db.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// UserExists 检查用户是否存在
func (r *Repository) UserExists(username string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
