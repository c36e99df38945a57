package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/anoixa/grammable/database/models"
	"github.com/anoixa/grammable/database/repo/accounts"
	cryptopackage "github.com/anoixa/grammable/utils/crypto"
	"github.com/google/uuid"
)

// ErrInvalidCredentials 用户名或密码错误
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrInvalidRefreshToken 刷新令牌或设备无效
var ErrInvalidRefreshToken = errors.New("invalid refresh token or device ID")

// LoginResult 登录结果
type LoginResult struct {
	User               *models.User
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
	DeviceID           string
}

// LoginService 登录服务
type LoginService struct {
	accountsRepo *accounts.Repository
	devicesRepo  *accounts.DeviceRepository
	jwtService   *JWTService
}

// NewLoginService 创建新的登录服务
func NewLoginService(
	accountsRepo *accounts.Repository,
	devicesRepo *accounts.DeviceRepository,
	jwtService *JWTService,
) *LoginService {
	return &LoginService{
		accountsRepo: accountsRepo,
		devicesRepo:  devicesRepo,
		jwtService:   jwtService,
	}
}

// ValidateCredentials 验证用户凭据
func (s *LoginService) ValidateCredentials(username, password string) (*models.User, error) {
	user, err := s.accountsRepo.GetUserByUsername(username)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	ok, err := cryptopackage.ComparePasswordAndHash(password, user.Password)
	if err != nil {
		return nil, fmt.Errorf("password comparison failed: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login 执行登录操作，每次登录生成一个新设备
func (s *LoginService) Login(username, password string) (*LoginResult, error) {
	user, err := s.ValidateCredentials(username, password)
	if err != nil {
		return nil, err
	}

	tokenPair, err := s.jwtService.GenerateTokens(user.Username, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	deviceID := uuid.New().String()
	err = s.devicesRepo.CreateLoginDevice(user.ID, deviceID, tokenPair.RefreshToken, tokenPair.RefreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to store device token: %w", err)
	}

	return &LoginResult{
		User:               user,
		AccessToken:        tokenPair.AccessToken,
		AccessTokenExpiry:  tokenPair.AccessTokenExpiry,
		RefreshToken:       tokenPair.RefreshToken,
		RefreshTokenExpiry: tokenPair.RefreshTokenExpiry,
		DeviceID:           deviceID,
	}, nil
}

// RefreshToken 轮换刷新令牌并签发新的访问令牌
func (s *LoginService) RefreshToken(refreshToken, deviceID string) (*LoginResult, error) {
	device, err := s.devicesRepo.GetDeviceByRefreshTokenAndDeviceID(refreshToken, deviceID)
	if err != nil {
		if errors.Is(err, accounts.ErrDeviceNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	user, err := s.accountsRepo.GetUserByID(device.UserID)
	if err != nil {
		if errors.Is(err, accounts.ErrUserNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	tokenPair, err := s.jwtService.GenerateTokens(user.Username, user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	err = s.devicesRepo.RotateRefreshToken(user.ID, device.DeviceID, tokenPair.RefreshToken, tokenPair.RefreshTokenExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to update device token: %w", err)
	}

	return &LoginResult{
		User:               user,
		AccessToken:        tokenPair.AccessToken,
		AccessTokenExpiry:  tokenPair.AccessTokenExpiry,
		RefreshToken:       tokenPair.RefreshToken,
		RefreshTokenExpiry: tokenPair.RefreshTokenExpiry,
		DeviceID:           deviceID,
	}, nil
}

// Logout 执行登出操作
func (s *LoginService) Logout(deviceID string) error {
	if deviceID == "" {
		return nil
	}
	return s.devicesRepo.DeleteDeviceByDeviceID(deviceID)
}
