package accounts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/anoixa/grammable/database/models"
	"gorm.io/gorm"
)

// ErrDeviceNotFound 设备不存在或刷新令牌已过期
var ErrDeviceNotFound = errors.New("device not found or refresh token expired")

// DeviceRepository 设备仓库 - 封装所有设备相关的数据库操作
type DeviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository 创建新的设备仓库
func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *DeviceRepository) WithContext(ctx context.Context) *DeviceRepository {
	return &DeviceRepository{db: r.db.WithContext(ctx)}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateLoginDevice 创建设备登录记录，只保存刷新令牌的哈希
func (r *DeviceRepository) CreateLoginDevice(userID uint, deviceID string, refreshToken string, refreshTokenExpiry time.Time) error {
	device := &models.Device{
		UserID:       userID,
		RefreshToken: hashToken(refreshToken),
		Expiry:       refreshTokenExpiry,
		DeviceID:     deviceID,
	}
	return r.db.Create(device).Error
}

// GetDeviceByRefreshTokenAndDeviceID 通过刷新令牌和设备ID获取未过期的设备
func (r *DeviceRepository) GetDeviceByRefreshTokenAndDeviceID(refreshToken string, deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.db.Where("refresh_token = ? AND device_id = ? AND expiry > ?", hashToken(refreshToken), deviceID, time.Now()).
		First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

// RotateRefreshToken 轮换刷新令牌
func (r *DeviceRepository) RotateRefreshToken(userID uint, deviceID, newRefreshToken string, newRefreshTokenExpiry time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("device_id = ?", deviceID).Delete(&models.Device{}).Error; err != nil {
			return err
		}

		newDevice := &models.Device{
			UserID:       userID,
			RefreshToken: hashToken(newRefreshToken),
			Expiry:       newRefreshTokenExpiry,
			DeviceID:     deviceID,
		}
		return tx.Create(newDevice).Error
	})
}

// DeleteDeviceByDeviceID 删除设备
func (r *DeviceRepository) DeleteDeviceByDeviceID(deviceID string) error {
	return r.db.Unscoped().Where("device_id = ?", deviceID).Delete(&models.Device{}).Error
}

// DeleteExpiredDevices 清理过期设备
func (r *DeviceRepository) DeleteExpiredDevices() (int64, error) {
	result := r.db.Unscoped().Where("expiry <= ?", time.Now()).Delete(&models.Device{})
	return result.RowsAffected, result.Error
}
