package database

import (
	"fmt"
	"log"

	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/database/models"
)

// Models 需要自动迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Device{},
		&models.Gram{},
		&models.Comment{},
	}
}

// Factory 数据库工厂
type Factory struct {
	provider Provider
}

// NewFactory 创建新的数据库工厂
func NewFactory(cfg *config.Config) (*Factory, error) {
	log.Println("Initializing database provider...")

	provider, err := NewGormProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database provider: %w", err)
	}

	log.Printf("Database provider '%s' initialized successfully", provider.Name())
	return NewFactoryWithProvider(provider), nil
}

// NewFactoryWithProvider 使用已有 provider 创建工厂
func NewFactoryWithProvider(provider Provider) *Factory {
	return &Factory{provider: provider}
}

// GetProvider 获取数据库提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// Close 关闭数据库连接
func (f *Factory) Close() error {
	if f.provider != nil {
		return f.provider.Close()
	}
	return nil
}

// AutoMigrate 自动迁移数据库结构
func (f *Factory) AutoMigrate() error {
	if f.provider == nil {
		return fmt.Errorf("database provider not initialized")
	}

	log.Println("Running database auto migration...")
	if err := f.provider.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	log.Println("Database auto migration completed.")
	return nil
}
