package repositories

import (
	"github.com/anoixa/grammable/database"
	"github.com/anoixa/grammable/database/repo/accounts"
	"github.com/anoixa/grammable/database/repo/grams"
)

// Repositories 集中管理所有数据库仓库
type Repositories struct {
	Accounts *accounts.Repository
	Devices  *accounts.DeviceRepository
	Grams    *grams.Repository
}

// NewRepositories 创建所有仓库实例
func NewRepositories(provider database.Provider) *Repositories {
	db := provider.DB()
	return &Repositories{
		Accounts: accounts.NewRepository(db),
		Devices:  accounts.NewDeviceRepository(db),
		Grams:    grams.NewRepository(db),
	}
}
