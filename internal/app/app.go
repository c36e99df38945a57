package app

import (
	"fmt"
	"log"
	"os"

	"github.com/anoixa/grammable/cache"
	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/database"
	"github.com/anoixa/grammable/internal/auth"
	"github.com/anoixa/grammable/internal/events"
	"github.com/anoixa/grammable/internal/grams"
	"github.com/anoixa/grammable/internal/repositories"
	"github.com/anoixa/grammable/storage"
	"github.com/anoixa/grammable/utils"
)

const uploadTempDir = "./data/temp"

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config          *config.Config
	databaseFactory *database.Factory
	cacheFactory    *cache.Factory
	storageProvider storage.Provider
	publisher       events.Publisher
	repositories    *repositories.Repositories

	jwtService   *auth.JWTService
	loginService *auth.LoginService
	gramsService *grams.Service
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 初始化数据库和全部服务
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	return c.InitServices()
}

// InitDatabase 初始化数据库工厂和仓库
func (c *Container) InitDatabase() error {
	utils.LogIfDev("Initializing DI container...")

	factory, err := database.NewFactory(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database factory: %w", err)
	}
	c.databaseFactory = factory
	c.repositories = repositories.NewRepositories(factory.GetProvider())

	utils.LogIfDev("Database factory and repositories initialized")
	return nil
}

// InitServices 初始化存储、缓存、事件和业务服务
func (c *Container) InitServices() error {
	if c.databaseFactory == nil {
		return fmt.Errorf("database must be initialized before services")
	}

	if err := os.MkdirAll(uploadTempDir, 0755); err != nil {
		return fmt.Errorf("failed to create upload temp directory: %w", err)
	}

	provider, err := storage.NewProvider(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storageProvider = provider

	cacheFactory, err := cache.NewFactory(c.config.CacheOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.cacheFactory = cacheFactory

	c.publisher = events.NewPublisher(c.config.KafkaBrokerList(), c.config.KafkaTopic)

	tokenConfig, err := auth.TokenConfigFromApp(c.config)
	if err != nil {
		return err
	}
	if c.jwtService, err = auth.NewJWTService(tokenConfig); err != nil {
		return fmt.Errorf("failed to initialize JWT: %w", err)
	}

	c.loginService = auth.NewLoginService(c.repositories.Accounts, c.repositories.Devices, c.jwtService)

	cacheHelper := cache.NewHelper(cacheFactory.GetProvider(), cache.HelperConfig{
		GramCacheTTL: c.config.GramCacheTTL(),
	})
	c.gramsService = grams.NewService(c.repositories.Grams, provider, cacheHelper, c.publisher, grams.Options{
		MaxUploadBytes: int64(c.config.UploadMaxSizeMB) << 20,
		TempDir:        uploadTempDir,
	})

	log.Printf("[Container] storage=%s cache=%s", provider.Name(), cacheFactory.GetProvider().Name())
	return nil
}

// GetDatabaseFactory 获取数据库工厂
func (c *Container) GetDatabaseFactory() *database.Factory {
	return c.databaseFactory
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	if c.databaseFactory == nil {
		return nil
	}
	return c.databaseFactory.GetProvider()
}

// GetRepositories 获取所有仓库
func (c *Container) GetRepositories() *repositories.Repositories {
	return c.repositories
}

// GetCacheFactory 获取缓存工厂
func (c *Container) GetCacheFactory() *cache.Factory {
	return c.cacheFactory
}

// GetStorage 获取存储提供者
func (c *Container) GetStorage() storage.Provider {
	return c.storageProvider
}

// GetJWTService 获取 JWT 服务
func (c *Container) GetJWTService() *auth.JWTService {
	return c.jwtService
}

// GetLoginService 获取登录服务
func (c *Container) GetLoginService() *auth.LoginService {
	return c.loginService
}

// GetGramsService 获取 gram 服务
func (c *Container) GetGramsService() *grams.Service {
	return c.gramsService
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// Close 关闭所有服务
func (c *Container) Close() error {
	utils.LogIfDev("Closing DI container...")

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}

	if c.cacheFactory != nil {
		if err := c.cacheFactory.Close(); err != nil {
			log.Printf("Error closing cache factory: %v", err)
		}
	}

	if c.databaseFactory != nil {
		if err := c.databaseFactory.Close(); err != nil {
			log.Printf("Error closing database factory: %v", err)
		}
	}

	utils.LogIfDev("DI container closed")
	return nil
}
