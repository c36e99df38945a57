package storage

import (
	"fmt"
	"log"

	"github.com/anoixa/grammable/config"
)

// StorageConfig 单个存储提供者的配置
type StorageConfig struct {
	Type string

	LocalPath string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	WebDAVURL      string
	WebDAVUsername string
	WebDAVPassword string
	WebDAVRootPath string
}

// ConfigFromApp 从应用配置提取存储配置
func ConfigFromApp(cfg *config.Config) StorageConfig {
	return StorageConfig{
		Type:           cfg.StorageType,
		LocalPath:      cfg.StorageLocalPath,
		MinioEndpoint:  cfg.StorageMinioEndpoint,
		MinioAccessKey: cfg.StorageMinioAccess,
		MinioSecretKey: cfg.StorageMinioSecret,
		MinioBucket:    cfg.StorageMinioBucket,
		MinioUseSSL:    cfg.StorageMinioUseSSL,
		WebDAVURL:      cfg.StorageWebDAVURL,
		WebDAVUsername: cfg.StorageWebDAVUser,
		WebDAVPassword: cfg.StorageWebDAVPass,
		WebDAVRootPath: cfg.StorageWebDAVRoot,
	}
}

// NewProvider 根据应用配置创建存储提供者
func NewProvider(cfg *config.Config) (Provider, error) {
	provider, err := createProvider(ConfigFromApp(cfg))
	if err != nil {
		return nil, err
	}
	log.Printf("[Storage] Initialized '%s' storage provider", provider.Name())
	return provider, nil
}

func createProvider(cfg StorageConfig) (Provider, error) {
	switch cfg.Type {
	case "local", "":
		path := cfg.LocalPath
		if path == "" {
			path = "./data/uploads"
		}
		return NewLocalStorage(path)
	case "minio":
		return NewMinioStorage(MinioConfig{
			Endpoint:        cfg.MinioEndpoint,
			AccessKeyID:     cfg.MinioAccessKey,
			SecretAccessKey: cfg.MinioSecretKey,
			BucketName:      cfg.MinioBucket,
			UseSSL:          cfg.MinioUseSSL,
		})
	case "webdav":
		return NewWebDAVStorage(WebDAVConfig{
			URL:      cfg.WebDAVURL,
			Username: cfg.WebDAVUsername,
			Password: cfg.WebDAVPassword,
			RootPath: cfg.WebDAVRootPath,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
