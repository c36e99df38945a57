package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerDomain       string        `mapstructure:"server_domain"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 数据库配置
	DBType            string `mapstructure:"db_type"`
	DBHost            string `mapstructure:"db_host"`
	DBPort            int    `mapstructure:"db_port"`
	DBUsername        string `mapstructure:"db_username"`
	DBPassword        string `mapstructure:"db_password"`
	DBName            string `mapstructure:"db_name"`
	DBFilePath        string `mapstructure:"db_file_path"`
	DBMaxOpenConns    int    `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int    `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int    `mapstructure:"db_conn_max_lifetime"`

	// JWT 配置
	JWTSecret           string `mapstructure:"jwt_secret"`
	JWTExpiresIn        string `mapstructure:"jwt_expires_in"`
	JWTRefreshExpiresIn string `mapstructure:"jwt_refresh_expires_in"`

	// 存储配置
	StorageType          string `mapstructure:"storage_type"`
	StorageLocalPath     string `mapstructure:"storage_local_path"`
	StorageMinioEndpoint string `mapstructure:"storage_minio_endpoint"`
	StorageMinioAccess   string `mapstructure:"storage_minio_access_key"`
	StorageMinioSecret   string `mapstructure:"storage_minio_secret_key"`
	StorageMinioBucket   string `mapstructure:"storage_minio_bucket"`
	StorageMinioUseSSL   bool   `mapstructure:"storage_minio_use_ssl"`
	StorageWebDAVURL     string `mapstructure:"storage_webdav_url"`
	StorageWebDAVUser    string `mapstructure:"storage_webdav_username"`
	StorageWebDAVPass    string `mapstructure:"storage_webdav_password"`
	StorageWebDAVRoot    string `mapstructure:"storage_webdav_root_path"`

	// 缓存提供者配置
	CacheType          string `mapstructure:"cache_type"`
	CacheRedisAddr     string `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string `mapstructure:"cache_redis_password"`
	CacheRedisDB       int    `mapstructure:"cache_redis_db"`
	CacheGramTTL       int    `mapstructure:"cache_gram_ttl"`

	// 限流配置
	RateLimitApiRPS     float64       `mapstructure:"rate_limit_api_rps"`
	RateLimitApiBurst   int           `mapstructure:"rate_limit_api_burst"`
	RateLimitImageRPS   float64       `mapstructure:"rate_limit_image_rps"`
	RateLimitImageBurst int           `mapstructure:"rate_limit_image_burst"`
	RateLimitAuthRPS    float64       `mapstructure:"rate_limit_auth_rps"`
	RateLimitAuthBurst  int           `mapstructure:"rate_limit_auth_burst"`
	RateLimitExpireTime time.Duration `mapstructure:"rate_limit_expire_time"`

	// 上传配置
	UploadMaxSizeMB int `mapstructure:"upload_max_size_mb"`

	// 事件配置
	KafkaBrokers string `mapstructure:"kafka_brokers"`
	KafkaTopic   string `mapstructure:"kafka_topic"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	configFile := viper.GetString("config_file_path")
	if configFile == "" {
		configFile = ".env"
	}
	viper.SetConfigFile(configFile)
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s not found, using defaults and environment variables\n", configFile)
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s\n", configFile)
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_domain", "")
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")

	// 数据库配置默认值
	viper.SetDefault("db_type", "sqlite")
	viper.SetDefault("db_host", "localhost")
	viper.SetDefault("db_port", 5432)
	viper.SetDefault("db_username", "postgres")
	viper.SetDefault("db_password", "")
	viper.SetDefault("db_name", "grammable")
	viper.SetDefault("db_file_path", "")
	viper.SetDefault("db_max_open_conns", 100)
	viper.SetDefault("db_max_idle_conns", 25)
	viper.SetDefault("db_conn_max_lifetime", 3600)

	// JWT 默认值
	viper.SetDefault("jwt_secret", "")
	viper.SetDefault("jwt_expires_in", "30m")
	viper.SetDefault("jwt_refresh_expires_in", "168h")

	// 存储默认值
	viper.SetDefault("storage_type", "local")
	viper.SetDefault("storage_local_path", "./data/uploads")
	viper.SetDefault("storage_minio_bucket", "grams")
	viper.SetDefault("storage_minio_use_ssl", false)

	// 缓存提供者配置默认值
	viper.SetDefault("cache_type", "memory")
	viper.SetDefault("cache_redis_addr", "localhost:6379")
	viper.SetDefault("cache_redis_password", "")
	viper.SetDefault("cache_redis_db", 0)
	viper.SetDefault("cache_gram_ttl", 600)

	// 限流配置默认值
	viper.SetDefault("rate_limit_api_rps", 30.0)
	viper.SetDefault("rate_limit_api_burst", 60)
	viper.SetDefault("rate_limit_image_rps", 100.0)
	viper.SetDefault("rate_limit_image_burst", 200)
	viper.SetDefault("rate_limit_auth_rps", 0.5)
	viper.SetDefault("rate_limit_auth_burst", 5)
	viper.SetDefault("rate_limit_expire_time", "10m")

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 20)

	viper.SetDefault("kafka_brokers", "")
	viper.SetDefault("kafka_topic", "gram-events")
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// BaseURL 返回基础 URL
func (c *Config) BaseURL() string {
	if c.ServerDomain != "" {
		return c.ServerDomain
	}
	host := c.ServerHost
	if host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, c.ServerPort)
}

// CacheOptions 以 map 形式返回缓存配置，交给 cache 包解码
func (c *Config) CacheOptions() map[string]interface{} {
	return map[string]interface{}{
		"provider_type": c.CacheType,
		"address":       c.CacheRedisAddr,
		"password":      c.CacheRedisPassword,
		"db":            c.CacheRedisDB,
		"key_prefix":    "grammable:",
	}
}

// KafkaBrokerList 解析逗号分隔的 broker 列表
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// GramCacheTTL 返回 gram 详情缓存时间
func (c *Config) GramCacheTTL() time.Duration {
	if c.CacheGramTTL <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.CacheGramTTL) * time.Second
}
