package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/anoixa/grammable/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormProvider GORM 数据库提供者实现
type GormProvider struct {
	db     *gorm.DB
	dbType string
}

// newGormLogger 生产环境静默，开发环境输出 SQL
func newGormLogger() logger.Interface {
	level := logger.Info
	colorful := true
	if config.IsProduction() {
		level = logger.Silent
		colorful = false
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  colorful,
		},
	)
}

// Dialector 根据数据库类型和 DSN 返回 gorm 方言
func Dialector(dbType, dsn string) (gorm.Dialector, error) {
	switch dbType {
	case "sqlite", "sqlite3", "":
		return sqlite.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "mysql", "mariadb":
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// BuildDSN 从配置构建 DSN
func BuildDSN(cfg *config.Config) string {
	switch cfg.DBType {
	case "postgres", "postgresql":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUsername, cfg.DBPassword, cfg.DBName)
	case "mysql", "mariadb":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.DBUsername, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	default:
		path := cfg.DBFilePath
		if path == "" {
			path = "./data/grammable.db"
		}
		// WAL 模式
		return fmt.Sprintf("%s?_journal_mode=WAL", path)
	}
}

// NewGormProvider 创建新的 GORM 数据库提供者
func NewGormProvider(cfg *config.Config) (*GormProvider, error) {
	dialector, err := Dialector(cfg.DBType, BuildDSN(cfg))
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBType, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB instance: %w", err)
	}

	maxOpenConns := cfg.DBMaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 100
	}
	maxIdleConns := cfg.DBMaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	connMaxLifetime := cfg.DBConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 3600
	}

	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)

	dbType := cfg.DBType
	if dbType == "" {
		dbType = "sqlite"
	}
	return NewGormProviderFromDB(db, dbType), nil
}

// NewGormProviderFromDB 包装已有连接，测试中使用
func NewGormProviderFromDB(db *gorm.DB, dbType string) *GormProvider {
	return &GormProvider{db: db, dbType: dbType}
}

// DB 返回底层 *gorm.DB 实例
func (p *GormProvider) DB() *gorm.DB {
	return p.db
}

// WithContext 返回带上下文的 *gorm.DB
func (p *GormProvider) WithContext(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

// TransactionWithContext 带上下文的事务执行
func (p *GormProvider) TransactionWithContext(ctx context.Context, fn TxFunc) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

// AutoMigrate 自动迁移数据库结构
func (p *GormProvider) AutoMigrate(models ...interface{}) error {
	return p.db.AutoMigrate(models...)
}

// Ping 检查数据库连接
func (p *GormProvider) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func (p *GormProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	log.Println("Closing database connection...")
	return sqlDB.Close()
}

// Name 返回数据库名称
func (p *GormProvider) Name() string {
	return p.dbType
}
