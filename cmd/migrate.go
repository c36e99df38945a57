package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/anoixa/grammable/database"
	"github.com/anoixa/grammable/database/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration tools",
	Long:  `Migrate data from one database to another (e.g., SQLite to PostgreSQL).`,
}

// migrateRunCmd 执行迁移命令
var migrateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run database migration",
	Long: `Run database migration from source to target database.

Examples:
  # Migrate from SQLite to PostgreSQL
  grammable migrate run --from-sqlite ./data/grammable.db --to-postgres "host=localhost user=postgres password=secret dbname=grammable port=5432"

  # Migrate from SQLite to MySQL, replacing existing rows
  grammable migrate run --from-type sqlite --from-dsn ./data/grammable.db --to-type mysql --to-dsn "user:pass@tcp(localhost:3306)/grammable?parseTime=True" --on-conflict=overwrite

  # Stop on conflict
  grammable migrate run --from-sqlite ./data/grammable.db --to-postgres "..." --on-conflict=error`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := migrateOptions{}
		opts.fromType, _ = cmd.Flags().GetString("from-type")
		opts.toType, _ = cmd.Flags().GetString("to-type")
		opts.fromDSN, _ = cmd.Flags().GetString("from-dsn")
		opts.toDSN, _ = cmd.Flags().GetString("to-dsn")
		fromSQLite, _ := cmd.Flags().GetString("from-sqlite")
		toPostgres, _ := cmd.Flags().GetString("to-postgres")
		opts.skipConfirm, _ = cmd.Flags().GetBool("yes")
		opts.batchSize, _ = cmd.Flags().GetInt("batch-size")
		opts.onConflict, _ = cmd.Flags().GetString("on-conflict")

		// 快捷方式参数
		if fromSQLite != "" {
			opts.fromType = "sqlite"
			opts.fromDSN = fromSQLite
		}
		if toPostgres != "" {
			opts.toType = "postgres"
			opts.toDSN = toPostgres
		}

		if err := runMigration(opts); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateRunCmd)

	migrateRunCmd.Flags().String("from-type", "", "Source database type (sqlite, postgres, mysql)")
	migrateRunCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres, mysql)")
	migrateRunCmd.Flags().String("from-dsn", "", "Source database DSN/connection string")
	migrateRunCmd.Flags().String("to-dsn", "", "Target database DSN/connection string")
	migrateRunCmd.Flags().String("from-sqlite", "", "Source SQLite file path (shortcut)")
	migrateRunCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string (shortcut)")
	migrateRunCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	migrateRunCmd.Flags().Int("batch-size", 100, "Batch size for data migration")
	migrateRunCmd.Flags().String("on-conflict", "skip", "Conflict resolution strategy: skip (default), overwrite, error")
}

const (
	conflictSkip      = "skip"
	conflictOverwrite = "overwrite"
	conflictError     = "error"
)

type migrateOptions struct {
	fromType    string
	toType      string
	fromDSN     string
	toDSN       string
	skipConfirm bool
	batchSize   int
	onConflict  string
}

func (o *migrateOptions) validate() error {
	switch o.onConflict {
	case conflictSkip, conflictOverwrite, conflictError:
	default:
		return fmt.Errorf("invalid on-conflict strategy: %s (must be skip, overwrite, or error)", o.onConflict)
	}
	if o.fromType == "" || o.toType == "" {
		return errors.New("both --from-type and --to-type are required")
	}
	if o.fromDSN == "" || o.toDSN == "" {
		return errors.New("both --from-dsn and --to-dsn (or shortcuts) are required")
	}
	if o.fromType == o.toType && o.fromDSN == o.toDSN {
		return errors.New("source and target databases are the same")
	}
	if o.batchSize <= 0 {
		o.batchSize = 100
	}
	return nil
}

// migrateStats 迁移统计
type migrateStats struct {
	tables  map[string]int
	order   []string
	skipped int // 目标库已存在而跳过的记录数
	errors  []string
}

func newMigrateStats() *migrateStats {
	return &migrateStats{tables: make(map[string]int)}
}

func (s *migrateStats) add(table string, n int) {
	if _, ok := s.tables[table]; !ok {
		s.order = append(s.order, table)
	}
	s.tables[table] += n
}

// runMigration 执行数据库迁移
func runMigration(opts migrateOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}

	log.Printf("Source: %s (%s)", maskDSN(opts.fromDSN), opts.fromType)
	log.Printf("Target: %s (%s)", maskDSN(opts.toDSN), opts.toType)
	log.Printf("Conflict strategy: %s", opts.onConflict)

	sourceDB, err := openDatabase(opts.fromType, opts.fromDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	if sqlDB, err := sourceDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	targetDB, err := openDatabase(opts.toType, opts.toDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	if sqlDB, err := targetDB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// 确认迁移
	if !opts.skipConfirm {
		fmt.Println("\nWarning: This will migrate all data from source to target database.")
		fmt.Printf("Conflict resolution strategy: %s\n", opts.onConflict)
		fmt.Println("Existing data in target database may be affected.")
		fmt.Print("Do you want to continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Migration cancelled.")
			return nil
		}
	}

	stats, err := migrateData(context.Background(), sourceDB, targetDB, opts)
	if stats != nil {
		printMigrateStats(stats)
	}
	if err != nil {
		return err
	}

	if opts.toType == "postgres" || opts.toType == "postgresql" {
		if err := resetPostgresSequences(targetDB); err != nil {
			return fmt.Errorf("failed to reset sequences: %w", err)
		}
	}

	log.Println("Migration completed successfully!")
	return nil
}

// migrateData 建表并按外键顺序复制所有表
func migrateData(ctx context.Context, sourceDB, targetDB *gorm.DB, opts migrateOptions) (*migrateStats, error) {
	log.Println("Migrating database schema...")
	if err := targetDB.AutoMigrate(database.Models()...); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	stats := newMigrateStats()
	steps := []struct {
		name string
		run  func() error
	}{
		{"users", func() error { return migrateTable[models.User](ctx, sourceDB, targetDB, "users", opts, stats) }},
		{"devices", func() error { return migrateTable[models.Device](ctx, sourceDB, targetDB, "devices", opts, stats) }},
		{"grams", func() error { return migrateTable[models.Gram](ctx, sourceDB, targetDB, "grams", opts, stats) }},
		{"comments", func() error { return migrateTable[models.Comment](ctx, sourceDB, targetDB, "comments", opts, stats) }},
	}

	for _, step := range steps {
		log.Printf("Migrating %s...", step.name)
		if err := step.run(); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("%s migration failed: %v", step.name, err))
			if opts.onConflict == conflictError {
				return stats, err
			}
		}
	}

	if len(stats.errors) > 0 {
		return stats, fmt.Errorf("migration completed with %d errors", len(stats.errors))
	}
	return stats, nil
}

// migrateTable 分批复制一张表，包括软删除的行
func migrateTable[T any](ctx context.Context, sourceDB, targetDB *gorm.DB, table string, opts migrateOptions, stats *migrateStats) error {
	var batch []T
	result := sourceDB.WithContext(ctx).Unscoped().
		FindInBatches(&batch, opts.batchSize, func(_ *gorm.DB, _ int) error {
			return insertBatch(ctx, targetDB, table, batch, opts.onConflict, stats)
		})
	return result.Error
}

func insertBatch[T any](ctx context.Context, targetDB *gorm.DB, table string, batch []T, onConflict string, stats *migrateStats) error {
	db := targetDB.WithContext(ctx).Session(&gorm.Session{SkipHooks: true}).Omit(clause.Associations)

	switch onConflict {
	case conflictOverwrite:
		db = db.Clauses(clause.OnConflict{UpdateAll: true})
	case conflictSkip:
		db = db.Clauses(clause.OnConflict{DoNothing: true})
	}

	result := db.Create(&batch)
	if result.Error != nil {
		return result.Error
	}

	stats.add(table, int(result.RowsAffected))
	if onConflict == conflictSkip {
		stats.skipped += len(batch) - int(result.RowsAffected)
	}
	return nil
}

// resetPostgresSequences 显式写入主键后同步序列
func resetPostgresSequences(db *gorm.DB) error {
	for _, table := range []string{"users", "devices", "grams", "comments"} {
		sql := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE(MAX(id), 1)) FROM %s", table, table)
		if err := db.Exec(sql).Error; err != nil {
			return err
		}
	}
	return nil
}

// openDatabase 打开数据库连接
func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	dialector, err := database.Dialector(dbType, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// maskDSN 隐藏敏感信息
func maskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:50] + "..."
	}
	return dsn
}

// printMigrateStats 打印迁移统计
func printMigrateStats(stats *migrateStats) {
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("       Migration Statistics")
	fmt.Println("========================================")
	for _, table := range stats.order {
		fmt.Printf("%-10s migrated: %d\n", table, stats.tables[table])
	}
	fmt.Printf("Skipped records:     %d\n", stats.skipped)
	fmt.Println("========================================")

	if len(stats.errors) > 0 {
		fmt.Println("\nErrors encountered:")
		for _, err := range stats.errors {
			fmt.Printf("  - %s\n", err)
		}
	}
}
