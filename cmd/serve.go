package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anoixa/grammable/api/core"
	"github.com/anoixa/grammable/config"
	"github.com/anoixa/grammable/internal/app"
	"github.com/anoixa/grammable/utils"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		RunServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func RunServer() {
	config.InitConfig()
	cfg := config.Get()

	if err := os.MkdirAll("./data/temp", os.ModePerm); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	container := app.NewContainer(cfg)
	if err := container.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	InitDatabase(container)

	if err := container.InitServices(); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	server, cleanup := core.StartServer(&core.ServerDependencies{
		Config:           cfg,
		DatabaseProvider: container.GetDatabaseProvider(),
		CacheFactory:     container.GetCacheFactory(),
		Storage:          container.GetStorage(),
		JWTService:       container.GetJWTService(),
		LoginService:     container.GetLoginService(),
		GramsService:     container.GetGramsService(),
	})
	go func() {
		log.Printf("Server started on %s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stopCleanup := make(chan struct{})
	go startDeviceCleanup(container, stopCleanup)

	// 处理退出signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	close(stopCleanup)
	if cleanup != nil {
		cleanup()
	}

	if err := container.Close(); err != nil {
		log.Printf("Error closing container: %v", err)
	}

	log.Println("Server exited successfully")
}

// InitDatabase 自动迁移并创建默认管理员
func InitDatabase(container *app.Container) {
	factory := container.GetDatabaseFactory()
	log.Printf("Initializing database, database type: %s", factory.GetProvider().Name())

	if err := factory.AutoMigrate(); err != nil {
		log.Fatalf("Failed to auto migrate database: %v", err)
	}

	password, err := container.GetRepositories().Accounts.CreateDefaultAdminUser()
	if err != nil {
		log.Fatalf("Failed to create default admin user: %v", err)
	}
	if password != "" {
		log.Printf("Created default user 'admin' with password: %s", password)
		log.Println("Change this password after first login.")
	}

	log.Println("Database initialized successfully")

	// 启动时清理残留临时文件
	go cleanOldTempFiles()
}

// cleanOldTempFiles 清理超过24小时的上传临时文件
func cleanOldTempFiles() {
	tempDir := "./data/temp"
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Failed to read temp directory: %v", err)
		}
		return
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(tempDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to remove old temp file %s: %v", path, err)
				continue
			}
			removed++
		}
	}
	utils.LogIfDevf("Removed %d stale temp files", removed)
}

// startDeviceCleanup 定期删除刷新令牌已过期的登录设备
func startDeviceCleanup(container *app.Container, stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := container.GetRepositories().Devices.DeleteExpiredDevices()
			if err != nil {
				log.Printf("Failed to clean expired devices: %v", err)
			} else if n > 0 {
				log.Printf("Removed %d expired login devices", n)
			}
		case <-stop:
			return
		}
	}
}
