package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/anoixa/grammable/cache"
	"github.com/anoixa/grammable/config"
	"github.com/spf13/cobra"
)

// cacheCmd 缓存管理命令
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Cache management commands",
	Long:  "Manage application cache, including cached gram details.",
}

// cacheClearCmd 清除缓存命令
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cache",
	Long: `Clear application cache. By default the whole cache is cleared.

Examples:
  grammable cache clear
  grammable cache clear --gram 42`,
	Run: func(cmd *cobra.Command, args []string) {
		gramID, _ := cmd.Flags().GetString("gram")

		if err := runCacheClear(gramID); err != nil {
			log.Fatalf("Cache clear failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheClearCmd.Flags().String("gram", "", "Only clear the cached entry of this gram id")
}

// runCacheClear 执行缓存清理
func runCacheClear(gramID string) error {
	config.InitConfig()
	cfg := config.Get()

	factory, err := cache.NewFactory(cfg.CacheOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer factory.Close()

	return clearCache(context.Background(), factory, gramID, cfg.GramCacheTTL())
}

func clearCache(ctx context.Context, factory *cache.Factory, gramID string, ttl time.Duration) error {
	provider := factory.GetProvider()
	if provider == nil {
		return fmt.Errorf("cache provider not initialized")
	}
	log.Printf("Cache provider: %s", provider.Name())

	if gramID == "" {
		log.Println("Clearing all cache...")
		if err := factory.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear all cache: %w", err)
		}
		log.Println("All cache cleared successfully")
		return nil
	}

	id, err := strconv.ParseUint(gramID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid gram id: %s", gramID)
	}

	helper := cache.NewHelper(provider, cache.HelperConfig{GramCacheTTL: ttl})
	if err := helper.DeleteCachedGram(ctx, uint(id)); err != nil {
		return fmt.Errorf("failed to clear gram %d: %w", id, err)
	}
	log.Printf("Cache of gram %d cleared successfully", id)
	return nil
}
