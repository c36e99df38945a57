package core

import (
	"context"
	"time"

	"github.com/anoixa/grammable/cache"
	"github.com/anoixa/grammable/database"
	"github.com/anoixa/grammable/storage"
)

const healthCheckTimeout = 3 * time.Second

func checkDatabaseHealth(provider database.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkCacheHealth(ctx context.Context, cacheFactory *cache.Factory) string {
	if cacheFactory == nil || cacheFactory.GetProvider() == nil {
		return "not initialized"
	}
	if _, err := cacheFactory.GetProvider().Exists(ctx, "health"); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func checkStorageHealth(ctx context.Context, provider storage.Provider) string {
	if provider == nil {
		return "error: no storage provider"
	}
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
