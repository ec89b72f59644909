package cache

import (
	"os"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// InitializeCache opens the Redis-backed session registry.
// Sessions must outlive process restarts, hence Redis rather than memory.
func InitializeCache() cache.Cache {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	cache, err := cache.New(cache.Config{
		Type:          "redis",
		RedisAddr:     addr,
		RedisPassword: "",
		RedisDB:       0,
	})
	if err != nil {
		logger.Error("Failed to initialize cache:", zap.Error(err))
		os.Exit(1)
	}
	return cache
}
