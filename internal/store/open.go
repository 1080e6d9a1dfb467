package store

import (
	"context"
	"fmt"
	"path/filepath"

	"guildbot/internal/config"
)

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(filepath.Join(cfg.Path, "bot.db"))
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
