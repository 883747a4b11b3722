package lock

import (
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/smallbiznis/silver/internal/config"
)

// NewRedisClient returns nil when no redis address is configured; the
// locker then falls back to its in-process implementation.
func NewRedisClient(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewLocker(client *redis.Client) Locker {
	if client == nil {
		return NewLocalLocker()
	}
	return NewRedisLocker(client)
}

var Module = fx.Module("billing.lock",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
)
