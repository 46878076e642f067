package redis

import (
	"context"
	"fmt"
	"strings"

	cfgpkg "github.com/fatflowers/membership/pkg/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyNamespace = "membership"

// Key builds a namespaced key from parts.
func Key(parts ...string) string {
	return strings.Join(append([]string{keyNamespace}, parts...), ":")
}

// NewClient connects to redis when an address is configured. It returns a nil
// client when redis is disabled.
func NewClient(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (*goredis.Client, error) {
	if cfg.Redis.Addr == "" {
		l.Infow("redis disabled; processed-event ledger off")
		return nil, nil
	}
	raw := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := raw.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			l.Infow("connected to redis", "addr", cfg.Redis.Addr)
			return nil
		},
		OnStop: func(context.Context) error {
			l.Infow("closing redis connection")
			return raw.Close()
		},
	})
	return raw, nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
