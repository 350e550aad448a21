package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/pkg/config"
	"github.com/redis/go-redis/v9"
)

// NewLedger opens the refresh-token ledger selected by LEDGER_BACKEND. The
// returned func releases backend resources other than pg.
func NewLedger(ctx context.Context, cfg *config.Config, pg *sql.DB) (token.Ledger, func(), error) {
	switch cfg.LedgerBackend {
	case config.LedgerRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.DBOpTimeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return token.NewRedisLedger(rdb, "rt", cfg.DBOpTimeout), func() { _ = rdb.Close() }, nil
	case config.LedgerPostgres:
		return token.NewTokenRepository(pg, cfg.DBOpTimeout), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
}
