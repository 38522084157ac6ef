package session

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CamDog38/ShopDelta2-sub001/internal/config"
)

// Open returns the Store selected by cfg.Backend. db is the shared SQLite
// handle and is only used by the sqlite backend.
func Open(ctx context.Context, cfg config.SessionsConfig, db *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "", config.SessionBackendSQLite:
		if db == nil {
			return nil, fmt.Errorf("sqlite session backend requires a database handle")
		}
		return NewSQLiteStore(db), nil
	case config.SessionBackendRedis:
		return NewRedisStore(ctx, cfg.RedisURL, cfg.KeyPrefix)
	case config.SessionBackendPostgres:
		return NewPostgresStore(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
