package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-rental-reservations/internal/boltstore"
	"github.com/ariefcatur/go-rental-reservations/internal/booking"
	"github.com/ariefcatur/go-rental-reservations/internal/config"
	"github.com/ariefcatur/go-rental-reservations/internal/holds"
	"github.com/ariefcatur/go-rental-reservations/internal/ledger"
	"github.com/ariefcatur/go-rental-reservations/internal/opstasks"
	"github.com/ariefcatur/go-rental-reservations/internal/postgres"
)

// Store is everything the engine needs from persistence.
type Store interface {
	holds.Repository
	booking.Repository
	opstasks.Repository
	ledger.Store
	Ping(ctx context.Context) error
}

var (
	_ Store = (*postgres.Store)(nil)
	_ Store = (*boltstore.Store)(nil)
)

const pgMaxConns = 20

// OpenStore opens the configured backend. Postgres is migrated before use.
// The returned func releases it.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (Store, func(), error) {
	switch cfg.Store {
	case "bolt":
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open bolt %s: %w", cfg.BoltPath, err)
		}
		logger.Info("store ready", slog.String("backend", "bolt"), slog.String("path", cfg.BoltPath))
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.PostgresDSN, pgMaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("db connect: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db migrate: %w", err)
		}
		logger.Info("store ready", slog.String("backend", "postgres"))
		return postgres.NewStore(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
}
