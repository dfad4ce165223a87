package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/do/v2"

	"github.com/campuslib/campuslib/internal/config"
	"github.com/campuslib/campuslib/internal/logger"
	"github.com/campuslib/campuslib/internal/store"
	"github.com/campuslib/campuslib/internal/store/postgres"
	"github.com/campuslib/campuslib/internal/store/sqlite"
)

// openTimeout bounds connecting to an external database at startup.
const openTimeout = 30 * time.Second

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the backend selected by the configured driver.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path, log.Logger)
		if err != nil {
			return nil, err
		}
		log.Debug("database initialized", "driver", "sqlite", "path", cfg.Database.Path)
		return &StoreHandle{Store: db}, nil

	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
		defer cancel()

		db, err := postgres.Open(ctx, postgres.Options{
			DSN:      cfg.Database.DSN,
			MaxConns: int32(cfg.Database.MaxConns),
			Logger:   log.Logger,
		})
		if err != nil {
			return nil, err
		}
		log.Debug("database initialized", "driver", "postgres", "max_conns", cfg.Database.MaxConns)
		return &StoreHandle{Store: db}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
