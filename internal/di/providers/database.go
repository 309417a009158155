package providers

import (
	"fmt"
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/catalog-server/internal/config"
	"github.com/listenupapp/catalog-server/internal/logger"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/sqlite"
)

// StoreHandle wraps the catalog with shutdown capability.
type StoreHandle struct {
	store.Catalog
	Backend string
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured storage backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	var (
		catalog store.Catalog
		path    string
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		path = cfg.Storage.BadgerDir()
		catalog, err = store.New(path, log.Logger)
	case config.BackendSQLite:
		path = cfg.Storage.SQLiteFile()
		catalog, err = sqlite.Open(path, log.Logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	log.Info("Database initialized", "backend", cfg.Storage.Backend, "path", path)

	return &StoreHandle{Catalog: catalog, Backend: cfg.Storage.Backend}, nil
}
