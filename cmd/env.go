package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/qc-reconcile/internal/config"
	"github.com/sells-group/qc-reconcile/internal/reconcile"
	"github.com/sells-group/qc-reconcile/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "qc.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore initializes the configured store and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newEngine builds an engine from the engine config section and the
// optional per-layout overrides file.
func newEngine(ec config.EngineConfig) (*reconcile.Engine, error) {
	opts := reconcile.Options{
		MultiRowSections: ec.MultiRowSections,
		FieldNotCount:    ec.FieldNotCount,
	}
	if len(ec.QCMarkers) > 0 {
		opts.IsQC = reconcile.MarkerClassifier(ec.QCMarkers...)
	}

	if ec.LayoutsPath == "" {
		return reconcile.NewEngine(opts, nil), nil
	}
	layouts, err := config.LoadLayouts(ec.LayoutsPath)
	if err != nil {
		return nil, err
	}
	return reconcile.NewEngine(opts, layouts), nil
}
