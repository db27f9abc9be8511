package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/propfolio/catalog-cli/internal/adapter"
	"github.com/propfolio/catalog-cli/internal/db"
	"github.com/propfolio/catalog-cli/internal/dedupe"
	"github.com/propfolio/catalog-cli/internal/ingest"
	"github.com/propfolio/catalog-cli/internal/quality"
	"github.com/propfolio/catalog-cli/internal/store"
)

// ingestEnv holds the initialized store and orchestrator shared by the
// sync/watch/serve commands.
type ingestEnv struct {
	Store        store.Store
	Orchestrator *ingest.Orchestrator
}

// Close releases resources held by the environment.
func (e *ingestEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initIngest sets up the store, builds the source roster, and wires the
// orchestrator. Callers should defer env.Close().
func initIngest(ctx context.Context, mode string) (*ingestEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	roster, err := adapter.LoadRoster(cfg.Sync.SourcesFile)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	adapters, err := roster.Build()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	zap.L().Info("sources configured", zap.Int("adapters", len(adapters)))

	validator := quality.NewValidator(cfg.Quality.Bounds, nil)
	ranker := quality.NewRanker(cfg.Quality.SourcePreferences)
	deduper := dedupe.NewDeduplicator(cfg.Dedupe, ranker)

	orch, err := ingest.New(adapters, validator, deduper, st, ingest.Options{
		RadiusKM:   cfg.Sync.RadiusKM,
		MaxResults: cfg.Sync.MaxResults,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &ingestEnv{Store: st, Orchestrator: orch}, nil
}
