package app

import (
	"fmt"

	"github.com/yungbote/artisan-backend/internal/data/db"
	"github.com/yungbote/artisan-backend/internal/data/repos"
	"github.com/yungbote/artisan-backend/internal/platform/logger"
)

// wireRepos opens the configured record store. The returned db service is
// nil for the in-memory store.
func wireRepos(log *logger.Logger, cfg Config) (repos.Repos, *db.Service, error) {
	log.Info("Wiring repos...", "record_store", cfg.RecordStore)

	var (
		svc *db.Service
		err error
	)
	switch cfg.RecordStore {
	case RecordStoreMemory:
		return repos.NewMemory(log), nil, nil
	case RecordStoreSQLite:
		svc, err = db.NewSQLiteService(log, cfg.SQLitePath)
	case RecordStorePostgres:
		svc, err = db.NewPostgresService(log, cfg.Postgres)
	default:
		return repos.Repos{}, nil, fmt.Errorf("unsupported record store %q", cfg.RecordStore)
	}
	if err != nil {
		return repos.Repos{}, nil, err
	}
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		_ = svc.Close()
		return repos.Repos{}, nil, fmt.Errorf("%s automigrate: %w", svc.Driver(), err)
	}
	return repos.NewGorm(svc.DB(), log), svc, nil
}
