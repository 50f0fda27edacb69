package repository

import (
	"fmt"

	"strategy-lab/config"
	"strategy-lab/internal/codec"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/common"
	"strategy-lab/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	ExclusionRepo ExclusionRepository
	UnitOfWork    UnitOfWork
}

// NewRepository wires the exclusion store for the configured backend. db may
// be nil unless the postgres backend is selected.
func NewRepository(cfg *config.Config, c cache.Cache, db *gorm.DB, keys codec.StrategyKeyCodec, log *logger.Logger) (*Repository, error) {
	var (
		store ExclusionRepository
		uow   UnitOfWork
		name  string
	)

	switch cfg.Storage.Backend {
	case common.STORAGE_FILE:
		store = NewExclusionFileRepository(cfg.Storage.Path, keys, log)
		name = cfg.Storage.Path
	case common.STORAGE_POSTGRES:
		if db == nil {
			return nil, fmt.Errorf("storage backend %q requires a database connection", cfg.Storage.Backend)
		}
		uow = NewUnitOfWork(db)
		store = NewExclusionPostgresRepository(db, uow, keys, log)
		name = cfg.DB.DBName
	default:
		return nil, fmt.Errorf("unknown storage backend %q, expected one of %v", cfg.Storage.Backend, common.GetStorageBackends())
	}

	if c != nil {
		store = NewCachedExclusionRepository(store, c, name, cfg.Cache.SnapshotExpiration)
	}

	return &Repository{
		ExclusionRepo: store,
		UnitOfWork:    uow,
	}, nil
}
