package cmd

import (
	"context"
	"fmt"

	"strategy-lab/config"
	"strategy-lab/internal/codec"
	"strategy-lab/internal/repository"
	"strategy-lab/internal/service"
	"strategy-lab/pkg/cache"
	"strategy-lab/pkg/common"
	"strategy-lab/pkg/logger"
	"strategy-lab/pkg/postgres"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AppDependency struct {
	db        *postgres.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	keys      codec.StrategyKeyCodec
	echo      *echo.Echo
	cache     cache.Cache
}

// NewAppDependency loads config and opens the database only when the
// postgres storage backend is selected.
func NewAppDependency(ctx context.Context, path string) (*AppDependency, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}

	var db *postgres.DB
	if cfg.Storage.Backend == common.STORAGE_POSTGRES {
		db, err = postgres.NewDB(cfg.DB, log)
		if err != nil {
			log.Error("Failed to connect to database", zap.Error(err))
			return nil, err
		}
	}

	validator := goValidator.New()
	e := echo.New()
	e.HideBanner = true
	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: validator,
		keys:      codec.NewCodec(validator),
		db:        db,
		echo:      e,
		cache:     cache.NewCache(cfg.Cache.DefaultExpiration, cfg.Cache.CleanupInterval),
	}, nil
}

func (d *AppDependency) gormDB() *gorm.DB {
	if d.db == nil {
		return nil
	}
	return d.db.DB
}

// Services builds the repository and service layers on top of the dependency.
func (d *AppDependency) Services() (*service.Service, error) {
	repo, err := repository.NewRepository(d.cfg, d.cache, d.gormDB(), d.keys, d.log.Named("repository"))
	if err != nil {
		return nil, fmt.Errorf("failed to create repository: %w", err)
	}
	return service.NewService(d.cfg, d.log, repo, d.cache, d.keys), nil
}

func (d *AppDependency) Close() error {
	d.log.Debug("Closing app dependency")
	defer func() { _ = d.log.Sync() }()
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// withServices runs fn against a freshly wired service layer and releases the
// dependencies afterwards.
func withServices(cmd *cobra.Command, fn func(s *service.Service) error) error {
	appDep, err := NewAppDependency(cmd.Context(), configPath)
	if err != nil {
		return err
	}
	defer func() { _ = appDep.Close() }()

	services, err := appDep.Services()
	if err != nil {
		return err
	}
	return fn(services)
}
