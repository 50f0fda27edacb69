package cmd

import (
	"context"
	"errors"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strategy-lab/internal/delivery/http"
	"strategy-lab/pkg/middleware"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the HTTP API and the job scheduler",
	RunE:  Start,
}

func Start(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() { _ = appDep.Close() }()
	log := appDep.log

	services, err := appDep.Services()
	if err != nil {
		return err
	}

	appDep.echo.Use(middleware.NewRateLimiterMiddleware(appDep.cfg.API))
	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services, log.Named("http"))

	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, httpNet.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if appDep.cfg.Scheduler.Enabled {
		if err := services.SchedulerService.Start(ctx); err != nil {
			_ = apiServer.Stop()
			return err
		}
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully")
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	if appDep.cfg.Scheduler.Enabled {
		select {
		case <-services.SchedulerService.Stop().Done():
		case <-time.After(appDep.cfg.Scheduler.TimeoutDuration):
			log.Warn("Timeout while waiting for running jobs")
		}
	}

	if err := apiServer.Stop(); err != nil {
		return err
	}

	if err := services.ExclusionCache.Save(context.WithoutCancel(ctx)); err != nil {
		log.Error("Failed to save exclusions on shutdown", zap.Error(err))
		return err
	}
	return nil
}
