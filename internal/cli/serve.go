package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"apod_syncer/internal/api"
	"apod_syncer/internal/scheduler"
	"apod_syncer/internal/service"
)

const shutdownTimeout = 10 * time.Second

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic current-month refresh",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	routerCfg := api.RouterConfig{AllowedOrigins: a.cfg.HTTP.AllowedOrigins}
	if a.cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}
	handler := api.NewHandler(
		a.service,
		service.NewCoordinators(a.service),
		a.entries,
		a.freshness,
		api.NewMonthCache(a.cfg.Cache.Enabled, a.cfg.Cache.SizeMB, a.cfg.Cache.TTL, logger),
		a.metrics,
		logger,
	)
	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.NewRouter(handler, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched := scheduler.NewScheduler(a.service, a.cfg.Sync.Interval, a.cfg.Sync.Timeout, logger)

	logger.Info("starting apod syncer",
		"addr", a.cfg.HTTP.Addr,
		"driver", a.cfg.Database.Driver,
		"interval", a.cfg.Sync.Interval,
		"publisher", a.cfg.RabbitMQ.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := sched.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("stopped")
	return nil
}
