// Package cli implements the apod commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"apod_syncer/internal/calendar"
	"apod_syncer/internal/config"
	"apod_syncer/internal/metrics"
	"apod_syncer/internal/publisher"
	"apod_syncer/internal/service"
	"apod_syncer/internal/source/apod"
	"apod_syncer/internal/storage/sqlstore"
)

var (
	configPath string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "apod",
	Short:         "Local cache of NASA's Astronomy Picture of the Day archive",
	Long:          "Keeps a relational cache of the APOD archive fresh, one month at a time, and serves it over HTTP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat()
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

// Execute runs the root command and reports a failure on stderr.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}

// app is the wired object graph shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	entries   *sqlstore.EntryStore
	freshness *sqlstore.FreshnessStore
	service   *service.SyncService
	metrics   metrics.ProviderInterface
	registry  *prometheus.Registry
	publisher *publisher.RabbitMQ
}

// newApp loads the config and wires the stores and the sync service.
// Logs go to logOut so command output on stdout stays parseable.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg.LogLevel, logOut)

	epoch, err := cfg.Sync.EpochDate(time.Local)
	if err != nil {
		return nil, err
	}

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Debug("connected to database", "driver", cfg.Database.Driver)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		entries:   sqlstore.NewEntryStore(db, time.Local),
		freshness: sqlstore.NewFreshnessStore(db),
		registry:  prometheus.NewRegistry(),
	}
	a.metrics = metrics.New(cfg.Metrics.Enabled, a.registry)

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.publisher = rabbitMQ
		pub = rabbitMQ
	}

	source := apod.New(apod.Config{
		BaseURL:        cfg.API.BaseURL,
		APIKey:         cfg.API.APIKey,
		Timeout:        cfg.API.Timeout,
		MaxAttempts:    cfg.API.Retry.MaxAttempts,
		InitialBackoff: cfg.API.Retry.InitialBackoff,
		MaxBackoff:     cfg.API.Retry.MaxBackoff,
		Location:       time.Local,
	}, logger)

	a.service = service.NewSyncService(
		source,
		a.entries,
		a.freshness,
		sqlstore.NewTransactionManager(db),
		pub,
		a.metrics,
		calendar.SystemClock{Location: time.Local},
		logger,
		service.Policy{
			Epoch:                epoch,
			CurrentMonthThrottle: cfg.Sync.CurrentMonthThrottle,
		},
	)

	return a, nil
}

func (a *app) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	a.db.Close()
}

// selectMonth maps the --month flag to a month and its selected date.
// An empty flag selects the current month.
func (a *app) selectMonth(flag string) (calendar.Month, time.Time, error) {
	month := calendar.MonthOf(a.service.Bounds().Today)
	if flag != "" && flag != "current" {
		m, err := calendar.ParseMonth(flag)
		if err != nil {
			return calendar.Month{}, time.Time{}, err
		}
		month = m
	}

	d, err := a.service.SelectMonth(month)
	if err != nil {
		return calendar.Month{}, time.Time{}, err
	}
	return month, d, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func validateFormat() error {
	if formatFlag != "json" && formatFlag != "text" {
		return fmt.Errorf("unknown format %q, expected json or text", formatFlag)
	}
	return nil
}
