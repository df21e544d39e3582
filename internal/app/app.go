// Package app assembles the watchqueue components from configuration.
package app

import (
	"context"
	"time"

	"github.com/amaumene/watchqueue/internal/api"
	"github.com/amaumene/watchqueue/internal/config"
	"github.com/amaumene/watchqueue/internal/controllers"
	"github.com/amaumene/watchqueue/internal/eventlog"
	"github.com/amaumene/watchqueue/internal/metrics"
	"github.com/amaumene/watchqueue/internal/models"
	"github.com/amaumene/watchqueue/internal/ordering"
	"github.com/amaumene/watchqueue/internal/stats"
	"github.com/amaumene/watchqueue/internal/timeline"
	"github.com/amaumene/watchqueue/internal/tracing"
	"github.com/google/wire"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// App holds the wired components
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *models.Database
	Events  *eventlog.Log
	Engine  *ordering.Engine
	Stats   *stats.Aggregator
	Grouper *timeline.Grouper
	Items   *controllers.ItemController
	Metrics *metrics.Metrics
	Tracer  *sdktrace.TracerProvider
	Server  *api.Server
}

// Clock returns the current time; every time-dependent component shares one
type Clock func() time.Time

// ProviderSet builds every component except the config and logger
var ProviderSet = wire.NewSet(
	provideClock,
	provideDatabase,
	provideTracer,
	metrics.New,
	provideEventLog,
	eventlog.NewProjection,
	ordering.NewOwnerLocks,
	ordering.NewEngine,
	provideAggregator,
	provideGrouper,
	provideItemController,
	api.NewServer,
	wire.Struct(new(App), "*"),
)

func provideClock() Clock {
	return func() time.Time { return time.Now().UTC() }
}

func provideDatabase(cfg *config.Config, logger zerolog.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile, models.Options{MaxRetry: cfg.TxMaxRetry, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}
	return db, cleanup, nil
}

func provideTracer(logger zerolog.Logger) (*sdktrace.TracerProvider, func()) {
	tp := tracing.NewProvider(logger)
	return tp, func() { _ = tp.Shutdown(context.Background()) }
}

func provideEventLog(db *models.Database, clock Clock, m *metrics.Metrics) *eventlog.Log {
	return eventlog.NewLog(db, clock, m)
}

func provideAggregator(cfg *config.Config, db *models.Database, log *eventlog.Log, clock Clock, m *metrics.Metrics, logger zerolog.Logger) *stats.Aggregator {
	return stats.NewAggregator(db, log, stats.Options{
		Location: cfg.Location,
		Now:      clock,
		CacheTTL: cfg.StatsCacheTTL,
		Metrics:  m,
		Logger:   logger,
	})
}

func provideGrouper(cfg *config.Config, clock Clock) *timeline.Grouper {
	return timeline.NewGrouper(cfg.Location, clock)
}

func provideItemController(
	cfg *config.Config,
	db *models.Database,
	log *eventlog.Log,
	projection *eventlog.Projection,
	engine *ordering.Engine,
	aggregator *stats.Aggregator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *controllers.ItemController {
	return controllers.NewItemController(db, log, projection, engine, aggregator, m, cfg.DefaultPageSize, logger)
}
