package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/couchcryptid/forecast-collector/internal/forecast"
	"github.com/couchcryptid/forecast-collector/internal/observability"
	"github.com/google/uuid"
)

// Command names, as used on the command line and in metrics.
const (
	CommandForecast      = "forecast"
	CommandIngest        = "ingest"
	CommandDeleteOldData = "delete-old-data"
	CommandReset         = "reset"
)

// Store is the storage surface used by the collector commands.
type Store interface {
	RecordStore
	RetentionStore
	DropCollection(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
	Close(ctx context.Context) error
}

// StoreTarget selects what a StoreOpener connects to. Empty fields fall back
// to the configured database and collection.
type StoreTarget struct {
	Database   string
	Collection string
	Admin      bool // no records are written, so index setup is skipped
}

// StoreOpener connects to the document store.
type StoreOpener func(ctx context.Context, target StoreTarget) (Store, error)

// ModelRunner runs a forecast model to completion.
type ModelRunner interface {
	Execute(ctx context.Context, req forecast.Request) error
}

// SummaryPublisher announces finished runs.
type SummaryPublisher interface {
	Publish(ctx context.Context, summary domain.RunSummary) error
}

// ForecastParams are the inputs of a forecast run.
type ForecastParams struct {
	Model        string
	Date         string // YYYYMMDD
	Time         int
	LeadTime     int
	GridFilePath string
}

// Collector orchestrates the collector commands: forecast, ingest, retention
// and reset. Every command returns a RunSummary; runs that got past input
// validation are also published.
type Collector struct {
	runner    ModelRunner
	openStore StoreOpener
	ingester  *Ingester
	sweeper   *Sweeper
	publisher SummaryPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewCollector wires the collector. publisher may be nil.
func NewCollector(runner ModelRunner, openStore StoreOpener, ingester *Ingester, sweeper *Sweeper, publisher SummaryPublisher, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	return &Collector{
		runner:    runner,
		openStore: openStore,
		ingester:  ingester,
		sweeper:   sweeper,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// RunForecast runs the model for the requested base time and ingests the GRIB
// file it produces. The model name, date and run shape are checked before the
// model starts.
func (c *Collector) RunForecast(ctx context.Context, p ForecastParams) (domain.RunSummary, error) {
	summary := c.newSummary(CommandForecast)
	summary.Model = p.Model
	summary.BaseDate = p.Date
	summary.GridFile = p.GridFilePath

	model, err := forecast.Lookup(p.Model)
	if err != nil {
		return summary, err
	}
	req := forecast.Request{
		Model:      model,
		OutputPath: p.GridFilePath,
		Date:       p.Date,
		Time:       p.Time,
		LeadTime:   p.LeadTime,
	}
	if err := req.Validate(); err != nil {
		return summary, err
	}

	c.logger.Info("running forecast model",
		"run_id", summary.RunID,
		"model", model.Name,
		"date", p.Date,
		"time", p.Time,
		"lead_time", p.LeadTime,
	)
	// A file left by an earlier run must not pass the output check below.
	if err := os.Remove(p.GridFilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return c.finish(ctx, summary, fmt.Errorf("remove stale model output %s: %w", p.GridFilePath, err))
	}
	if err := c.runner.Execute(ctx, req); err != nil {
		return c.finish(ctx, summary, fmt.Errorf("run model %s: %w", model.Name, err))
	}
	if _, err := os.Stat(p.GridFilePath); err != nil {
		return c.finish(ctx, summary, fmt.Errorf("%w: %s", domain.ErrModelOutputMissing, p.GridFilePath))
	}

	return c.ingest(ctx, summary)
}

// Ingest loads an existing grid file.
func (c *Collector) Ingest(ctx context.Context, path string) (domain.RunSummary, error) {
	summary := c.newSummary(CommandIngest)
	summary.GridFile = path

	if _, err := os.Stat(path); err != nil {
		return summary, &domain.IngestionError{
			Stage:   domain.StageOpen,
			Message: -1,
			Err:     fmt.Errorf("%w: %v", domain.ErrFileOpen, err),
		}
	}
	return c.ingest(ctx, summary)
}

func (c *Collector) ingest(ctx context.Context, summary domain.RunSummary) (domain.RunSummary, error) {
	store, err := c.openStore(ctx, StoreTarget{})
	if err != nil {
		return c.finish(ctx, summary, fmt.Errorf("open store: %w", err))
	}
	defer c.closeStore(ctx, store)

	res, err := c.ingester.IngestRun(ctx, summary.RunID, summary.GridFile, store)
	summary.Messages = res.Messages
	summary.Records = res.Records
	return c.finish(ctx, summary, err)
}

// Purge deletes records older than cutoff (YYYYMMDD) from collection. An
// empty collection selects the configured one.
func (c *Collector) Purge(ctx context.Context, collection, cutoff string) (domain.RunSummary, error) {
	summary := c.newSummary(CommandDeleteOldData)
	summary.BaseDate = cutoff

	if _, err := domain.ParseDate(cutoff); err != nil {
		return summary, err
	}

	store, err := c.openStore(ctx, StoreTarget{Collection: collection})
	if err != nil {
		return c.finish(ctx, summary, fmt.Errorf("open store: %w", err))
	}
	defer c.closeStore(ctx, store)

	n, err := c.sweeper.PurgeOlderThan(ctx, store, cutoff)
	summary.Deleted = n
	return c.finish(ctx, summary, err)
}

// Reset drops collection from database, or the whole database when
// collection is empty.
func (c *Collector) Reset(ctx context.Context, database, collection string) (domain.RunSummary, error) {
	summary := c.newSummary(CommandReset)

	if database == "" {
		return summary, fmt.Errorf("database name is required")
	}

	store, err := c.openStore(ctx, StoreTarget{Database: database, Collection: collection, Admin: true})
	if err != nil {
		return c.finish(ctx, summary, fmt.Errorf("open store: %w", err))
	}
	defer c.closeStore(ctx, store)

	if collection != "" {
		err = store.DropCollection(ctx, collection)
	} else {
		err = store.DropDatabase(ctx, database)
	}
	return c.finish(ctx, summary, err)
}

func (c *Collector) newSummary(command string) domain.RunSummary {
	return domain.RunSummary{
		RunID:     uuid.NewString(),
		Command:   command,
		StartedAt: domain.Now(),
	}
}

// finish stamps the outcome on summary and publishes it.
func (c *Collector) finish(ctx context.Context, summary domain.RunSummary, err error) (domain.RunSummary, error) {
	summary.FinishedAt = domain.Now()
	summary.Status = domain.StatusSuccess
	if err != nil {
		summary.Status = domain.StatusFailed
		summary.Error = err.Error()
	} else {
		c.metrics.MarkSuccess(summary.Command)
	}
	c.publish(ctx, summary)
	return summary, err
}

// publish is best-effort; a broker outage never fails a run.
func (c *Collector) publish(ctx context.Context, summary domain.RunSummary) {
	if c.publisher == nil {
		return
	}
	pctx, cancel := c.cleanupContext(ctx)
	defer cancel()
	if err := c.publisher.Publish(pctx, summary); err != nil {
		c.logger.Warn("run summary not published", "run_id", summary.RunID, "error", err)
	}
}

func (c *Collector) closeStore(ctx context.Context, store Store) {
	cctx, cancel := c.cleanupContext(ctx)
	defer cancel()
	if err := store.Close(cctx); err != nil {
		c.logger.Warn("close store", "error", err)
	}
}

func (c *Collector) cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.cleanupTimeout())
}

func (c *Collector) cleanupTimeout() time.Duration {
	return c.ingester.opts.CleanupTimeout
}
