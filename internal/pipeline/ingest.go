package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/forecast-collector/internal/config"
	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/couchcryptid/forecast-collector/internal/gridfile"
	"github.com/couchcryptid/forecast-collector/internal/observability"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// RecordStore writes weather records and removes failed batches.
type RecordStore interface {
	Insert(ctx context.Context, rec domain.WeatherRecord) error
	InsertMany(ctx context.Context, recs []domain.WeatherRecord) error
	DiscardBatch(ctx context.Context, batch string) (int64, error)
}

// OpenFunc opens a grid file for scanning.
type OpenFunc func(ctx context.Context, path string) (gridfile.Scanner, error)

// IngestOptions tunes how each grid message is written.
type IngestOptions struct {
	WriteMode      string        // config.WriteModeSingle or config.WriteModeBulk
	Concurrency    int           // in-flight inserts per message in single mode; 0 means unbounded
	CleanupTimeout time.Duration // bound on discarding a failed batch and other cleanup
}

// IngestResult reports a completed ingestion run.
type IngestResult struct {
	RunID    string
	Messages int
	Records  int64
}

// Ingester loads grid files into a RecordStore one message at a time. All
// writes of a message are issued together and awaited before the next
// message is read, so at most one message's cells are in flight.
type Ingester struct {
	open    OpenFunc
	opts    IngestOptions
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIngester creates an Ingester reading files through open.
func NewIngester(open OpenFunc, opts IngestOptions, logger *slog.Logger, metrics *observability.Metrics) *Ingester {
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 10 * time.Second
	}
	return &Ingester{open: open, opts: opts, logger: logger, metrics: metrics}
}

// Ingest loads path into store under a fresh run ID.
func (in *Ingester) Ingest(ctx context.Context, path string, store RecordStore) (IngestResult, error) {
	return in.IngestRun(ctx, uuid.NewString(), path, store)
}

// IngestRun loads path into store. Records are tagged with batch
// "<runID>/<message index>". A failing message is discarded as a whole and
// aborts the run; messages completed before it stay stored. Every failure is
// returned as a *domain.IngestionError.
func (in *Ingester) IngestRun(ctx context.Context, runID, path string, store RecordStore) (IngestResult, error) {
	result := IngestResult{RunID: runID}

	scanner, err := in.open(ctx, path)
	if err != nil {
		return result, &domain.IngestionError{Stage: domain.StageOpen, Message: -1, Err: err}
	}
	defer scanner.Close()

	in.logger.Info("ingestion started", "run_id", runID, "path", path, "write_mode", in.opts.WriteMode)

	for idx := 0; scanner.Scan(); idx++ {
		if err := ctx.Err(); err != nil {
			return result, &domain.IngestionError{Stage: domain.StageRead, Message: idx, Err: err}
		}

		n, err := in.ingestMessage(ctx, store, runID, idx, scanner.Message())
		if err != nil {
			return result, err
		}
		result.Messages++
		result.Records += int64(n)
	}
	if err := scanner.Err(); err != nil {
		return result, &domain.IngestionError{Stage: domain.StageRead, Message: result.Messages, Err: err}
	}

	in.logger.Info("ingestion finished", "run_id", runID, "messages", result.Messages, "records", result.Records)
	return result, nil
}

func (in *Ingester) ingestMessage(ctx context.Context, store RecordStore, runID string, idx int, msg domain.GridMessage) (int, error) {
	start := time.Now()

	recs, err := domain.BuildRecords(msg)
	if err != nil {
		in.metrics.BatchFailures.Inc()
		return 0, &domain.IngestionError{Stage: domain.StageBuild, Message: idx, Err: err}
	}

	batch := fmt.Sprintf("%s/%d", runID, idx)
	for i := range recs {
		recs[i].Batch = batch
	}

	if err := in.writeBatch(ctx, store, recs); err != nil {
		in.metrics.BatchFailures.Inc()
		stage := domain.StageWrite
		if derr := in.discard(ctx, store, batch); derr != nil {
			stage = domain.StageDiscard
			err = fmt.Errorf("%w (discarding batch %s also failed: %v)", err, batch, derr)
		}
		return 0, &domain.IngestionError{Stage: stage, Message: idx, Err: err}
	}

	in.metrics.RecordsWritten.Add(float64(len(recs)))
	in.metrics.MessagesIngested.Inc()
	in.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	in.logger.Debug("message ingested",
		"message", idx,
		"short_name", msg.ShortName,
		"forecast_offset", msg.ForecastOffset,
		"records", len(recs),
	)
	return len(recs), nil
}

// writeBatch writes every record of one message and waits for all of them.
// The first failure stops writes that have not started yet. Writes already
// issued run on ctx and settle before writeBatch returns, so a discard that
// follows sees every document of the batch.
func (in *Ingester) writeBatch(ctx context.Context, store RecordStore, recs []domain.WeatherRecord) error {
	if len(recs) == 0 {
		return nil
	}
	if in.opts.WriteMode == config.WriteModeBulk {
		return store.InsertMany(ctx, recs)
	}

	g, gctx := errgroup.WithContext(ctx)
	if in.opts.Concurrency > 0 {
		g.SetLimit(in.opts.Concurrency)
	}
	for i := range recs {
		rec := recs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return store.Insert(ctx, rec)
		})
	}
	return g.Wait()
}

// discard removes whatever part of a failed batch reached the store. It runs
// on a fresh deadline so it still works after the run context is cancelled.
func (in *Ingester) discard(ctx context.Context, store RecordStore, batch string) error {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), in.opts.CleanupTimeout)
	defer cancel()

	n, err := store.DiscardBatch(dctx, batch)
	if err != nil {
		in.logger.Error("discard failed batch", "batch", batch, "error", err)
		return err
	}
	in.logger.Warn("failed batch discarded", "batch", batch, "deleted", n)
	return nil
}
