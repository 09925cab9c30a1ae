package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/couchcryptid/forecast-collector/internal/observability"
)

// RetentionStore deletes records by age.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper enforces retention by deleting old weather records.
type Sweeper struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSweeper creates a Sweeper.
func NewSweeper(logger *slog.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{logger: logger, metrics: metrics}
}

// PurgeOlderThan deletes every record with a timestamp strictly before the
// YYYYMMDD cutoff and returns how many were deleted. A malformed cutoff fails
// with domain.ErrInvalidDate before the store is touched.
func (s *Sweeper) PurgeOlderThan(ctx context.Context, store RetentionStore, cutoff string) (int64, error) {
	t, err := domain.ParseDate(cutoff)
	if err != nil {
		return 0, err
	}

	n, err := store.DeleteOlderThan(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("purge records older than %s: %w", cutoff, err)
	}

	s.metrics.RecordsPurged.Add(float64(n))
	s.logger.Info("old records purged", "cutoff", cutoff, "deleted", n)
	return n, nil
}
