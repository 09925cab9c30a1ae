package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/couchcryptid/forecast-collector/internal/forecast"
	"github.com/couchcryptid/forecast-collector/internal/gridfile"
	"github.com/couchcryptid/forecast-collector/internal/pipeline"
)

// --- mocks ---

type mockScanner struct {
	msgs   []domain.GridMessage
	next   int
	err    error
	closed bool
}

func (s *mockScanner) Scan() bool {
	if s.next >= len(s.msgs) {
		return false
	}
	s.next++
	return true
}

func (s *mockScanner) Message() domain.GridMessage { return s.msgs[s.next-1] }

func (s *mockScanner) Err() error { return s.err }

func (s *mockScanner) Close() error {
	s.closed = true
	return nil
}

func openerFor(sc *mockScanner) pipeline.OpenFunc {
	return func(context.Context, string) (gridfile.Scanner, error) {
		return sc, nil
	}
}

// memStore is an in-memory pipeline.Store.
type memStore struct {
	mu      sync.Mutex
	records []domain.WeatherRecord

	failOn     func(domain.WeatherRecord) error
	discardErr error
	deleteErr  error

	deletes        int
	droppedColl    string
	droppedDB      string
	closed         bool
	insertOneCalls int
	insertMany     int
}

func (m *memStore) Insert(_ context.Context, rec domain.WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertOneCalls++
	if m.failOn != nil {
		if err := m.failOn(rec); err != nil {
			return err
		}
	}
	m.records = append(m.records, rec)
	return nil
}

// InsertMany mirrors an unordered bulk insert: good records land even when
// others fail.
func (m *memStore) InsertMany(_ context.Context, recs []domain.WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertMany++
	var firstErr error
	for _, rec := range recs {
		if m.failOn != nil {
			if err := m.failOn(rec); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		m.records = append(m.records, rec)
	}
	return firstErr
}

func (m *memStore) DiscardBatch(_ context.Context, batch string) (int64, error) {
	if m.discardErr != nil {
		return 0, m.discardErr
	}
	return m.remove(func(r domain.WeatherRecord) bool { return r.Batch == batch }), nil
}

func (m *memStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	m.deletes++
	m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.remove(func(r domain.WeatherRecord) bool { return r.Timestamp.Before(cutoff) }), nil
}

func (m *memStore) remove(match func(domain.WeatherRecord) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if match(r) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return n
}

func (m *memStore) DropCollection(_ context.Context, name string) error {
	m.droppedColl = name
	return nil
}

func (m *memStore) DropDatabase(_ context.Context, name string) error {
	m.droppedDB = name
	return nil
}

func (m *memStore) Close(context.Context) error {
	m.closed = true
	return nil
}

func (m *memStore) batches() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, r := range m.records {
		out[r.Batch]++
	}
	return out
}

type mockRunner struct {
	calls []forecast.Request
	err   error
	// writeOutput creates the requested output file, like a successful model run.
	writeOutput bool
}

func (r *mockRunner) Execute(_ context.Context, req forecast.Request) error {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return r.err
	}
	if r.writeOutput {
		return os.WriteFile(req.OutputPath, []byte("GRIB"), 0o600)
	}
	return nil
}

type mockPublisher struct {
	published []domain.RunSummary
	err       error
}

func (p *mockPublisher) Publish(_ context.Context, s domain.RunSummary) error {
	p.published = append(p.published, s)
	return p.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

// gridMessage builds a three-cell message along the equator.
func gridMessage(shortName string, longitudes ...float64) domain.GridMessage {
	if len(longitudes) == 0 {
		longitudes = []float64{0, 0.25, 0.5}
	}
	lats := make([]float64, len(longitudes))
	vals := make([]float64, len(longitudes))
	for i := range longitudes {
		vals[i] = float64(i + 1)
	}
	return domain.GridMessage{
		ShortName:      shortName,
		BaseDate:       "20240101",
		ForecastOffset: 6,
		Latitudes:      lats,
		Longitudes:     longitudes,
		Values:         vals,
	}
}

var errWrite = errors.New("write refused")

func writeFile(path string) error {
	return os.WriteFile(path, []byte("GRIB"), 0o600)
}
