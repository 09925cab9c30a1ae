// Command collector runs a forecast model and loads its gridded output into
// MongoDB, one document per grid cell. It also enforces retention and can
// reset the database.
//
// Usage:
//
//	collector [-c etc/collector.env] [-w level] forecast [--model fourcastnet2] [--date YYYYMMDD] [--time 12] [--lead-time 240] [--grib-file-path ./output_results.grib]
//	collector ingest --grib-file-path FILE [--format grib|netcdf]
//	collector delete-old-data [--date YYYYMMDD] [--collection-name weather]
//	collector reset [--db-name weather_data] [--collection NAME]
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/forecast-collector/internal/adapter/kafka"
	"github.com/couchcryptid/forecast-collector/internal/adapter/mongo"
	"github.com/couchcryptid/forecast-collector/internal/config"
	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/couchcryptid/forecast-collector/internal/forecast"
	"github.com/couchcryptid/forecast-collector/internal/gridfile"
	"github.com/couchcryptid/forecast-collector/internal/observability"
	"github.com/couchcryptid/forecast-collector/internal/pipeline"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	global := flag.NewFlagSet("collector", flag.ContinueOnError)
	global.SetOutput(stderr)
	var cfgPath, level string
	global.StringVar(&cfgPath, "c", config.DefaultPath, "path to the dotenv config file")
	global.StringVar(&cfgPath, "config", config.DefaultPath, "path to the dotenv config file")
	global.StringVar(&level, "w", "", "log level (debug, info, warning, error, critical); overrides LOG_LEVEL")
	global.StringVar(&level, "warn", "", "log level; overrides LOG_LEVEL")
	global.Usage = func() {
		fmt.Fprintln(stderr, "usage: collector [-c file] [-w level] <forecast|ingest|delete-old-data|reset> [flags]")
		global.PrintDefaults()
	}

	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if level != "" {
		cfg.LogLevel = level
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	cmd, err := parseCommand(global.Arg(0), global.Args()[1:], cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logger.Error("invalid command line", "error", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	metrics := observability.NewMetrics()
	collector, closePublisher := newCollector(cfg, cmd.format, logger, metrics)
	defer closePublisher()

	logger.Debug("starting execution", "command", cmd.name)
	summary, err := cmd.run(ctx, collector)
	pushMetrics(cfg, logger, metrics)
	if err != nil {
		observability.LogFailure(ctx, logger, cmd.name+" failed", err)
		return 1
	}

	logger.Info("successful completion",
		"command", cmd.name,
		"run_id", summary.RunID,
		"messages", summary.Messages,
		"records", summary.Records,
		"deleted", summary.Deleted,
	)
	return 0
}

// command is a parsed subcommand and its arguments.
type command struct {
	name   string
	format string // grid reader for forecast and ingest

	forecast   pipeline.ForecastParams
	path       string
	cutoff     string
	database   string
	collection string
}

func parseCommand(name string, args []string, cfg *config.Config, stderr io.Writer) (command, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cmd := command{name: name}

	switch name {
	case pipeline.CommandForecast:
		cmd.format = gridfile.FormatGRIB
		fs.StringVar(&cmd.forecast.Model, "model", "fourcastnet2", "model to run, one of "+fmt.Sprint(forecast.Names()))
		fs.StringVar(&cmd.forecast.Date, "date", domain.DefaultForecastDate(), "base date [YYYYMMDD]")
		fs.IntVar(&cmd.forecast.Time, "time", 12, "base hour [HH]")
		fs.StringVar(&cmd.forecast.GridFilePath, "grib-file-path", "./output_results.grib", "where the model writes its GRIB output")
		fs.IntVar(&cmd.forecast.LeadTime, "lead-time", 240, "forecast lead time in hours")
	case pipeline.CommandIngest:
		fs.StringVar(&cmd.path, "grib-file-path", "./output_results.grib", "grid file to ingest")
		fs.StringVar(&cmd.format, "format", cfg.GridFormat, "grid file format, grib or netcdf")
	case pipeline.CommandDeleteOldData:
		fs.StringVar(&cmd.cutoff, "date", domain.DefaultRetentionCutoff(), "delete records older than this date [YYYYMMDD]")
		fs.StringVar(&cmd.collection, "collection-name", cfg.MongoCollection, "collection to clean")
	case pipeline.CommandReset:
		fs.StringVar(&cmd.database, "db-name", cfg.MongoDatabase, "database to drop")
		fs.StringVar(&cmd.collection, "collection", "", "drop only this collection")
	default:
		return command{}, fmt.Errorf("unknown command %q", name)
	}

	if err := fs.Parse(args); err != nil {
		return command{}, err
	}
	if fs.NArg() > 0 {
		return command{}, fmt.Errorf("%s: unexpected arguments %v", name, fs.Args())
	}
	if name == pipeline.CommandIngest && cmd.format != gridfile.FormatGRIB && cmd.format != gridfile.FormatNetCDF {
		return command{}, fmt.Errorf("invalid --format %q: want grib or netcdf", cmd.format)
	}
	return cmd, nil
}

func (c command) run(ctx context.Context, collector *pipeline.Collector) (domain.RunSummary, error) {
	switch c.name {
	case pipeline.CommandForecast:
		return collector.RunForecast(ctx, c.forecast)
	case pipeline.CommandIngest:
		return collector.Ingest(ctx, c.path)
	case pipeline.CommandDeleteOldData:
		return collector.Purge(ctx, c.collection, c.cutoff)
	case pipeline.CommandReset:
		return collector.Reset(ctx, c.database, c.collection)
	}
	return domain.RunSummary{}, fmt.Errorf("unknown command %q", c.name)
}

// newCollector wires the adapters. The returned func closes the event
// publisher, if any.
func newCollector(cfg *config.Config, format string, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Collector, func()) {
	runner := forecast.NewCommandRunner(cfg.ModelRunner, cfg.ModelRunnerArgs, logger)

	openGrid := func(ctx context.Context, path string) (gridfile.Scanner, error) {
		return gridfile.Open(ctx, path, gridfile.Options{
			Format:      format,
			GribGetData: cfg.GribGetData,
			Variables:   cfg.NetCDFVariables,
		})
	}

	openStore := func(ctx context.Context, target pipeline.StoreTarget) (pipeline.Store, error) {
		s, err := mongo.Connect(ctx, mongo.Options{
			URI:            cfg.MongoURI,
			Database:       cmp.Or(target.Database, cfg.MongoDatabase),
			Collection:     cmp.Or(target.Collection, cfg.MongoCollection),
			ConnectTimeout: cfg.MongoConnectTimeout,
			SkipIndexes:    target.Admin,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	ingester := pipeline.NewIngester(openGrid, pipeline.IngestOptions{
		WriteMode:      cfg.WriteMode,
		Concurrency:    cfg.WriteConcurrency,
		CleanupTimeout: cfg.ShutdownTimeout,
	}, logger, metrics)
	sweeper := pipeline.NewSweeper(logger, metrics)

	var publisher pipeline.SummaryPublisher
	closePublisher := func() {}
	if cfg.EventsEnabled() {
		p := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaEventsTopic, logger)
		publisher = p
		closePublisher = func() {
			if err := p.Close(); err != nil {
				logger.Warn("kafka publisher close error", "error", err)
			}
		}
	}

	return pipeline.NewCollector(runner, openStore, ingester, sweeper, publisher, logger, metrics), closePublisher
}

// pushMetrics is best-effort; a missing gateway never fails a run.
func pushMetrics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, cfg.MetricsJob); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}
}
