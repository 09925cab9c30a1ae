package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// DefaultPath is the dotenv file read when no --config flag is given. It may be absent.
const DefaultPath = "etc/collector.env"

// Write modes for the ingestion pipeline.
const (
	WriteModeSingle = "single" // one insert per record, issued concurrently
	WriteModeBulk   = "bulk"   // one insert-many per grid message
)

// Grid file formats.
const (
	GridFormatGRIB   = "grib"
	GridFormatNetCDF = "netcdf"
)

// Config holds all collector settings, populated from an optional dotenv file
// overlaid by environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunTimeout      time.Duration // 0 disables the overall deadline

	// MongoDB document store.
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	MongoConnectTimeout time.Duration
	WriteMode           string
	WriteConcurrency    int // 0 means one goroutine per grid cell

	// Forecast model and grid reader.
	ModelRunner     string
	ModelRunnerArgs []string
	GridFormat      string
	GribGetData     string
	NetCDFVariables []string

	// Run summary events, disabled when KafkaBrokers is empty.
	KafkaBrokers     []string
	KafkaEventsTopic string

	// Prometheus Pushgateway, disabled when empty.
	PushgatewayURL string
	MetricsJob     string
}

// EventsEnabled reports whether run summaries should be published.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads the dotenv file at path (if any) and then the environment,
// applying defaults where unset. Variables already present in the
// environment take precedence over the file.
func Load(path string) (*Config, error) {
	if err := loadFile(path); err != nil {
		return nil, err
	}

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	runTimeout, err := parseDuration("RUN_TIMEOUT", "0s", true)
	if err != nil {
		return nil, err
	}

	connectTimeout, err := parseDuration("MONGO_CONNECT_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}

	concurrency, err := parseWriteConcurrency()
	if err != nil {
		return nil, err
	}

	var brokers []string
	if raw := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunTimeout:      runTimeout,

		MongoURI:            sharedcfg.EnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       sharedcfg.EnvOrDefault("MONGO_DATABASE", "weather_data"),
		MongoCollection:     sharedcfg.EnvOrDefault("MONGO_COLLECTION", "weather"),
		MongoConnectTimeout: connectTimeout,
		WriteMode:           strings.ToLower(sharedcfg.EnvOrDefault("WRITE_MODE", WriteModeSingle)),
		WriteConcurrency:    concurrency,

		ModelRunner:     sharedcfg.EnvOrDefault("MODEL_RUNNER", "ai-models"),
		ModelRunnerArgs: strings.Fields(os.Getenv("MODEL_RUNNER_ARGS")),
		GridFormat:      strings.ToLower(sharedcfg.EnvOrDefault("GRID_FORMAT", GridFormatGRIB)),
		GribGetData:     sharedcfg.EnvOrDefault("GRIB_GET_DATA", "grib_get_data"),
		NetCDFVariables: splitList(sharedcfg.EnvOrDefault("NETCDF_VARIABLES", "u10,v10,t2m,msl,tcwv")),

		KafkaBrokers:     brokers,
		KafkaEventsTopic: sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "forecast-ingest-events"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		MetricsJob:     sharedcfg.EnvOrDefault("METRICS_JOB", "forecast-collector"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q: want json or text", c.LogFormat)
	}
	switch c.WriteMode {
	case WriteModeSingle, WriteModeBulk:
	default:
		return fmt.Errorf("invalid WRITE_MODE %q: want %s or %s", c.WriteMode, WriteModeSingle, WriteModeBulk)
	}
	switch c.GridFormat {
	case GridFormatGRIB, GridFormatNetCDF:
	default:
		return fmt.Errorf("invalid GRID_FORMAT %q: want %s or %s", c.GridFormat, GridFormatGRIB, GridFormatNetCDF)
	}
	if c.MongoURI == "" {
		return errors.New("MONGO_URI is required")
	}
	if c.MongoDatabase == "" {
		return errors.New("MONGO_DATABASE is required")
	}
	if c.MongoCollection == "" {
		return errors.New("MONGO_COLLECTION is required")
	}
	if c.ModelRunner == "" {
		return errors.New("MODEL_RUNNER is required")
	}
	if c.GridFormat == GridFormatNetCDF && len(c.NetCDFVariables) == 0 {
		return errors.New("NETCDF_VARIABLES is required when GRID_FORMAT is netcdf")
	}
	if c.EventsEnabled() && c.KafkaEventsTopic == "" {
		return errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// loadFile applies the dotenv file at path. A missing default file is not an error.
func loadFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) && path == DefaultPath {
		return nil
	}
	return fmt.Errorf("load config file %s: %w", path, err)
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseWriteConcurrency() (int, error) {
	s := sharedcfg.EnvOrDefault("WRITE_CONCURRENCY", "64")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid WRITE_CONCURRENCY %q: must be a non-negative integer", s)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
