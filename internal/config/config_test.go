package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Zero(t, cfg.RunTimeout)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "weather_data", cfg.MongoDatabase)
	assert.Equal(t, "weather", cfg.MongoCollection)
	assert.Equal(t, 10*time.Second, cfg.MongoConnectTimeout)
	assert.Equal(t, WriteModeSingle, cfg.WriteMode)
	assert.Equal(t, 64, cfg.WriteConcurrency)
	assert.Equal(t, "ai-models", cfg.ModelRunner)
	assert.Empty(t, cfg.ModelRunnerArgs)
	assert.Equal(t, GridFormatGRIB, cfg.GridFormat)
	assert.Equal(t, "grib_get_data", cfg.GribGetData)
	assert.Equal(t, []string{"u10", "v10", "t2m", "msl", "tcwv"}, cfg.NetCDFVariables)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.EventsEnabled())
	assert.Equal(t, "forecast-ingest-events", cfg.KafkaEventsTopic)
	assert.Empty(t, cfg.PushgatewayURL)
	assert.Equal(t, "forecast-collector", cfg.MetricsJob)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RUN_TIMEOUT", "2h")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("MONGO_DATABASE", "wx")
	t.Setenv("MONGO_COLLECTION", "points")
	t.Setenv("MONGO_CONNECT_TIMEOUT", "3s")
	t.Setenv("WRITE_MODE", "BULK")
	t.Setenv("WRITE_CONCURRENCY", "0")
	t.Setenv("MODEL_RUNNER", "/opt/bin/ai-models")
	t.Setenv("MODEL_RUNNER_ARGS", "--input cds  --assets /data/assets")
	t.Setenv("GRID_FORMAT", "netcdf")
	t.Setenv("NETCDF_VARIABLES", "t2m, tp ,")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_EVENTS_TOPIC", "runs")
	t.Setenv("PUSHGATEWAY_URL", "http://pushgateway:9091")
	t.Setenv("METRICS_JOB", "nightly")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 2*time.Hour, cfg.RunTimeout)
	assert.Equal(t, "mongodb://mongo:27017", cfg.MongoURI)
	assert.Equal(t, "wx", cfg.MongoDatabase)
	assert.Equal(t, "points", cfg.MongoCollection)
	assert.Equal(t, 3*time.Second, cfg.MongoConnectTimeout)
	assert.Equal(t, WriteModeBulk, cfg.WriteMode)
	assert.Equal(t, 0, cfg.WriteConcurrency)
	assert.Equal(t, "/opt/bin/ai-models", cfg.ModelRunner)
	assert.Equal(t, []string{"--input", "cds", "--assets", "/data/assets"}, cfg.ModelRunnerArgs)
	assert.Equal(t, GridFormatNetCDF, cfg.GridFormat)
	assert.Equal(t, []string{"t2m", "tp"}, cfg.NetCDFVariables)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.EventsEnabled())
	assert.Equal(t, "runs", cfg.KafkaEventsTopic)
	assert.Equal(t, "http://pushgateway:9091", cfg.PushgatewayURL)
	assert.Equal(t, "nightly", cfg.MetricsJob)
}

// unsetForTest clears key for the duration of the test and restores it afterwards.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoad_File(t *testing.T) {
	unsetForTest(t, "MONGO_DATABASE")
	unsetForTest(t, "MONGO_COLLECTION")
	t.Setenv("MONGO_URI", "mongodb://from-env:27017")

	path := filepath.Join(t.TempDir(), "collector.env")
	content := "MONGO_URI=mongodb://from-file:27017\nMONGO_DATABASE=filedb\nMONGO_COLLECTION=filecoll\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://from-env:27017", cfg.MongoURI, "environment overlays the file")
	assert.Equal(t, "filedb", cfg.MongoDatabase)
	assert.Equal(t, "filecoll", cfg.MongoCollection)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestLoad_MissingDefaultFileIgnored(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load(DefaultPath)
	require.NoError(t, err)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidRunTimeout(t *testing.T) {
	t.Setenv("RUN_TIMEOUT", "-5m")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUN_TIMEOUT")
}

func TestLoad_ZeroConnectTimeout(t *testing.T) {
	t.Setenv("MONGO_CONNECT_TIMEOUT", "0s")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_CONNECT_TIMEOUT")
}

func TestLoad_InvalidWriteConcurrency(t *testing.T) {
	t.Setenv("WRITE_CONCURRENCY", "-1")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRITE_CONCURRENCY")
}

func TestLoad_InvalidWriteMode(t *testing.T) {
	t.Setenv("WRITE_MODE", "sometimes")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRITE_MODE")
}

func TestLoad_InvalidGridFormat(t *testing.T) {
	t.Setenv("GRID_FORMAT", "hdf4")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GRID_FORMAT")
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
}

func TestLoad_NetCDFWithoutVariables(t *testing.T) {
	t.Setenv("GRID_FORMAT", "netcdf")
	t.Setenv("NETCDF_VARIABLES", " , ")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NETCDF_VARIABLES")
}
