package gridfile

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

// fakeGribGetData installs a script that ignores its arguments and prints output.
func fakeGribGetData(t *testing.T, output string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in for grib_get_data")
	}
	data := writeFile(t, "output.txt", []byte(output))
	script := "#!/bin/sh\ncat '" + data + "'\n"
	if exitCode != 0 {
		script += "echo 'ECCODES ERROR: truncated message' >&2\nexit 1\n"
	}
	bin := writeFile(t, "grib_get_data", []byte(script))
	require.NoError(t, os.Chmod(bin, 0o755))
	return bin
}

func gribFile(t *testing.T) string {
	return writeFile(t, "forecast.grib", []byte("GRIB\x00\x00\x00\x02rest-of-message"))
}

const twoMessages = `Latitude, Longitude, Value, shortName, dataDate, forecastTime, typeOfLevel, level
   90.000    0.000 2.5010e+02 t 20240101 6 isobaricInhPa 850
   90.000  180.000 2.5020e+02 t 20240101 6 isobaricInhPa 850
  -90.000  359.750 missing t 20240101 6 isobaricInhPa 850
  -90.000  359.750 2.6000e+02 t 20240101 6 isobaricInhPa 850
Latitude, Longitude, Value, shortName, dataDate, forecastTime, typeOfLevel, level
   45.000   10.000 2.8815e+02 2t 20240101 12 heightAboveGround 2
`

func TestOpen_GRIB(t *testing.T) {
	bin := fakeGribGetData(t, twoMessages, 0)

	s, err := Open(context.Background(), gribFile(t), Options{GribGetData: bin})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.True(t, s.Scan())
	m := s.Message()
	assert.Equal(t, "t", m.ShortName)
	assert.Equal(t, "20240101", m.BaseDate)
	assert.Equal(t, 6, m.ForecastOffset)
	require.NotNil(t, m.PressureLevel)
	assert.Equal(t, 850, *m.PressureLevel)
	assert.Equal(t, []float64{90, 90, -90}, m.Latitudes)
	assert.Equal(t, []float64{0, 180, 359.75}, m.Longitudes)
	assert.Equal(t, []float64{250.1, 250.2, 260}, m.Values)

	require.True(t, s.Scan())
	m = s.Message()
	assert.Equal(t, "2t", m.ShortName)
	assert.Equal(t, 12, m.ForecastOffset)
	assert.Nil(t, m.PressureLevel)
	assert.Equal(t, 1, m.Cells())

	assert.False(t, s.Scan())
	require.NoError(t, s.Err())
}

func TestOpen_GRIBReaderFailure(t *testing.T) {
	bin := fakeGribGetData(t, "Latitude Longitude Value shortName dataDate forecastTime typeOfLevel level\n", 1)

	s, err := Open(context.Background(), gribFile(t), Options{GribGetData: bin})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.False(t, s.Scan())
	require.Error(t, s.Err())
	assert.ErrorIs(t, s.Err(), domain.ErrFileOpen)
	assert.Contains(t, s.Err().Error(), "truncated message")
}

func TestOpen_GRIBMalformedRow(t *testing.T) {
	bin := fakeGribGetData(t, "Latitude Longitude Value\n 1.0 2.0\n", 0)

	s, err := Open(context.Background(), gribFile(t), Options{GribGetData: bin})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	assert.False(t, s.Scan())
	assert.ErrorIs(t, s.Err(), domain.ErrFileOpen)
}

func TestOpen_GRIBMissingTool(t *testing.T) {
	_, err := Open(context.Background(), gribFile(t), Options{GribGetData: filepath.Join(t.TempDir(), "absent")})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileOpen)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.grib"), Options{})
	assert.ErrorIs(t, err, domain.ErrFileOpen)
}

func TestOpen_EmptyFile(t *testing.T) {
	_, err := Open(context.Background(), writeFile(t, "empty.grib", nil), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileOpen)
	assert.Contains(t, err.Error(), "empty")
}

func TestOpen_UnrecognisedFormat(t *testing.T) {
	_, err := Open(context.Background(), writeFile(t, "notes.txt", []byte("hello world")), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileOpen)
	assert.Contains(t, err.Error(), "not a GRIB or netCDF file")
}

func TestOpen_FormatMismatch(t *testing.T) {
	_, err := Open(context.Background(), gribFile(t), Options{Format: FormatNetCDF})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFileOpen)
}

func TestOpen_CorruptNetCDF(t *testing.T) {
	path := writeFile(t, "broken.nc", []byte("CDF\x01\x00\x00"))
	_, err := Open(context.Background(), path, Options{Variables: []string{"t2m"}})
	assert.ErrorIs(t, err, domain.ErrFileOpen)
}

func TestOpen_NetCDFNeedsVariables(t *testing.T) {
	path := writeFile(t, "era5.nc", []byte("CDF\x01\x00\x00"))
	_, err := Open(context.Background(), path, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no netCDF variables")
}
