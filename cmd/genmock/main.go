// Command genmock writes a small synthetic ERA5-style netCDF file. The file
// exercises the collector's netCDF reader, the validate tool and local
// ingestion runs without downloading reanalysis data.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/era5_mock.nc \
//	  -date 20240101 -steps 4 -step-hours 6 \
//	  -variables u10,v10,t2m,msl,tcwv -levels 500,850
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/couchcryptid/forecast-collector/internal/domain"
)

// epoch is the ERA5 time reference.
var epoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

const timeUnits = "hours since 1900-01-01 00:00:00.0"

// leveledVariable is written when pressure levels are requested.
const leveledVariable = "t"

// baseValues gives each known variable a plausible magnitude.
var baseValues = map[string]float32{
	"u10":  0,
	"v10":  0,
	"t2m":  273.15,
	"msl":  101325,
	"tcwv": 20,
	"t":    250,
}

// fixture describes the synthetic grid.
type fixture struct {
	date      time.Time
	steps     int
	stepHours int
	variables []string
	levels    []int32
	lat       []float32 // north to south, like ERA5
	lon       []float32 // 0 to 360
}

func main() {
	out := flag.String("out", "data/mock/era5_mock.nc", "output netCDF file")
	date := flag.String("date", "20240101", "date of the first time step [YYYYMMDD]")
	steps := flag.Int("steps", 2, "number of time steps")
	stepHours := flag.Int("step-hours", 6, "hours between time steps")
	variables := flag.String("variables", "u10,v10,t2m,msl,tcwv", "surface variables to write")
	levels := flag.String("levels", "", "pressure levels in hPa for a leveled temperature variable, e.g. 500,850")
	resolution := flag.Float64("resolution", 45, "grid spacing in degrees")
	flag.Parse()

	f, err := newFixture(*date, *steps, *stepHours, *variables, *levels, *resolution)
	if err != nil {
		log.Fatalf("genmock: %v", err)
	}
	if err := writeFixture(*out, f); err != nil {
		log.Fatalf("genmock: %v", err)
	}
	fmt.Printf("Wrote %s: %d variables x %d steps on a %dx%d grid\n",
		*out, len(f.variables), f.steps, len(f.lat), len(f.lon))
}

func newFixture(date string, steps, stepHours int, variables, levels string, resolution float64) (fixture, error) {
	d, err := domain.ParseDate(date)
	if err != nil {
		return fixture{}, err
	}
	if steps <= 0 || stepHours <= 0 {
		return fixture{}, fmt.Errorf("steps and step-hours must be positive")
	}
	if resolution <= 0 || resolution > 90 {
		return fixture{}, fmt.Errorf("resolution must be in (0, 90]")
	}

	f := fixture{date: d, steps: steps, stepHours: stepHours}
	for _, v := range strings.Split(variables, ",") {
		if v = strings.TrimSpace(v); v != "" {
			f.variables = append(f.variables, v)
		}
	}
	for _, l := range strings.Split(levels, ",") {
		if l = strings.TrimSpace(l); l == "" {
			continue
		}
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return fixture{}, fmt.Errorf("invalid level %q", l)
		}
		f.levels = append(f.levels, int32(n))
	}
	if len(f.variables) == 0 && len(f.levels) == 0 {
		return fixture{}, fmt.Errorf("nothing to write")
	}

	for la := 90.0; la >= -90; la -= resolution {
		f.lat = append(f.lat, float32(la))
	}
	for lo := 0.0; lo < 360; lo += resolution {
		f.lon = append(f.lon, float32(lo))
	}
	return f, nil
}

// value is the synthetic field: a per-variable base plus gradients along
// time, latitude and longitude.
func (f fixture) value(name string, step, level, i, j int) float32 {
	return baseValues[name] + float32(step) + float32(level) + float32(i) + 0.5*float32(j)
}

func (f fixture) names() []string {
	if len(f.levels) == 0 {
		return f.variables
	}
	return append(append([]string{}, f.variables...), leveledVariable)
}

func writeFixture(path string, f fixture) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := addVar(cw, "latitude", f.lat, []string{"latitude"}, "degrees_north"); err != nil {
		return err
	}
	if err := addVar(cw, "longitude", f.lon, []string{"longitude"}, "degrees_east"); err != nil {
		return err
	}

	first := int32(f.date.Sub(epoch).Hours())
	times := make([]int32, f.steps)
	for s := range times {
		times[s] = first + int32(s*f.stepHours)
	}
	if err := addVar(cw, "time", times, []string{"time"}, timeUnits); err != nil {
		return err
	}

	for _, name := range f.variables {
		values := make([][][]float32, f.steps)
		for s := range values {
			values[s] = f.grid(name, s, 0)
		}
		if err := addVar(cw, name, values, []string{"time", "latitude", "longitude"}, "1"); err != nil {
			return err
		}
	}

	if len(f.levels) > 0 {
		if err := addVar(cw, "level", f.levels, []string{"level"}, "millibars"); err != nil {
			return err
		}
		values := make([][][][]float32, f.steps)
		for s := range values {
			values[s] = make([][][]float32, len(f.levels))
			for l := range f.levels {
				values[s][l] = f.grid(leveledVariable, s, l)
			}
		}
		if err := addVar(cw, leveledVariable, values, []string{"time", "level", "latitude", "longitude"}, "K"); err != nil {
			return err
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (f fixture) grid(name string, step, level int) [][]float32 {
	grid := make([][]float32, len(f.lat))
	for i := range grid {
		grid[i] = make([]float32, len(f.lon))
		for j := range grid[i] {
			grid[i][j] = f.value(name, step, level, i, j)
		}
	}
	return grid
}

// varAdder is implemented by the netCDF writer.
type varAdder interface {
	AddVar(name string, v api.Variable) error
}

func addVar(cw varAdder, name string, values any, dims []string, units string) error {
	attrs, err := util.NewOrderedMap([]string{"units"}, map[string]any{"units": units})
	if err != nil {
		return err
	}
	if err := cw.AddVar(name, api.Variable{Values: values, Dimensions: dims, Attributes: attrs}); err != nil {
		return fmt.Errorf("add variable %s: %w", name, err)
	}
	return nil
}
