package gridfile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/couchcryptid/forecast-collector/internal/domain"
)

var (
	timeNames  = []string{"time", "valid_time"}
	levelNames = []string{"level", "pressure_level", "isobaricInhPa"}
)

// NetCDFScanner reads ERA5-style netCDF files: data variables shaped
// (time, latitude, longitude) or (time, level, latitude, longitude). It emits
// one message per variable, time step and level.
type NetCDFScanner struct {
	nc        api.Group
	path      string
	variables []string
	lat       []float64
	lon       []float64
	times     []time.Time
	levels    []int
	baseDate  time.Time

	varIdx  int
	timeIdx int
	current api.VarGetter
	slice   [][][]float64 // [level][lat][lon] for the current time step
	leveled bool          // the current variable has a level dimension
	levIdx  int

	msg domain.GridMessage
	err error
}

func openNetCDF(path string, variables []string) (*NetCDFScanner, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("%w: %s: no netCDF variables configured", domain.ErrFileOpen, path)
	}
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileOpen, path, err)
	}
	s := &NetCDFScanner{nc: nc, path: path, variables: variables}
	if err := s.readAxes(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileOpen, path, err)
	}
	return s, nil
}

func (s *NetCDFScanner) readAxes() error {
	var err error
	if s.lat, err = axisValues(s.nc, "latitude"); err != nil {
		return err
	}
	if s.lon, err = axisValues(s.nc, "longitude"); err != nil {
		return err
	}

	name, tvg, err := firstVar(s.nc, timeNames)
	if err != nil {
		return err
	}
	raw, err := axisValues(s.nc, name)
	if err != nil {
		return err
	}
	units, _ := stringAttr(tvg.Attributes(), "units")
	unit, ref, err := parseTimeUnits(units)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.times = make([]time.Time, len(raw))
	for i, v := range raw {
		s.times[i] = ref.Add(time.Duration(v * float64(unit)))
	}
	if len(s.times) == 0 {
		return fmt.Errorf("%s axis is empty", name)
	}
	first := s.times[0]
	s.baseDate = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)

	if lname, _, err := firstVar(s.nc, levelNames); err == nil {
		lv, err := axisValues(s.nc, lname)
		if err != nil {
			return err
		}
		s.levels = make([]int, len(lv))
		for i, v := range lv {
			s.levels[i] = int(math.Round(v))
		}
	}
	return nil
}

// Scan advances to the next (variable, time, level) message.
func (s *NetCDFScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for {
		if s.slice != nil && s.levIdx < len(s.slice) {
			s.emit()
			return true
		}
		s.slice = nil
		if !s.loadNextSlice() {
			return false
		}
	}
}

// loadNextSlice reads the next time step of the current variable, moving on
// to the next variable when the time axis is exhausted.
func (s *NetCDFScanner) loadNextSlice() bool {
	for s.varIdx < len(s.variables) {
		if s.current == nil {
			vg, err := s.nc.GetVarGetter(s.variables[s.varIdx])
			if err != nil {
				s.err = fmt.Errorf("%w: %s: variable %s: %v", domain.ErrFileOpen, s.path, s.variables[s.varIdx], err)
				return false
			}
			s.current = vg
			s.timeIdx = 0
		}
		if s.timeIdx >= len(s.times) {
			s.current = nil
			s.varIdx++
			continue
		}

		raw, err := s.current.GetSlice(int64(s.timeIdx), int64(s.timeIdx)+1)
		if err != nil {
			s.err = fmt.Errorf("%w: %s: read %s[%d]: %v", domain.ErrFileOpen, s.path, s.variables[s.varIdx], s.timeIdx, err)
			return false
		}
		slice, leveled, err := toLevels(raw, newUnpacker(s.current.Attributes()))
		if err != nil {
			s.err = fmt.Errorf("%s: %s: %w", s.path, s.variables[s.varIdx], err)
			return false
		}
		if err := s.checkShape(slice); err != nil {
			s.err = err
			return false
		}
		if leveled && len(slice) != len(s.levels) {
			s.err = fmt.Errorf("%w: %s has %d levels, level axis has %d", domain.ErrShapeMismatch, s.variables[s.varIdx], len(slice), len(s.levels))
			return false
		}
		s.slice = slice
		s.leveled = leveled
		s.levIdx = 0
		s.timeIdx++
		return true
	}
	return false
}

func (s *NetCDFScanner) checkShape(slice [][][]float64) error {
	for _, grid := range slice {
		if len(grid) != len(s.lat) {
			return fmt.Errorf("%w: %s has %d rows, latitude axis has %d", domain.ErrShapeMismatch, s.variables[s.varIdx], len(grid), len(s.lat))
		}
		for _, row := range grid {
			if len(row) != len(s.lon) {
				return fmt.Errorf("%w: %s has %d columns, longitude axis has %d", domain.ErrShapeMismatch, s.variables[s.varIdx], len(row), len(s.lon))
			}
		}
	}
	return nil
}

func (s *NetCDFScanner) emit() {
	grid := s.slice[s.levIdx]
	ts := s.times[s.timeIdx-1]

	msg := domain.GridMessage{
		ShortName:      s.variables[s.varIdx],
		BaseDate:       domain.FormatDate(s.baseDate),
		ForecastOffset: int(ts.Sub(s.baseDate) / time.Hour),
	}
	if s.leveled {
		level := s.levels[s.levIdx]
		msg.PressureLevel = &level
	}

	n := len(s.lat) * len(s.lon)
	msg.Latitudes = make([]float64, 0, n)
	msg.Longitudes = make([]float64, 0, n)
	msg.Values = make([]float64, 0, n)
	for i, la := range s.lat {
		for j, lo := range s.lon {
			v := grid[i][j]
			if math.IsNaN(v) {
				continue
			}
			msg.Latitudes = append(msg.Latitudes, la)
			msg.Longitudes = append(msg.Longitudes, lo)
			msg.Values = append(msg.Values, v)
		}
	}

	s.msg = msg
	s.levIdx++
}

// Message returns the message read by the last successful Scan.
func (s *NetCDFScanner) Message() domain.GridMessage {
	return s.msg
}

// Err returns the first error encountered while scanning.
func (s *NetCDFScanner) Err() error {
	return s.err
}

// Close closes the underlying file.
func (s *NetCDFScanner) Close() error {
	s.nc.Close()
	return nil
}

func firstVar(nc api.Group, names []string) (string, api.VarGetter, error) {
	for _, n := range names {
		if vg, err := nc.GetVarGetter(n); err == nil {
			return n, vg, nil
		}
	}
	return "", nil, fmt.Errorf("none of %v found", names)
}

func axisValues(nc api.Group, name string) ([]float64, error) {
	vg, err := nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("axis %s: %w", name, err)
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("axis %s: %w", name, err)
	}
	out, ok := toFloat1(v)
	if !ok {
		return nil, fmt.Errorf("axis %s: unsupported type %T", name, v)
	}
	return out, nil
}

func toFloat1(v any) ([]float64, bool) {
	switch x := v.(type) {
	case []float64:
		return x, true
	case []float32:
		return convert(x), true
	case []int64:
		return convert(x), true
	case []int32:
		return convert(x), true
	case []int16:
		return convert(x), true
	}
	return nil, false
}

func convert[T int16 | int32 | int64 | float32 | float64](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// toLevels turns a one-step slice of a 3-D or 4-D variable into [level][lat][lon],
// unpacking each value. The flag reports whether the variable has a level axis.
func toLevels(raw any, u unpacker) ([][][]float64, bool, error) {
	switch x := raw.(type) {
	case [][][]int16:
		return fromSingle(x, u)
	case [][][]int32:
		return fromSingle(x, u)
	case [][][]float32:
		return fromSingle(x, u)
	case [][][]float64:
		return fromSingle(x, u)
	case [][][][]int16:
		return fromLeveled(x, u)
	case [][][][]int32:
		return fromLeveled(x, u)
	case [][][][]float32:
		return fromLeveled(x, u)
	case [][][][]float64:
		return fromLeveled(x, u)
	}
	return nil, false, fmt.Errorf("%w: unsupported variable layout %T", domain.ErrShapeMismatch, raw)
}

func fromSingle[T int16 | int32 | float32 | float64](x [][][]T, u unpacker) ([][][]float64, bool, error) {
	if len(x) != 1 {
		return nil, false, fmt.Errorf("%w: expected one time step, got %d", domain.ErrShapeMismatch, len(x))
	}
	return [][][]float64{unpack2(x[0], u)}, false, nil
}

func fromLeveled[T int16 | int32 | float32 | float64](x [][][][]T, u unpacker) ([][][]float64, bool, error) {
	if len(x) != 1 {
		return nil, true, fmt.Errorf("%w: expected one time step, got %d", domain.ErrShapeMismatch, len(x))
	}
	return unpack3(x[0], u), true, nil
}

func unpack3[T int16 | int32 | float32 | float64](in [][][]T, u unpacker) [][][]float64 {
	out := make([][][]float64, len(in))
	for i, grid := range in {
		out[i] = unpack2(grid, u)
	}
	return out
}

func unpack2[T int16 | int32 | float32 | float64](in [][]T, u unpacker) [][]float64 {
	out := make([][]float64, len(in))
	for i, row := range in {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = u.apply(float64(v))
		}
	}
	return out
}

// unpacker applies CF packing attributes. Fill values become NaN.
type unpacker struct {
	scale   float64
	offset  float64
	fill    float64
	hasFill bool
}

func newUnpacker(attrs api.AttributeMap) unpacker {
	u := unpacker{scale: 1}
	if attrs == nil {
		return u
	}
	if v, ok := floatAttr(attrs, "scale_factor"); ok {
		u.scale = v
	}
	if v, ok := floatAttr(attrs, "add_offset"); ok {
		u.offset = v
	}
	if v, ok := floatAttr(attrs, "_FillValue"); ok {
		u.fill, u.hasFill = v, true
	} else if v, ok := floatAttr(attrs, "missing_value"); ok {
		u.fill, u.hasFill = v, true
	}
	return u
}

func (u unpacker) apply(raw float64) float64 {
	if u.hasFill && raw == u.fill {
		return math.NaN()
	}
	return raw*u.scale + u.offset
}

func floatAttr(attrs api.AttributeMap, key string) (float64, bool) {
	v, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case []float64:
		if len(x) > 0 {
			return x[0], true
		}
	case []float32:
		if len(x) > 0 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

func stringAttr(attrs api.AttributeMap, key string) (string, bool) {
	if attrs == nil {
		return "", false
	}
	v, ok := attrs.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// parseTimeUnits parses CF time units such as "hours since 1900-01-01 00:00:00.0".
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("unsupported time units %q", units)
	}

	var unit time.Duration
	switch strings.ToLower(parts[0]) {
	case "seconds", "second", "s":
		unit = time.Second
	case "minutes", "minute":
		unit = time.Minute
	case "hours", "hour", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}

	ref := strings.Replace(strings.TrimSpace(parts[1]), "T", " ", 1)
	if i := strings.IndexByte(ref, '.'); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSuffix(ref, "Z")
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return unit, t, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unsupported time reference %q", parts[1])
}
