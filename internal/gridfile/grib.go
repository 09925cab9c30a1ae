package gridfile

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/couchcryptid/forecast-collector/internal/domain"
)

// gribKeys are printed by grib_get_data after latitude, longitude and value.
var gribKeys = []string{"shortName", "dataDate", "forecastTime", "typeOfLevel", "level"}

const (
	gribMissing       = "missing"
	gribPressureLevel = "isobaricInhPa"
	gribFields        = 3 + 5 // lat lon value + gribKeys
)

// GRIBScanner streams messages out of ecCodes' grib_get_data. Each message
// in the tool's output starts with a "Latitude ..." header line followed by
// one row per grid cell.
type GRIBScanner struct {
	path   string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	lines  *bufio.Scanner
	stderr bytes.Buffer

	inMessage bool // a header has been consumed for the next message
	done      bool
	waited    bool
	msg       domain.GridMessage
	err       error
}

func openGRIB(ctx context.Context, bin, path string) (*GRIBScanner, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, bin,
		"-m", gribMissing,
		"-p", strings.Join(gribKeys, ","),
		path,
	)
	s := &GRIBScanner{path: path, cmd: cmd, cancel: cancel}
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", domain.ErrFileOpen, err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: start %s: %v", domain.ErrFileOpen, bin, err)
	}

	s.lines = bufio.NewScanner(stdout)
	s.lines.Buffer(make([]byte, 64*1024), 1024*1024)
	return s, nil
}

// Scan advances to the next message.
func (s *GRIBScanner) Scan() bool {
	if s.done || s.err != nil {
		return false
	}

	var msg domain.GridMessage
	started := s.inMessage
	hasData := false

	for s.lines.Scan() {
		line := strings.TrimSpace(s.lines.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Latitude") {
			if hasData {
				s.inMessage = true
				s.msg = msg
				return true
			}
			started = true
			continue
		}
		if !started {
			s.err = fmt.Errorf("%w: %s: unexpected output before first header: %q", domain.ErrFileOpen, s.path, line)
			return false
		}
		ok, err := appendRow(&msg, line, hasData)
		if err != nil {
			s.err = fmt.Errorf("%w: %s: %v", domain.ErrFileOpen, s.path, err)
			return false
		}
		hasData = hasData || ok
	}

	s.done = true
	if err := s.lines.Err(); err != nil {
		s.err = fmt.Errorf("%w: %s: read output: %v", domain.ErrFileOpen, s.path, err)
		return false
	}
	if err := s.wait(); err != nil {
		s.err = fmt.Errorf("%w: %s: %v: %s", domain.ErrFileOpen, s.path, err, strings.TrimSpace(s.stderr.String()))
		return false
	}
	if hasData {
		s.msg = msg
		return true
	}
	return false
}

// Message returns the message read by the last successful Scan.
func (s *GRIBScanner) Message() domain.GridMessage {
	return s.msg
}

// Err returns the first error encountered while scanning.
func (s *GRIBScanner) Err() error {
	return s.err
}

// Close stops grib_get_data if it is still running.
func (s *GRIBScanner) Close() error {
	s.cancel()
	if !s.waited {
		_ = s.wait()
	}
	return nil
}

func (s *GRIBScanner) wait() error {
	s.waited = true
	return s.cmd.Wait()
}

// appendRow parses one grib_get_data row into msg. The first row of a message
// sets its metadata. Missing cells are skipped and reported as false.
func appendRow(msg *domain.GridMessage, line string, hasMeta bool) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) < gribFields {
		return false, fmt.Errorf("short row %q: want %d fields", line, gribFields)
	}
	if fields[2] == gribMissing {
		return false, nil
	}

	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return false, fmt.Errorf("latitude %q: %w", fields[0], err)
	}
	lon, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return false, fmt.Errorf("longitude %q: %w", fields[1], err)
	}
	value, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return false, fmt.Errorf("value %q: %w", fields[2], err)
	}

	if !hasMeta {
		if err := setMeta(msg, fields[3:]); err != nil {
			return false, err
		}
	}

	msg.Latitudes = append(msg.Latitudes, lat)
	msg.Longitudes = append(msg.Longitudes, lon)
	msg.Values = append(msg.Values, value)
	return true, nil
}

func setMeta(msg *domain.GridMessage, keys []string) error {
	offset, err := strconv.Atoi(keys[2])
	if err != nil {
		return fmt.Errorf("forecastTime %q: %w", keys[2], err)
	}
	msg.ShortName = keys[0]
	msg.BaseDate = keys[1]
	msg.ForecastOffset = offset
	msg.PressureLevel = nil

	if keys[3] == gribPressureLevel {
		level, err := strconv.Atoi(keys[4])
		if err != nil {
			return fmt.Errorf("level %q: %w", keys[4], err)
		}
		msg.PressureLevel = &level
	}
	return nil
}
