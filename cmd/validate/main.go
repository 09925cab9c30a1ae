// Command validate checks a grid file without touching the document store.
// It reads every message the collector would ingest and verifies shapes,
// coordinates, base dates and pressure levels, so a bad model output can be
// rejected before an ingestion run.
//
// Usage:
//
//	go run ./cmd/validate -file output_results.grib
//	go run ./cmd/validate -file era5.nc -format netcdf -variables u10,v10,t2m
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/forecast-collector/internal/domain"
	"github.com/couchcryptid/forecast-collector/internal/gridfile"
)

// maxErrors caps the detail printed per phase.
const maxErrors = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// report is the outcome of validating one grid file.
type report struct {
	messages  int
	cells     int
	variables map[string]int // cells per short name
	phases    []*phase
}

func (r *report) passed() bool {
	for _, p := range r.phases {
		if !p.passed() {
			return false
		}
	}
	return true
}

func main() {
	file := flag.String("file", "", "grid file to validate")
	format := flag.String("format", "", "grib or netcdf; detected from the file header when empty")
	gribGetData := flag.String("grib-get-data", "grib_get_data", "ecCodes grib_get_data binary")
	variables := flag.String("variables", "u10,v10,t2m,msl,tcwv", "netCDF data variables to read")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	opts := gridfile.Options{
		Format:      *format,
		GribGetData: *gribGetData,
		Variables:   strings.Split(*variables, ","),
	}
	if code := run(*file, opts); code != 0 {
		os.Exit(code)
	}
}

func run(path string, opts gridfile.Options) int {
	sc, err := gridfile.Open(context.Background(), path, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	defer sc.Close()

	fmt.Printf("=== Grid File Validation: %s ===\n\n", path)
	r := check(sc)
	printReport(os.Stdout, r)
	if !r.passed() {
		return 1
	}
	return 0
}

// check reads every message from sc and runs the validation phases.
func check(sc gridfile.Scanner) *report {
	read := &phase{name: "Messages readable"}
	shape := &phase{name: "Grid shapes consistent"}
	dates := &phase{name: "Base dates valid"}
	coords := &phase{name: "Coordinates within range"}
	levels := &phase{name: "Pressure levels positive"}

	r := &report{
		variables: make(map[string]int),
		phases:    []*phase{read, shape, dates, coords, levels},
	}

	for sc.Scan() {
		msg := sc.Message()
		idx := r.messages
		r.messages++
		r.cells += msg.Cells()
		r.variables[msg.ShortName] += msg.Cells()

		if err := msg.Validate(); err != nil {
			shape.errorf("message %d: %v", idx, err)
			continue
		}
		if _, err := domain.ParseDate(msg.BaseDate); err != nil {
			dates.errorf("message %d (%s): %v", idx, msg.ShortName, err)
		}
		checkCoordinates(coords, idx, msg)
		if msg.PressureLevel != nil && *msg.PressureLevel <= 0 {
			levels.errorf("message %d (%s): pressure level %d", idx, msg.ShortName, *msg.PressureLevel)
		}
	}
	if err := sc.Err(); err != nil {
		read.errorf("after %d messages: %v", r.messages, err)
	}
	return r
}

func checkCoordinates(p *phase, idx int, msg domain.GridMessage) {
	for i := range msg.Values {
		if _, err := domain.Normalize(msg.Longitudes[i], msg.Latitudes[i]); err != nil {
			p.errorf("message %d (%s) cell %d: %v", idx, msg.ShortName, i, err)
		}
	}
}

func printReport(w io.Writer, r *report) {
	for _, p := range r.phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Messages: %d, cells: %d\n", r.messages, r.cells)

	names := make([]string, 0, len(r.variables))
	for name := range r.variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %d cells\n", name, r.variables[name])
	}

	for _, p := range r.phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Fprintf(w, "  ... and %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}
