// Package gridfile reads gridded forecast files and yields one
// domain.GridMessage per message, in file order.
package gridfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/forecast-collector/internal/domain"
)

// Scanner iterates over the messages of a grid file. It is not safe for
// concurrent use.
//
//	for s.Scan() {
//		msg := s.Message()
//	}
//	if err := s.Err(); err != nil { ... }
type Scanner interface {
	Scan() bool
	Message() domain.GridMessage
	Err() error
	Close() error
}

// Supported formats.
const (
	FormatGRIB   = "grib"
	FormatNetCDF = "netcdf"
)

// Options configures Open.
type Options struct {
	// Format forces a reader; empty detects it from the file header.
	Format string

	// GribGetData is the ecCodes grib_get_data binary used for GRIB files.
	GribGetData string

	// Variables lists the netCDF data variables to read.
	Variables []string
}

var (
	gribMagic  = []byte("GRIB")
	cdfMagic   = []byte("CDF")
	hdf5Magic  = []byte("\x89HDF\r\n\x1a\n")
	magicBytes = len(hdf5Magic)
)

// Open opens the grid file at path. Missing, empty and unrecognised files
// fail with domain.ErrFileOpen.
func Open(ctx context.Context, path string, opts Options) (Scanner, error) {
	detected, err := detectFormat(path)
	if err != nil {
		return nil, err
	}
	if opts.Format != "" && opts.Format != detected {
		return nil, fmt.Errorf("%w: %s is %s, not %s", domain.ErrFileOpen, path, detected, opts.Format)
	}

	switch detected {
	case FormatGRIB:
		bin := opts.GribGetData
		if bin == "" {
			bin = "grib_get_data"
		}
		return openGRIB(ctx, bin, path)
	default:
		return openNetCDF(path, opts.Variables)
	}
}

func detectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrFileOpen, err)
	}
	defer f.Close()

	head := make([]byte, magicBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return "", fmt.Errorf("%w: %s is empty", domain.ErrFileOpen, path)
		}
		return "", fmt.Errorf("%w: %v", domain.ErrFileOpen, err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, gribMagic):
		return FormatGRIB, nil
	case bytes.HasPrefix(head, cdfMagic), bytes.HasPrefix(head, hdf5Magic):
		return FormatNetCDF, nil
	default:
		return "", fmt.Errorf("%w: %s is not a GRIB or netCDF file", domain.ErrFileOpen, path)
	}
}
