package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCoordinate reports a longitude outside [0, 360] or a NaN coordinate.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrInvalidDate reports a date string that is not a valid YYYYMMDD calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrUnknownModel reports a forecast model name with no registered parameters.
	ErrUnknownModel = errors.New("unknown model")

	// ErrModelOutputMissing reports that the model runner returned without
	// writing its output file.
	ErrModelOutputMissing = errors.New("model output missing")

	// ErrFileOpen reports a grid file that is missing, truncated or not in a
	// recognised format.
	ErrFileOpen = errors.New("cannot open grid file")

	// ErrShapeMismatch reports a grid message whose latitude, longitude and
	// value arrays differ in size.
	ErrShapeMismatch = errors.New("grid shape mismatch")
)

// Ingestion stages reported by IngestionError.
const (
	StageOpen    = "open"
	StageRead    = "read"
	StageBuild   = "build"
	StageWrite   = "write"
	StageDiscard = "discard"
)

// IngestionError wraps the first unrecoverable failure of an ingestion run.
type IngestionError struct {
	Stage   string
	Message int // zero-based grid message index, -1 when not tied to a message
	Err     error
}

func (e *IngestionError) Error() string {
	if e.Message < 0 {
		return fmt.Sprintf("ingestion failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("ingestion failed at %s of message %d: %v", e.Stage, e.Message, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
