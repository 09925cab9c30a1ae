package domain

import (
	"fmt"
	"time"
)

// GridMessage is one slice of a gridded file: a single variable at one
// forecast lead time and, optionally, one pressure level. The three grid
// slices are flattened row-major and must have equal length.
type GridMessage struct {
	ShortName      string
	BaseDate       string // YYYYMMDD
	ForecastOffset int    // hours from BaseDate
	PressureLevel  *int   // hPa, nil for surface variables

	Latitudes  []float64
	Longitudes []float64
	Values     []float64
}

// Cells returns the number of grid cells in the message.
func (m GridMessage) Cells() int {
	return len(m.Values)
}

// Validate checks that the latitude, longitude and value slices line up.
func (m GridMessage) Validate() error {
	if len(m.Latitudes) != len(m.Values) || len(m.Longitudes) != len(m.Values) {
		return fmt.Errorf("%w: %s has %d latitudes, %d longitudes, %d values",
			ErrShapeMismatch, m.ShortName, len(m.Latitudes), len(m.Longitudes), len(m.Values))
	}
	return nil
}

// GeoPoint is a WGS-84 position in storage convention.
type GeoPoint struct {
	Longitude float64 // [-180, 180]
	Latitude  float64 // [-90, 90]
}

// WeatherRecord is the document stored for one grid cell of one message.
type WeatherRecord struct {
	Timestamp      time.Time
	ForecastOffset int
	PressureLevel  *int
	Location       GeoPoint
	Variables      map[string]float64

	// Batch groups the records written for one message of one run so a
	// failed batch can be discarded as a unit.
	Batch string
}
