package domain

import (
	"fmt"
	"math"
)

// Normalize converts a model coordinate (longitude in [0, 360]) into storage
// convention. Out-of-range longitudes are rejected; latitudes are clamped.
func Normalize(longitude, latitude float64) (GeoPoint, error) {
	if math.IsNaN(longitude) || longitude < 0 || longitude > 360 {
		return GeoPoint{}, fmt.Errorf("%w: longitude %v outside [0, 360]", ErrInvalidCoordinate, longitude)
	}
	if math.IsNaN(latitude) {
		return GeoPoint{}, fmt.Errorf("%w: latitude is NaN", ErrInvalidCoordinate)
	}

	return GeoPoint{
		Longitude: math.Mod(longitude+180, 360) - 180,
		Latitude:  math.Max(-90, math.Min(90, latitude)),
	}, nil
}
