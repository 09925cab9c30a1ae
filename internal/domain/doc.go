// Package domain models forecast grid data and the point-wise weather
// documents derived from it.
//
// # Grid Messages
//
// A forecast model writes a gridded file (GRIB or netCDF). The file is a
// sequence of messages; each message holds one variable at one forecast lead
// time and, for upper-air variables, one pressure level. Readers in
// internal/gridfile flatten each message into three parallel slices
// (latitudes, longitudes, values) of equal length.
//
// Message order is whatever the file exposes. It is not chronological.
//
// # Coordinate Conventions
//
// Models emit longitudes in [0, 360]. Documents store GeoJSON points with
// longitudes in [-180, 180] and latitudes in [-90, 90]:
//
//	lon' = mod(lon + 180, 360) - 180
//	lat' = clamp(lat, -90, 90)
//
// A longitude outside [0, 360] is rejected with [ErrInvalidCoordinate].
// Latitudes are clamped silently: small overshoots come from upstream
// interpolation. A NaN latitude cannot be clamped and is rejected with
// [ErrInvalidCoordinate] too; the geospatial index would refuse it anyway.
//
// # Records
//
// One [WeatherRecord] is built per (message, cell). Records sharing a
// location, time and level are never merged, so a point with five variables
// produces five documents.
//
// # Dates
//
// Base dates and retention cutoffs use the 8-digit YYYYMMDD form and are
// interpreted as midnight UTC. See [ParseDate].
package domain
