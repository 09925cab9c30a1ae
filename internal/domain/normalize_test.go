package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Boundaries(t *testing.T) {
	cases := []struct {
		name    string
		lon     float64
		lat     float64
		wantLon float64
		wantLat float64
	}{
		// Floored modulo: 0 stays at Greenwich and 180 wraps to -180.
		{name: "prime meridian", lon: 0, lat: 0, wantLon: 0, wantLat: 0},
		{name: "antimeridian wraps west", lon: 180, lat: 0, wantLon: -180, wantLat: 0},
		{name: "full turn", lon: 360, lat: 45, wantLon: 0, wantLat: 45},
		{name: "eastern hemisphere", lon: 90, lat: 10, wantLon: 90, wantLat: 10},
		{name: "western hemisphere", lon: 270, lat: -10, wantLon: -90, wantLat: -10},
		{name: "just past antimeridian", lon: 180.25, lat: 0, wantLon: -179.75, wantLat: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := Normalize(tc.lon, tc.lat)
			require.NoError(t, err)
			assert.InDelta(t, tc.wantLon, p.Longitude, 1e-9)
			assert.InDelta(t, tc.wantLat, p.Latitude, 1e-9)
		})
	}
}

func TestNormalize_ClampsLatitude(t *testing.T) {
	p, err := Normalize(10, 200)
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Longitude: 10, Latitude: 90}, p)

	p, err = Normalize(10, -200)
	require.NoError(t, err)
	assert.Equal(t, GeoPoint{Longitude: 10, Latitude: -90}, p)

	p, err = Normalize(10, math.Inf(1))
	require.NoError(t, err)
	assert.Equal(t, 90.0, p.Latitude)
}

func TestNormalize_RejectsLongitudeOutOfRange(t *testing.T) {
	for _, lon := range []float64{-0.001, -180, 360.5, 400, math.NaN(), math.Inf(1)} {
		_, err := Normalize(lon, 0)
		require.Error(t, err, "lon=%v", lon)
		assert.ErrorIs(t, err, ErrInvalidCoordinate)
	}
}

func TestNormalize_RejectsNaNLatitude(t *testing.T) {
	_, err := Normalize(10, math.NaN())
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestNormalize_RangeSweep(t *testing.T) {
	for lon := 0.0; lon <= 360; lon += 0.25 {
		for _, lat := range []float64{-1000, -90.0001, -45, 0, 89.9999, 90.5, 1e9} {
			p, err := Normalize(lon, lat)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, p.Longitude, -180.0)
			assert.LessOrEqual(t, p.Longitude, 180.0)
			assert.GreaterOrEqual(t, p.Latitude, -90.0)
			assert.LessOrEqual(t, p.Latitude, 90.0)
		}
	}
}
