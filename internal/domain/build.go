package domain

import (
	"fmt"
	"time"
)

// BuildRecord creates the document for one cell of msg. It has no side
// effects and is safe for concurrent use.
func BuildRecord(msg GridMessage, latitude, longitude, value float64) (WeatherRecord, error) {
	ts, err := ParseDate(msg.BaseDate)
	if err != nil {
		return WeatherRecord{}, err
	}
	return buildRecord(msg, ts, latitude, longitude, value)
}

// BuildRecords creates one record per cell of msg, in cell order. Any
// invalid cell fails the whole message so nothing partial reaches storage.
func BuildRecords(msg GridMessage) ([]WeatherRecord, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	ts, err := ParseDate(msg.BaseDate)
	if err != nil {
		return nil, err
	}

	records := make([]WeatherRecord, 0, msg.Cells())
	for i, value := range msg.Values {
		rec, err := buildRecord(msg, ts, msg.Latitudes[i], msg.Longitudes[i], value)
		if err != nil {
			return nil, fmt.Errorf("cell %d of %s: %w", i, msg.ShortName, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func buildRecord(msg GridMessage, ts time.Time, latitude, longitude, value float64) (WeatherRecord, error) {
	loc, err := Normalize(longitude, latitude)
	if err != nil {
		return WeatherRecord{}, err
	}

	var level *int
	if msg.PressureLevel != nil {
		l := *msg.PressureLevel
		level = &l
	}

	return WeatherRecord{
		Timestamp:      ts,
		ForecastOffset: msg.ForecastOffset,
		PressureLevel:  level,
		Location:       loc,
		Variables:      map[string]float64{msg.ShortName: value},
	}, nil
}
