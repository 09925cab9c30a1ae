package mongo

import (
	"time"

	"github.com/couchcryptid/forecast-collector/internal/domain"
)

// document is the stored shape of a domain.WeatherRecord.
type document struct {
	Timestamp     time.Time          `bson:"timestamp"`
	ForecastTime  int                `bson:"forecastTime"`
	PressureLevel *int               `bson:"pressureLevel,omitempty"`
	Location      geoJSONPoint       `bson:"location"`
	Variables     map[string]float64 `bson:"variables"`
	Batch         string             `bson:"batch,omitempty"`
}

// geoJSONPoint is a GeoJSON Point; coordinates are [longitude, latitude].
type geoJSONPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

func toDocument(rec domain.WeatherRecord) document {
	return document{
		Timestamp:     rec.Timestamp,
		ForecastTime:  rec.ForecastOffset,
		PressureLevel: rec.PressureLevel,
		Location: geoJSONPoint{
			Type:        "Point",
			Coordinates: []float64{rec.Location.Longitude, rec.Location.Latitude},
		},
		Variables: rec.Variables,
		Batch:     rec.Batch,
	}
}

func fromDocument(doc document) domain.WeatherRecord {
	rec := domain.WeatherRecord{
		Timestamp:      doc.Timestamp.UTC(),
		ForecastOffset: doc.ForecastTime,
		PressureLevel:  doc.PressureLevel,
		Variables:      doc.Variables,
		Batch:          doc.Batch,
	}
	if len(doc.Location.Coordinates) == 2 {
		rec.Location = domain.GeoPoint{
			Longitude: doc.Location.Coordinates[0],
			Latitude:  doc.Location.Coordinates[1],
		}
	}
	return rec
}
