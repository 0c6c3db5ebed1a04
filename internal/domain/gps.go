package domain

import (
	"time"

	"github.com/google/uuid"
)

// GPSPoint is one recorded fix. ID is generated on the device.
type GPSPoint struct {
	ID         uuid.UUID
	DeliveryID int64
	DriverID   int64
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	Speed      *float64
	Heading    *float64
	Battery    *float64
	RecordedAt time.Time
}

// Location returns the point as a Location.
func (p GPSPoint) Location() Location {
	return Location{Latitude: p.Latitude, Longitude: p.Longitude, Accuracy: p.Accuracy}
}

// Valid checks coordinate and accuracy ranges.
func (p GPSPoint) Valid() bool {
	if p.ID == uuid.Nil || p.RecordedAt.IsZero() {
		return false
	}
	if p.Battery != nil && (*p.Battery < 0 || *p.Battery > 100) {
		return false
	}
	return p.Location().Valid()
}

// MaxGPSBatchSize bounds the number of points in one sync request.
const MaxGPSBatchSize = 1000

// GPSBatch is a set of points synced together with an explicit time window.
type GPSBatch struct {
	DeliveryID int64
	DriverID   int64
	StartedAt  time.Time
	EndedAt    time.Time
	Points     []GPSPoint
}
