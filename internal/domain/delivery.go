package domain

import "time"

// Location is a device geolocation fix. Accuracy is in meters; zero means not reported.
type Location struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

// Valid checks coordinate ranges.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 &&
		l.Longitude >= -180 && l.Longitude <= 180 &&
		l.Accuracy >= 0
}

// MeetsAccuracy reports whether the fix carries an accuracy within threshold meters.
func (l Location) MeetsAccuracy(threshold float64) bool {
	return l.Accuracy > 0 && l.Accuracy <= threshold
}

// Delivery is one mobile-home shipment.
type Delivery struct {
	ID                  int64
	Number              string
	Status              DeliveryStatus
	DelayedFrom         *DeliveryStatus
	CustomerName        string
	CustomerPhone       string
	PickupAddress       string
	DeliveryAddress     string
	SpecialInstructions string
	CompletionNotes     string
	CompletedAt         *time.Time
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EffectiveStatus is the status the delivery will return to once a delay is cleared.
func (d Delivery) EffectiveStatus() DeliveryStatus {
	if d.Status == StatusDelayed && d.DelayedFrom != nil {
		return *d.DelayedFrom
	}
	return d.Status
}

// Assignment binds a driver to a delivery for a role.
type Assignment struct {
	ID              int64
	DeliveryID      int64
	DriverID        int64
	Role            AssignmentRole
	Status          AssignmentStatus
	AssignedAt      time.Time
	AcceptedAt      *time.Time
	DeclinedAt      *time.Time
	DeclineReason   string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	StartingMileage *float64
	EndingMileage   *float64
	PhaseTimes      map[DeliveryStatus]time.Time
}

// StatusHistoryEntry is an append-only audit record of a status change.
type StatusHistoryEntry struct {
	ID         int64
	DeliveryID int64
	FromStatus DeliveryStatus
	Status     DeliveryStatus
	ActorID    int64
	Note       string
	Location   *Location
	CreatedAt  time.Time
}
