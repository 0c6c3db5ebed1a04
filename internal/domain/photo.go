package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhotoCategory classifies an evidentiary photo.
type PhotoCategory string

// List of photo categories
const (
	PhotoPickupFront      PhotoCategory = "pickup_front"
	PhotoPickupBack       PhotoCategory = "pickup_back"
	PhotoPickupLeft       PhotoCategory = "pickup_left"
	PhotoPickupRight      PhotoCategory = "pickup_right"
	PhotoDeliveryFront    PhotoCategory = "delivery_front"
	PhotoDeliveryBack     PhotoCategory = "delivery_back"
	PhotoDeliveryLeft     PhotoCategory = "delivery_left"
	PhotoDeliveryRight    PhotoCategory = "delivery_right"
	PhotoSignature        PhotoCategory = "signature"
	PhotoDamage           PhotoCategory = "damage"
	PhotoSpecialCondition PhotoCategory = "special_condition"
)

var allowedCategories = [...]PhotoCategory{
	PhotoPickupFront, PhotoPickupBack, PhotoPickupLeft, PhotoPickupRight,
	PhotoDeliveryFront, PhotoDeliveryBack, PhotoDeliveryLeft, PhotoDeliveryRight,
	PhotoSignature, PhotoDamage, PhotoSpecialCondition,
}

var (
	pickupSet   = []PhotoCategory{PhotoPickupFront, PhotoPickupBack, PhotoPickupLeft, PhotoPickupRight}
	deliverySet = []PhotoCategory{PhotoDeliveryFront, PhotoDeliveryBack, PhotoDeliveryLeft, PhotoDeliveryRight}
)

// Valid checks if the PhotoCategory is valid
func (c PhotoCategory) Valid() bool {
	for _, v := range allowedCategories {
		if c == v {
			return true
		}
	}
	return false
}

// Photo is an evidentiary image tied to a delivery.
type Photo struct {
	ID               uuid.UUID
	DeliveryID       int64
	DriverID         int64
	Category         PhotoCategory
	URL              string
	Caption          string
	TakenAt          time.Time
	Location         *Location
	OriginalSize     int64
	OptimizedSize    int64
	CompressionRatio float64
}

// RequiredCategories returns the photo categories a phase requires.
func RequiredCategories(phase DeliveryStatus) []PhotoCategory {
	switch phase {
	case StatusFactoryPickupInProgress, StatusFactoryPickupCompleted:
		return append([]PhotoCategory(nil), pickupSet...)
	case StatusDeliveryInProgress:
		return append([]PhotoCategory(nil), deliverySet...)
	case StatusDelivered:
		return append(append([]PhotoCategory(nil), deliverySet...), PhotoSignature)
	case StatusScheduled, StatusInTransit, StatusDelayed:
		return nil
	default:
		return nil
	}
}

// Categories returns the distinct categories present in photos.
func Categories(photos []Photo) []PhotoCategory {
	seen := make(map[PhotoCategory]struct{}, len(photos))
	out := make([]PhotoCategory, 0, len(photos))
	for _, p := range photos {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

// MissingCategories returns the members of required absent from present, in required order.
func MissingCategories(required, present []PhotoCategory) []PhotoCategory {
	have := make(map[PhotoCategory]struct{}, len(present))
	for _, c := range present {
		have[c] = struct{}{}
	}
	missing := make([]PhotoCategory, 0, len(required))
	for _, c := range required {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// MissingRequiredCategories returns the categories phase requires that present lacks.
func MissingRequiredCategories(phase DeliveryStatus, present []PhotoCategory) []PhotoCategory {
	return MissingCategories(RequiredCategories(phase), present)
}

// GateCategories returns the photos that must exist before a delivery may
// move from current to target. Every phase left behind must have its set,
// and the completion phases also need theirs on entry.
func GateCategories(current, target DeliveryStatus) []PhotoCategory {
	need := make(map[PhotoCategory]struct{})
	add := func(phase DeliveryStatus) {
		for _, c := range RequiredCategories(phase) {
			need[c] = struct{}{}
		}
	}
	from, to := PhaseIndex(current), PhaseIndex(target)
	if from >= 0 && to > from {
		for i := from; i < to; i++ {
			add(phaseOrder[i])
		}
	}
	switch target {
	case StatusFactoryPickupCompleted, StatusDelivered:
		add(target)
	}
	out := make([]PhotoCategory, 0, len(need))
	for _, c := range allowedCategories {
		if _, ok := need[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
