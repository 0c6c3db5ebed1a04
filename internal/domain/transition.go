package domain

import (
	"fmt"
	"strings"

	"mobile-home-delivery/internal/apperr"
)

// MaxTransitionAccuracy is the default accuracy bound in meters for site-bound transitions.
const MaxTransitionAccuracy = 50.0

// RejectReason names why a transition was refused.
type RejectReason string

// List of rejection reasons
const (
	ReasonInsufficientGPSAccuracy RejectReason = "insufficient_gps_accuracy"
	ReasonMissingRequiredPhotos   RejectReason = "missing_required_photos"
	ReasonNoActiveAssignment      RejectReason = "no_active_assignment"
	ReasonInvalidTransition       RejectReason = "invalid_transition"
)

// TransitionError is a refused status change. It matches apperr.ErrRejected.
type TransitionError struct {
	Reason   RejectReason
	From     DeliveryStatus
	To       DeliveryStatus
	Current  int
	Required int
	Missing  []PhotoCategory
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("transition %s -> %s rejected: %s", e.From, e.To, e.Reason)
	if e.Reason == ReasonMissingRequiredPhotos {
		names := make([]string, len(e.Missing))
		for i, c := range e.Missing {
			names[i] = string(c)
		}
		msg += fmt.Sprintf(" (%d/%d, missing %s)", e.Current, e.Required, strings.Join(names, ","))
	}
	return msg
}

// Unwrap lets errors.Is match apperr.ErrRejected.
func (e *TransitionError) Unwrap() error {
	return apperr.ErrRejected
}

// CanTransition reports whether a driver may move a delivery from current to target.
func CanTransition(current, target DeliveryStatus) bool {
	if target == StatusDelayed {
		return current.IsInProgress()
	}
	if current == StatusDelayed || current == StatusDelivered {
		return false
	}
	from, to := PhaseIndex(current), PhaseIndex(target)
	if from < 0 || to < 0 {
		return false
	}
	return to > from
}

// RequiresLocation reports whether entering target needs a geolocation.
func RequiresLocation(target DeliveryStatus) bool {
	return target != StatusDelayed && target != StatusScheduled
}

// RequiresAccuracy reports whether entering target needs a fix within the accuracy bound.
func RequiresAccuracy(target DeliveryStatus) bool {
	switch target {
	case StatusFactoryPickupInProgress,
		StatusFactoryPickupCompleted,
		StatusDeliveryInProgress,
		StatusDelivered:
		return true
	case StatusScheduled, StatusInTransit, StatusDelayed:
		return false
	default:
		return false
	}
}

// CheckGate verifies the gate photos for current -> target against the
// categories present. It returns nil when nothing is missing.
func CheckGate(current, target DeliveryStatus, present []PhotoCategory) *TransitionError {
	required := GateCategories(current, target)
	missing := MissingCategories(required, present)
	if len(missing) == 0 {
		return nil
	}
	return &TransitionError{
		Reason:   ReasonMissingRequiredPhotos,
		From:     current,
		To:       target,
		Current:  len(required) - len(missing),
		Required: len(required),
		Missing:  missing,
	}
}
