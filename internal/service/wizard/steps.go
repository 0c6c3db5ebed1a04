// Package wizard guides a driver through the four delivery steps. It keeps
// no state of its own: the current step is derived from the delivery status
// and the photos already captured.
package wizard

import (
	"mobile-home-delivery/internal/domain"
)

// Step is one fixed wizard step.
type Step struct {
	Key         string
	Title       string
	Description string
	Required    []domain.PhotoCategory
	// Enter is applied when the step begins.
	Enter domain.DeliveryStatus
	// Leave is applied when the step is completed.
	Leave domain.DeliveryStatus
}

// List of step indexes
const (
	StepPickup = iota
	StepTransit
	StepOnSite
	StepHandoff
)

var steps = [...]Step{
	StepPickup: {
		Key:         "pickup",
		Title:       "Factory pickup",
		Description: "Inspect the home at the factory and photograph all four sides before hitching.",
		Required: []domain.PhotoCategory{
			domain.PhotoPickupFront, domain.PhotoPickupBack, domain.PhotoPickupLeft, domain.PhotoPickupRight,
		},
		Enter: domain.StatusFactoryPickupInProgress,
		Leave: domain.StatusFactoryPickupCompleted,
	},
	StepTransit: {
		Key:         "transit",
		Title:       "Transit",
		Description: "Drive to the delivery site. Report any road, weather or equipment problems as issues.",
		Enter:       domain.StatusInTransit,
	},
	StepOnSite: {
		Key:         "on_site",
		Title:       "On-site placement",
		Description: "Place the home on the pad and photograph all four sides in their final position.",
		Required: []domain.PhotoCategory{
			domain.PhotoDeliveryFront, domain.PhotoDeliveryBack, domain.PhotoDeliveryLeft, domain.PhotoDeliveryRight,
		},
		Enter: domain.StatusDeliveryInProgress,
	},
	StepHandoff: {
		Key:         "handoff",
		Title:       "Customer handoff",
		Description: "Walk the customer through the home and capture their signature.",
		Required:    []domain.PhotoCategory{domain.PhotoSignature},
		Leave:       domain.StatusDelivered,
	},
}

// Steps returns the wizard steps in order.
func Steps() []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.Required = append([]domain.PhotoCategory(nil), s.Required...)
		out[i] = s
	}
	return out
}

// StepForStatus maps a status to the step the driver is on. A step stays
// current until the next step's entry status is reached; a delayed delivery
// resumes at the step of the phase it was delayed from.
func StepForStatus(status domain.DeliveryStatus, delayedFrom *domain.DeliveryStatus) int {
	if status == domain.StatusDelayed && delayedFrom != nil {
		status = *delayedFrom
	}
	switch status {
	case domain.StatusInTransit:
		return StepTransit
	case domain.StatusDeliveryInProgress:
		return StepOnSite
	case domain.StatusDelivered:
		return StepHandoff
	case domain.StatusScheduled,
		domain.StatusFactoryPickupInProgress,
		domain.StatusFactoryPickupCompleted,
		domain.StatusDelayed:
		return StepPickup
	default:
		return StepPickup
	}
}

// CanAdvance reports whether every photo the step requires is present.
func CanAdvance(step int, photos []domain.PhotoCategory) bool {
	if step < 0 || step >= len(steps) {
		return false
	}
	return len(domain.MissingCategories(steps[step].Required, photos)) == 0
}

// currentStep refines StepForStatus with photos: on-site and handoff share
// a status, so a finished on-site step means the driver is at handoff.
func currentStep(d domain.Delivery, photos []domain.PhotoCategory) int {
	step := StepForStatus(d.Status, d.DelayedFrom)
	if step == StepOnSite && CanAdvance(StepOnSite, photos) {
		return StepHandoff
	}
	return step
}

// pendingStatuses lists the statuses advancing from step must apply, in
// order, skipping any the delivery has already reached.
func pendingStatuses(step int, current domain.DeliveryStatus) []domain.DeliveryStatus {
	var candidates []domain.DeliveryStatus
	if leave := steps[step].Leave; leave != "" {
		candidates = append(candidates, leave)
	}
	if step+1 < len(steps) {
		if enter := steps[step+1].Enter; enter != "" {
			candidates = append(candidates, enter)
		}
	}
	at := domain.PhaseIndex(current)
	var out []domain.DeliveryStatus
	for _, s := range candidates {
		if domain.PhaseIndex(s) > at {
			out = append(out, s)
		}
	}
	return out
}
