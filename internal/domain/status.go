package domain

type (
	// DeliveryStatus is the lifecycle phase of a delivery.
	DeliveryStatus string
	// AssignmentStatus is the state of a driver's binding to a delivery.
	AssignmentStatus string
	// AssignmentRole is the part a driver plays in a delivery.
	AssignmentRole string
)

// Delivery statuses. The first six form the happy path in order.
const (
	StatusScheduled               DeliveryStatus = "scheduled"
	StatusFactoryPickupInProgress DeliveryStatus = "factory_pickup_in_progress"
	StatusFactoryPickupCompleted  DeliveryStatus = "factory_pickup_completed"
	StatusInTransit               DeliveryStatus = "in_transit"
	StatusDeliveryInProgress      DeliveryStatus = "delivery_in_progress"
	StatusDelivered               DeliveryStatus = "delivered"
	StatusDelayed                 DeliveryStatus = "delayed"
)

// Assignment statuses.
const (
	AssignmentPending    AssignmentStatus = "pending"
	AssignmentAccepted   AssignmentStatus = "accepted"
	AssignmentDeclined   AssignmentStatus = "declined"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

// Assignment roles.
const (
	RolePickup   AssignmentRole = "pickup"
	RoleDelivery AssignmentRole = "delivery"
)

var phaseOrder = [...]DeliveryStatus{
	StatusScheduled,
	StatusFactoryPickupInProgress,
	StatusFactoryPickupCompleted,
	StatusInTransit,
	StatusDeliveryInProgress,
	StatusDelivered,
}

// Phases returns the happy-path statuses in order.
func Phases() []DeliveryStatus {
	out := make([]DeliveryStatus, len(phaseOrder))
	copy(out, phaseOrder[:])
	return out
}

// Valid checks if the DeliveryStatus is valid
func (s DeliveryStatus) Valid() bool {
	return s == StatusDelayed || PhaseIndex(s) >= 0
}

// PhaseIndex returns the position of s on the happy path, or -1 for delayed and unknown values.
func PhaseIndex(s DeliveryStatus) int {
	for i, v := range phaseOrder {
		if s == v {
			return i
		}
	}
	return -1
}

// IsInProgress reports whether s is a phase from which a delivery may be delayed.
func (s DeliveryStatus) IsInProgress() bool {
	switch s {
	case StatusFactoryPickupInProgress,
		StatusFactoryPickupCompleted,
		StatusInTransit,
		StatusDeliveryInProgress:
		return true
	case StatusScheduled, StatusDelivered, StatusDelayed:
		return false
	default:
		return false
	}
}

// Valid checks if the AssignmentStatus is valid
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentDeclined, AssignmentInProgress, AssignmentCompleted:
		return true
	default:
		return false
	}
}

// CanProgressDelivery reports whether a driver holding an assignment in
// this state may move the delivery's status.
func (s AssignmentStatus) CanProgressDelivery() bool {
	return s == AssignmentAccepted || s == AssignmentInProgress
}

// CanAssignmentTransition reports whether an assignment may move from one state to another.
func CanAssignmentTransition(from, to AssignmentStatus) bool {
	switch from {
	case AssignmentPending:
		return to == AssignmentAccepted || to == AssignmentDeclined
	case AssignmentAccepted:
		return to == AssignmentInProgress || to == AssignmentDeclined
	case AssignmentInProgress:
		return to == AssignmentCompleted
	case AssignmentDeclined, AssignmentCompleted:
		return false
	default:
		return false
	}
}

// Valid checks if the AssignmentRole is valid
func (r AssignmentRole) Valid() bool {
	return r == RolePickup || r == RoleDelivery
}
