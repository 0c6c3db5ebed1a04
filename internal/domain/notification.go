package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	// EventType names a notification event.
	EventType string
	// NotificationStatus is the outbox delivery state.
	NotificationStatus string
)

// List of event types
const (
	EventStatusChanged      EventType = "status_changed"
	EventAssignmentDeclined EventType = "assignment_declined"
	EventDeliveryDelayed    EventType = "delivery_delayed"
	EventIssueReported      EventType = "issue_reported"
)

// List of outbox statuses
const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationDead    NotificationStatus = "dead"
)

// Valid checks if the EventType is valid
func (e EventType) Valid() bool {
	switch e {
	case EventStatusChanged, EventAssignmentDeclined, EventDeliveryDelayed, EventIssueReported:
		return true
	default:
		return false
	}
}

// Notification is one outbox row.
type Notification struct {
	ID            uuid.UUID
	DeliveryID    int64
	Event         EventType
	Payload       map[string]any
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	Status        NotificationStatus
	CreatedAt     time.Time
}

// NewNotification builds a pending outbox row due now.
func NewNotification(deliveryID int64, event EventType, payload map[string]any, now time.Time) Notification {
	return Notification{
		ID:            uuid.New(),
		DeliveryID:    deliveryID,
		Event:         event,
		Payload:       payload,
		NextAttemptAt: now,
		Status:        NotificationPending,
		CreatedAt:     now,
	}
}
