package kafka

import (
	"strings"
	"time"

	"mobile-home-delivery/internal/service/dispatch"
)

// EventDTO is a data transfer object for dispatch.Event
type EventDTO struct {
	DeliveryID int64     `json:"delivery_id"`
	DriverID   int64     `json:"driver_id"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ToDomain converts EventDTO to dispatch.Event
func ToDomain(dto EventDTO) dispatch.Event {
	return dispatch.Event{
		DeliveryID: dto.DeliveryID,
		DriverID:   dto.DriverID,
		Role:       strings.ToLower(strings.TrimSpace(dto.Role)),
		Action:     strings.ToLower(strings.TrimSpace(dto.Action)),
		Reason:     strings.TrimSpace(dto.Reason),
		AssignedAt: dto.AssignedAt,
	}
}
