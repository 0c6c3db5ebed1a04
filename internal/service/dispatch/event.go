package dispatch

import (
	"fmt"
	"time"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
)

// Event is a single dispatch event
type Event struct {
	DeliveryID int64     `json:"delivery_id"`
	DriverID   int64     `json:"driver_id"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Validate checks the fields every action needs.
func (e Event) Validate() error {
	if e.DeliveryID <= 0 || e.DriverID <= 0 {
		return fmt.Errorf("dispatch event needs delivery_id and driver_id: %w", apperr.ErrInvalid)
	}
	return nil
}

func (e Event) role() domain.AssignmentRole {
	if e.Role == "" {
		return domain.RoleDelivery
	}
	return domain.AssignmentRole(e.Role)
}
