package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// AssignmentAction identifies an assignment operation by its driver.
type AssignmentAction struct {
	AssignmentID int64
	DriverID     int64
	Confirmed    bool
}

// DeclineInput declines an assignment.
type DeclineInput struct {
	AssignmentAction
	Reason string
}

// MileageInput records odometer readings. Nil fields are left unchanged.
type MileageInput struct {
	AssignmentID int64
	DriverID     int64
	Starting     *float64
	Ending       *float64
}

// CreatePending binds a driver to a delivery awaiting their acceptance.
func (s *Service) CreatePending(
	ctx context.Context,
	deliveryID, driverID int64,
	role domain.AssignmentRole,
	assignedAt time.Time,
) (*domain.Assignment, error) {
	if deliveryID <= 0 || driverID <= 0 || !role.Valid() {
		return nil, fmt.Errorf("assignment %d/%d/%q: %w", deliveryID, driverID, role, apperr.ErrInvalid)
	}
	if assignedAt.IsZero() {
		assignedAt = s.now()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a := &domain.Assignment{
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Role:       role,
		Status:     domain.AssignmentPending,
		AssignedAt: assignedAt,
	}
	err := s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		if _, err := tx.GetDeliveryForUpdate(ctx, deliveryID); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("assignment created",
		logx.String("event", "assignment_created"),
		logx.Int64("assignment_id", a.ID),
		logx.Int64("delivery_id", deliveryID),
		logx.Int64("driver_id", driverID),
		logx.String("role", string(role)),
	)
	return a, nil
}

// Withdraw declines a driver's open assignment on behalf of dispatch.
func (s *Service) Withdraw(ctx context.Context, deliveryID, driverID int64, reason string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		a, err := tx.DriverAssignment(ctx, deliveryID, driverID)
		if err != nil {
			return err
		}
		if a == nil {
			return fmt.Errorf("assignment %d/%d: %w", deliveryID, driverID, apperr.ErrNotFound)
		}
		if !domain.CanAssignmentTransition(a.Status, domain.AssignmentDeclined) {
			return fmt.Errorf("assignment %d is %s: %w", a.ID, a.Status, apperr.ErrConflict)
		}
		now := s.now()
		a.Status = domain.AssignmentDeclined
		a.DeclinedAt = &now
		a.DeclineReason = reason
		return tx.UpdateAssignment(ctx, a)
	})
}

// Accept moves a pending assignment to accepted. The driver must confirm explicitly.
func (s *Service) Accept(ctx context.Context, in AssignmentAction) (*domain.Assignment, error) {
	if !in.Confirmed {
		return nil, apperr.ErrConfirmationRequired
	}
	return s.mutateAssignment(ctx, in.AssignmentID, in.DriverID, "assignment_accepted",
		func(_ deliverytx.Repository, a *domain.Assignment, now time.Time) error {
			if err := moveAssignment(a, domain.AssignmentAccepted); err != nil {
				return err
			}
			a.AcceptedAt = &now
			return nil
		})
}

// Decline moves a pending or accepted assignment to declined and notifies admins.
func (s *Service) Decline(ctx context.Context, in DeclineInput) (*domain.Assignment, error) {
	if !in.Confirmed {
		return nil, apperr.ErrConfirmationRequired
	}
	reason := strings.TrimSpace(in.Reason)
	return s.mutateAssignment(ctx, in.AssignmentID, in.DriverID, "assignment_declined",
		func(tx deliverytx.Repository, a *domain.Assignment, now time.Time) error {
			if err := moveAssignment(a, domain.AssignmentDeclined); err != nil {
				return err
			}
			a.DeclinedAt = &now
			a.DeclineReason = reason
			payload := map[string]any{
				"assignment_id": a.ID,
				"delivery_id":   a.DeliveryID,
				"driver_id":     a.DriverID,
				"role":          string(a.Role),
				"reason":        reason,
			}
			return tx.EnqueueNotification(ctx, domain.NewNotification(a.DeliveryID, domain.EventAssignmentDeclined, payload, now))
		})
}

// Start moves an accepted assignment to in_progress.
func (s *Service) Start(ctx context.Context, assignmentID, driverID int64, startingMileage *float64) (*domain.Assignment, error) {
	if startingMileage != nil && *startingMileage < 0 {
		return nil, fmt.Errorf("negative mileage: %w", apperr.ErrInvalid)
	}
	return s.mutateAssignment(ctx, assignmentID, driverID, "assignment_started",
		func(_ deliverytx.Repository, a *domain.Assignment, now time.Time) error {
			if err := moveAssignment(a, domain.AssignmentInProgress); err != nil {
				return err
			}
			a.StartedAt = &now
			if startingMileage != nil {
				a.StartingMileage = startingMileage
			}
			return nil
		})
}

// Complete moves an in-progress assignment to completed.
func (s *Service) Complete(ctx context.Context, assignmentID, driverID int64, endingMileage *float64) (*domain.Assignment, error) {
	return s.mutateAssignment(ctx, assignmentID, driverID, "assignment_completed",
		func(_ deliverytx.Repository, a *domain.Assignment, now time.Time) error {
			if err := moveAssignment(a, domain.AssignmentCompleted); err != nil {
				return err
			}
			if endingMileage != nil {
				if err := checkMileage(a.StartingMileage, endingMileage); err != nil {
					return err
				}
				a.EndingMileage = endingMileage
			}
			a.CompletedAt = &now
			return nil
		})
}

// RecordMileage stores odometer readings while the assignment is accepted or in progress.
func (s *Service) RecordMileage(ctx context.Context, in MileageInput) (*domain.Assignment, error) {
	if in.Starting == nil && in.Ending == nil {
		return nil, fmt.Errorf("no mileage given: %w", apperr.ErrInvalid)
	}
	return s.mutateAssignment(ctx, in.AssignmentID, in.DriverID, "mileage_recorded",
		func(_ deliverytx.Repository, a *domain.Assignment, _ time.Time) error {
			if !a.Status.CanProgressDelivery() {
				return fmt.Errorf("assignment %d is %s: %w", a.ID, a.Status, apperr.ErrConflict)
			}
			starting := a.StartingMileage
			if in.Starting != nil {
				starting = in.Starting
			}
			ending := a.EndingMileage
			if in.Ending != nil {
				ending = in.Ending
			}
			if err := checkMileage(starting, ending); err != nil {
				return err
			}
			a.StartingMileage = starting
			a.EndingMileage = ending
			return nil
		})
}

func (s *Service) mutateAssignment(
	ctx context.Context,
	assignmentID, driverID int64,
	event string,
	fn func(tx deliverytx.Repository, a *domain.Assignment, now time.Time) error,
) (*domain.Assignment, error) {
	if assignmentID <= 0 || driverID <= 0 {
		return nil, fmt.Errorf("assignment and driver ids are required: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var out *domain.Assignment
	err := s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		a, err := tx.GetAssignmentForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}
		if a.DriverID != driverID {
			return fmt.Errorf("assignment %d belongs to another driver: %w", assignmentID, apperr.ErrForbidden)
		}
		if err := fn(tx, a, s.now()); err != nil {
			return err
		}
		if err := tx.UpdateAssignment(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("assignment updated",
		logx.String("event", event),
		logx.Int64("assignment_id", out.ID),
		logx.Int64("delivery_id", out.DeliveryID),
		logx.Int64("driver_id", out.DriverID),
		logx.String("status", string(out.Status)),
	)
	return out, nil
}

func moveAssignment(a *domain.Assignment, to domain.AssignmentStatus) error {
	if !domain.CanAssignmentTransition(a.Status, to) {
		return fmt.Errorf("assignment %d cannot go from %s to %s: %w", a.ID, a.Status, to, apperr.ErrConflict)
	}
	a.Status = to
	return nil
}

func checkMileage(starting, ending *float64) error {
	if starting != nil && *starting < 0 {
		return fmt.Errorf("negative starting mileage: %w", apperr.ErrInvalid)
	}
	if ending != nil && *ending < 0 {
		return fmt.Errorf("negative ending mileage: %w", apperr.ErrInvalid)
	}
	if starting != nil && ending != nil && *ending < *starting {
		return fmt.Errorf("ending mileage %.1f below starting %.1f: %w", *ending, *starting, apperr.ErrInvalid)
	}
	return nil
}
