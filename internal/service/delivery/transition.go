package delivery

import (
	"context"
	"errors"
	"fmt"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// TransitionInput is a driver's request to move a delivery to Target.
type TransitionInput struct {
	DeliveryID      int64
	ActorID         int64
	Target          domain.DeliveryStatus
	Location        *domain.Location
	Note            string
	ExpectedVersion *int64
}

// TransitionResult is the outcome of an applied transition.
type TransitionResult struct {
	Delivery domain.Delivery
	Entry    domain.StatusHistoryEntry
}

// Transition validates and applies a status change as one atomic unit.
// Rejections are returned as *domain.TransitionError.
func (s *Service) Transition(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	if err := validateTransitionInput(in); err != nil {
		return TransitionResult{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result TransitionResult
	err := s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, in.DeliveryID)
		if err != nil {
			return err
		}

		a, err := tx.DriverAssignment(ctx, d.ID, in.ActorID)
		if err != nil {
			return err
		}
		if a == nil || !a.Status.CanProgressDelivery() {
			return reject(domain.ReasonNoActiveAssignment, d.Status, in.Target)
		}

		if !domain.CanTransition(d.Status, in.Target) {
			return reject(domain.ReasonInvalidTransition, d.Status, in.Target)
		}

		if in.ExpectedVersion != nil && *in.ExpectedVersion != d.Version {
			return fmt.Errorf("delivery %d is at version %d, expected %d: %w",
				d.ID, d.Version, *in.ExpectedVersion, apperr.ErrConflict)
		}

		if domain.RequiresLocation(in.Target) && in.Location == nil {
			return reject(domain.ReasonInsufficientGPSAccuracy, d.Status, in.Target)
		}
		if domain.RequiresAccuracy(in.Target) && (in.Location == nil || !in.Location.MeetsAccuracy(s.rules.MaxGPSAccuracy)) {
			return reject(domain.ReasonInsufficientGPSAccuracy, d.Status, in.Target)
		}

		present, err := tx.PhotoCategories(ctx, d.ID)
		if err != nil {
			return err
		}
		if terr := domain.CheckGate(d.Status, in.Target, present); terr != nil {
			return terr
		}

		entry, err := s.applyStatus(ctx, tx, statusChange{
			delivery:   d,
			assignment: a,
			target:     in.Target,
			actorID:    in.ActorID,
			location:   in.Location,
			note:       in.Note,
		})
		if err != nil {
			return err
		}
		result = TransitionResult{Delivery: *d, Entry: entry}
		return nil
	})
	if err != nil {
		s.logRejection(in, err)
		return TransitionResult{}, err
	}

	s.countTransition(in.Target, "applied")
	s.logger.Info("delivery status changed",
		logx.String("event", "status_changed"),
		logx.Int64("delivery_id", in.DeliveryID),
		logx.Int64("actor_id", in.ActorID),
		logx.String("from", string(result.Entry.FromStatus)),
		logx.String("to", string(in.Target)),
		logx.Int64("version", result.Delivery.Version),
	)
	return result, nil
}

func (s *Service) logRejection(in TransitionInput, err error) {
	var terr *domain.TransitionError
	switch {
	case errors.As(err, &terr):
		s.countTransition(in.Target, string(terr.Reason))
		s.logger.Warn("transition rejected",
			logx.String("event", "transition_rejected"),
			logx.Int64("delivery_id", in.DeliveryID),
			logx.Int64("actor_id", in.ActorID),
			logx.String("reason", string(terr.Reason)),
			logx.String("from", string(terr.From)),
			logx.String("to", string(in.Target)),
		)
	case errors.Is(err, apperr.ErrConflict):
		s.countTransition(in.Target, "conflict")
		s.logger.Warn("transition conflict",
			logx.String("event", "transition_conflict"),
			logx.Int64("delivery_id", in.DeliveryID),
			logx.Err(err),
		)
	case errors.Is(err, apperr.ErrNotFound):
		s.countTransition(in.Target, "not_found")
	default:
		s.countTransition(in.Target, "error")
		s.logger.Error("transition failed",
			logx.String("event", "transition_failed"),
			logx.Int64("delivery_id", in.DeliveryID),
			logx.Err(err),
		)
	}
}

func reject(reason domain.RejectReason, from, to domain.DeliveryStatus) *domain.TransitionError {
	return &domain.TransitionError{Reason: reason, From: from, To: to}
}

func validateTransitionInput(in TransitionInput) error {
	if in.DeliveryID <= 0 || in.ActorID <= 0 {
		return fmt.Errorf("delivery and actor ids are required: %w", apperr.ErrInvalid)
	}
	if !in.Target.Valid() {
		return fmt.Errorf("unknown status %q: %w", in.Target, apperr.ErrInvalid)
	}
	if in.Location != nil && !in.Location.Valid() {
		return fmt.Errorf("location out of range: %w", apperr.ErrInvalid)
	}
	return nil
}
