package delivery

import (
	"context"
	"fmt"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// Resume returns a delayed delivery to the phase it was delayed from. Admin only.
func (s *Service) Resume(ctx context.Context, deliveryID, adminID int64, note string) (TransitionResult, error) {
	if deliveryID <= 0 || adminID <= 0 {
		return TransitionResult{}, fmt.Errorf("delivery and admin ids are required: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result TransitionResult
	err := s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, deliveryID)
		if err != nil {
			return err
		}
		if d.Status != domain.StatusDelayed || d.DelayedFrom == nil {
			return reject(domain.ReasonInvalidTransition, d.Status, d.EffectiveStatus())
		}
		target := *d.DelayedFrom
		entry, err := s.applyStatus(ctx, tx, statusChange{
			delivery: d,
			target:   target,
			actorID:  adminID,
			note:     note,
		})
		if err != nil {
			return err
		}
		result = TransitionResult{Delivery: *d, Entry: entry}
		return nil
	})
	if err != nil {
		return TransitionResult{}, err
	}

	s.countTransition(result.Entry.Status, "resumed")
	s.logger.Info("delivery resumed",
		logx.String("event", "delivery_resumed"),
		logx.Int64("delivery_id", deliveryID),
		logx.Int64("admin_id", adminID),
		logx.String("to", string(result.Entry.Status)),
	)
	return result, nil
}
