package dispatch

import (
	"context"
	"errors"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/logx"
)

// Processor applies dispatch events to assignments. Replayed events are
// absorbed: a duplicate assignment or a missing one to withdraw is not an error.
type Processor struct {
	assignments AssignmentPort
	factory     *actionFactory
	logger      logx.Logger
}

// NewProcessor creates a new dispatch Processor
func NewProcessor(assignments AssignmentPort, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{assignments: assignments, logger: logger}
	p.factory = newActionFactory(p.onAssigned, p.onWithdrawn)
	return p
}

// Handle processes a single dispatch Event
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	fn, ok := p.factory.get(e.Action)
	if !ok {
		p.logger.Warn("unknown dispatch action",
			logx.String("event", "dispatch_skipped"),
			logx.String("action", e.Action),
			logx.Int64("delivery_id", e.DeliveryID),
		)
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onAssigned(ctx context.Context, e Event) error {
	_, err := p.assignments.CreatePending(ctx, e.DeliveryID, e.DriverID, e.role(), e.AssignedAt)
	if errors.Is(err, apperr.ErrConflict) {
		p.logger.Debug("duplicate dispatch event",
			logx.String("event", "dispatch_duplicate"),
			logx.Int64("delivery_id", e.DeliveryID),
			logx.Int64("driver_id", e.DriverID),
		)
		return nil
	}
	return err
}

func (p *Processor) onWithdrawn(ctx context.Context, e Event) error {
	reason := e.Reason
	if reason == "" {
		reason = "withdrawn by dispatch"
	}
	err := p.assignments.Withdraw(ctx, e.DeliveryID, e.DriverID, reason)
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrConflict) {
		return nil
	}
	return err
}
