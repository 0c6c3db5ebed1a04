package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// Rules stores the tunable parts of the state machine.
type Rules struct {
	MaxGPSAccuracy     float64
	EscalationSeverity domain.Severity
}

// DefaultRules returns the default state machine rules.
func DefaultRules() Rules {
	return Rules{
		MaxGPSAccuracy:     domain.MaxTransitionAccuracy,
		EscalationSeverity: domain.SeverityHigh,
	}
}

// Service - delivery status state machine and assignment sub-machine.
type Service struct {
	repo             deliveryRepository
	rules            Rules
	operationTimeout time.Duration
	logger           logx.Logger
	transitions      *prometheus.CounterVec
	now              func() time.Time
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// NewService - creates a new delivery Service. transitions may be nil.
func NewService(
	r deliveryRepository,
	rules Rules,
	timeout time.Duration,
	logger logx.Logger,
	transitions *prometheus.CounterVec,
) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	def := DefaultRules()
	if rules.MaxGPSAccuracy <= 0 {
		rules.MaxGPSAccuracy = def.MaxGPSAccuracy
	}
	if !rules.EscalationSeverity.Valid() {
		rules.EscalationSeverity = def.EscalationSeverity
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:             r,
		rules:            rules,
		operationTimeout: timeout,
		logger:           logger,
		transitions:      transitions,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a delivery by id.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Delivery, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Get(ctx, id)
}

// History returns the audit trail of a delivery.
func (s *Service) History(ctx context.Context, deliveryID int64) ([]domain.StatusHistoryEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if _, err := s.repo.Get(ctx, deliveryID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, deliveryID)
}

// Assignments returns the assignments on a delivery.
func (s *Service) Assignments(ctx context.Context, deliveryID int64) ([]domain.Assignment, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.Assignments(ctx, deliveryID)
}

type statusChange struct {
	delivery   *domain.Delivery
	assignment *domain.Assignment
	target     domain.DeliveryStatus
	actorID    int64
	location   *domain.Location
	note       string
}

// applyStatus performs the effects of an accepted status change inside tx.
func (s *Service) applyStatus(ctx context.Context, tx deliverytx.Repository, c statusChange) (domain.StatusHistoryEntry, error) {
	now := s.now()
	d := c.delivery
	from := d.Status

	switch c.target {
	case domain.StatusDelayed:
		d.DelayedFrom = &from
	case domain.StatusDelivered:
		d.DelayedFrom = nil
		d.CompletedAt = &now
		if c.note != "" {
			d.CompletionNotes = c.note
		}
	default:
		d.DelayedFrom = nil
	}
	d.Status = c.target

	if err := tx.UpdateDeliveryStatus(ctx, d); err != nil {
		return domain.StatusHistoryEntry{}, err
	}

	entry := domain.StatusHistoryEntry{
		DeliveryID: d.ID,
		FromStatus: from,
		Status:     c.target,
		ActorID:    c.actorID,
		Note:       c.note,
		Location:   c.location,
		CreatedAt:  now,
	}
	if err := tx.InsertHistory(ctx, &entry); err != nil {
		return domain.StatusHistoryEntry{}, err
	}

	if c.assignment != nil {
		if err := tx.SetPhaseTime(ctx, c.assignment.ID, c.target, now); err != nil {
			return domain.StatusHistoryEntry{}, err
		}
	}

	payload := map[string]any{
		"delivery_id":     d.ID,
		"delivery_number": d.Number,
		"from":            string(from),
		"to":              string(c.target),
		"actor_id":        c.actorID,
		"at":              now.Format(time.RFC3339),
	}
	if err := tx.EnqueueNotification(ctx, domain.NewNotification(d.ID, domain.EventStatusChanged, payload, now)); err != nil {
		return domain.StatusHistoryEntry{}, fmt.Errorf("enqueue status change: %w", err)
	}
	return entry, nil
}

func (s *Service) countTransition(target domain.DeliveryStatus, result string) {
	if s.transitions == nil {
		return
	}
	s.transitions.WithLabelValues(string(target), result).Inc()
}
