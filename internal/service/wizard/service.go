package wizard

import (
	"context"
	"fmt"
	"time"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/service/delivery"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
}

type photoLister interface {
	ListByDelivery(ctx context.Context, deliveryID int64) ([]domain.Photo, error)
}

type transitioner interface {
	Transition(ctx context.Context, in delivery.TransitionInput) (delivery.TransitionResult, error)
}

// View is one step as presented to the driver.
type View struct {
	Index       int
	Total       int
	Key         string
	Title       string
	Description string
	Required    []domain.PhotoCategory
	Missing     []domain.PhotoCategory
	CanAdvance  bool
	CanGoBack   bool
	// Current is false when viewing a step other than the delivery's own.
	Current bool
	Started bool
	Done    bool
	Status  domain.DeliveryStatus
	Version int64
}

// MoveInput carries what each status change needs.
type MoveInput struct {
	DeliveryID int64
	ActorID    int64
	Location   *domain.Location
	Note       string
}

// Service - checklist wizard over the delivery state machine.
type Service struct {
	deliveries       deliveryReader
	photos           photoLister
	transitions      transitioner
	operationTimeout time.Duration
	logger           logx.Logger
}

// NewService - creates a new wizard Service.
func NewService(d deliveryReader, p photoLister, t transitioner, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{deliveries: d, photos: p, transitions: t, operationTimeout: timeout, logger: logger}
}

// View renders the delivery's current step, or step when it is not nil.
// Viewing an earlier step never changes status.
func (s *Service) View(ctx context.Context, deliveryID int64, step *int) (View, error) {
	d, photos, err := s.load(ctx, deliveryID)
	if err != nil {
		return View{}, err
	}
	current := currentStep(*d, photos)
	idx := current
	if step != nil {
		if *step < 0 || *step >= len(steps) {
			return View{}, fmt.Errorf("step %d out of range: %w", *step, apperr.ErrInvalid)
		}
		idx = *step
	}
	return render(*d, photos, idx, current), nil
}

// Start applies the pickup step's entry status.
func (s *Service) Start(ctx context.Context, in MoveInput) (View, error) {
	d, _, err := s.load(ctx, in.DeliveryID)
	if err != nil {
		return View{}, err
	}
	if d.Status != domain.StatusScheduled {
		return View{}, fmt.Errorf("delivery %d already started (%s): %w", d.ID, d.Status, apperr.ErrConflict)
	}
	if err := s.apply(ctx, in, []domain.DeliveryStatus{steps[StepPickup].Enter}, d.Version); err != nil {
		return View{}, err
	}
	return s.View(ctx, in.DeliveryID, nil)
}

// Advance completes the current step. It refuses while the step's photos
// are missing, then applies the step's exit and the next step's entry
// through the delivery state machine.
func (s *Service) Advance(ctx context.Context, in MoveInput) (View, error) {
	d, photos, err := s.load(ctx, in.DeliveryID)
	if err != nil {
		return View{}, err
	}
	if d.Status == domain.StatusScheduled {
		return View{}, fmt.Errorf("delivery %d not started: %w", d.ID, apperr.ErrConflict)
	}
	if d.Status == domain.StatusDelivered {
		return View{}, fmt.Errorf("delivery %d already delivered: %w", d.ID, apperr.ErrConflict)
	}

	step := currentStep(*d, photos)
	if !CanAdvance(step, photos) {
		missing := domain.MissingCategories(steps[step].Required, photos)
		return View{}, &domain.TransitionError{
			Reason:   domain.ReasonMissingRequiredPhotos,
			From:     d.Status,
			To:       d.Status,
			Current:  len(steps[step].Required) - len(missing),
			Required: len(steps[step].Required),
			Missing:  missing,
		}
	}

	if err := s.apply(ctx, in, pendingStatuses(step, d.Status), d.Version); err != nil {
		return View{}, err
	}
	s.logger.Info("wizard advanced",
		logx.String("event", "wizard_advanced"),
		logx.Int64("delivery_id", in.DeliveryID),
		logx.String("from_step", steps[step].Key),
	)
	return s.View(ctx, in.DeliveryID, nil)
}

func (s *Service) apply(ctx context.Context, in MoveInput, targets []domain.DeliveryStatus, version int64) error {
	expected := version
	for _, target := range targets {
		res, err := s.transitions.Transition(ctx, delivery.TransitionInput{
			DeliveryID:      in.DeliveryID,
			ActorID:         in.ActorID,
			Target:          target,
			Location:        in.Location,
			Note:            in.Note,
			ExpectedVersion: &expected,
		})
		if err != nil {
			return err
		}
		expected = res.Delivery.Version
	}
	return nil
}

func (s *Service) load(ctx context.Context, deliveryID int64) (*domain.Delivery, []domain.PhotoCategory, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return nil, nil, err
	}
	photos, err := s.photos.ListByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, nil, err
	}
	return d, domain.Categories(photos), nil
}

func render(d domain.Delivery, photos []domain.PhotoCategory, idx, current int) View {
	st := steps[idx]
	return View{
		Index:       idx,
		Total:       len(steps),
		Key:         st.Key,
		Title:       st.Title,
		Description: st.Description,
		Required:    append([]domain.PhotoCategory(nil), st.Required...),
		Missing:     domain.MissingCategories(st.Required, photos),
		CanAdvance:  idx == current && CanAdvance(idx, photos) && d.Status != domain.StatusDelivered && d.Status != domain.StatusScheduled,
		CanGoBack:   idx > 0,
		Current:     idx == current,
		Started:     d.Status != domain.StatusScheduled,
		Done:        d.Status == domain.StatusDelivered,
		Status:      d.Status,
		Version:     d.Version,
	}
}
