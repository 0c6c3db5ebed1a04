package quality

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	Assignments(ctx context.Context, deliveryID int64) ([]domain.Assignment, error)
	Issues(ctx context.Context, deliveryID int64) ([]domain.Issue, error)
}

type photoLister interface {
	ListByDelivery(ctx context.Context, deliveryID int64) ([]domain.Photo, error)
}

type gpsReader interface {
	Latest(ctx context.Context, deliveryID int64) (*domain.GPSPoint, error)
}

// Service - read-only quality validation.
type Service struct {
	deliveries       deliveryReader
	photos           photoLister
	gps              gpsReader
	maxAccuracy      float64
	operationTimeout time.Duration
	logger           logx.Logger
}

// NewService - creates a new quality Service.
func NewService(d deliveryReader, p photoLister, g gpsReader, maxAccuracy float64, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		deliveries:       d,
		photos:           p,
		gps:              g,
		maxAccuracy:      maxAccuracy,
		operationTimeout: timeout,
		logger:           logger,
	}
}

// Validate loads a snapshot of the delivery and evaluates it.
func (s *Service) Validate(ctx context.Context, deliveryID int64) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return Report{}, err
	}

	snap := Snapshot{Delivery: *d, MaxAccuracy: s.maxAccuracy}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		photos, err := s.photos.ListByDelivery(gctx, deliveryID)
		snap.Photos = domain.Categories(photos)
		return err
	})
	g.Go(func() error {
		var err error
		snap.LatestPoint, err = s.gps.Latest(gctx, deliveryID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Assignments, err = s.deliveries.Assignments(gctx, deliveryID)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Issues, err = s.deliveries.Issues(gctx, deliveryID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Evaluate(snap)
	s.logger.Debug("quality evaluated",
		logx.String("event", "quality_evaluated"),
		logx.Int64("delivery_id", deliveryID),
		logx.Int("score", report.Score),
		logx.Bool("ready", report.Ready),
	)
	return report, nil
}
