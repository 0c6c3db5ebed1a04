package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
)

// clockSkew tolerates device clocks running slightly ahead of the server.
const clockSkew = 5 * time.Minute

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	ActiveAssignment(ctx context.Context, deliveryID, driverID int64) (*domain.Assignment, error)
}

type pointStore interface {
	InsertPoints(ctx context.Context, points []domain.GPSPoint) (int64, error)
	Latest(ctx context.Context, deliveryID int64) (*domain.GPSPoint, error)
}

// IngestResult reports how many points were new.
type IngestResult struct {
	Received  int
	Inserted  int64
	Duplicate int64
}

// Service - server-side GPS ingestion.
type Service struct {
	deliveries       deliveryReader
	points           pointStore
	ingested         prometheus.Counter
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService - creates a new tracking Service. ingested may be nil.
func NewService(d deliveryReader, p pointStore, ingested prometheus.Counter, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		deliveries:       d,
		points:           p,
		ingested:         ingested,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// RecordPoint stores a single live point.
func (s *Service) RecordPoint(ctx context.Context, p domain.GPSPoint) (IngestResult, error) {
	if !p.Valid() {
		return IngestResult{}, fmt.Errorf("gps point: %w", apperr.ErrInvalid)
	}
	if p.RecordedAt.After(s.now().Add(clockSkew)) {
		return IngestResult{}, fmt.Errorf("gps point recorded in the future: %w", apperr.ErrInvalid)
	}
	return s.store(ctx, p.DeliveryID, p.DriverID, []domain.GPSPoint{p})
}

// IngestBatch validates and stores an offline batch. Retried batches are
// safe: points already stored are skipped by id.
func (s *Service) IngestBatch(ctx context.Context, b domain.GPSBatch) (IngestResult, error) {
	if err := s.validateBatch(b); err != nil {
		return IngestResult{}, err
	}
	points := make([]domain.GPSPoint, len(b.Points))
	for i, p := range b.Points {
		p.DeliveryID, p.DriverID = b.DeliveryID, b.DriverID
		points[i] = p
	}
	return s.store(ctx, b.DeliveryID, b.DriverID, points)
}

// Latest returns the most recent point, or nil.
func (s *Service) Latest(ctx context.Context, deliveryID int64) (*domain.GPSPoint, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()
	if _, err := s.deliveries.Get(ctx, deliveryID); err != nil {
		return nil, err
	}
	return s.points.Latest(ctx, deliveryID)
}

func (s *Service) store(ctx context.Context, deliveryID, driverID int64, points []domain.GPSPoint) (IngestResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	if _, err := s.deliveries.Get(ctx, deliveryID); err != nil {
		return IngestResult{}, err
	}
	a, err := s.deliveries.ActiveAssignment(ctx, deliveryID, driverID)
	if err != nil {
		return IngestResult{}, err
	}
	if a == nil {
		return IngestResult{}, fmt.Errorf("driver %d has no active assignment on delivery %d: %w",
			driverID, deliveryID, apperr.ErrForbidden)
	}

	inserted, err := s.points.InsertPoints(ctx, points)
	if err != nil {
		return IngestResult{}, err
	}
	if s.ingested != nil {
		s.ingested.Add(float64(inserted))
	}

	res := IngestResult{Received: len(points), Inserted: inserted, Duplicate: int64(len(points)) - inserted}
	s.logger.Debug("gps points stored",
		logx.String("event", "gps_ingested"),
		logx.Int64("delivery_id", deliveryID),
		logx.Int64("driver_id", driverID),
		logx.Int("received", res.Received),
		logx.Int64("inserted", res.Inserted),
	)
	return res, nil
}

func (s *Service) validateBatch(b domain.GPSBatch) error {
	if b.DeliveryID <= 0 || b.DriverID <= 0 {
		return fmt.Errorf("delivery and driver ids are required: %w", apperr.ErrInvalid)
	}
	if len(b.Points) == 0 {
		return fmt.Errorf("empty batch: %w", apperr.ErrInvalid)
	}
	if len(b.Points) > domain.MaxGPSBatchSize {
		return fmt.Errorf("batch of %d exceeds %d points: %w", len(b.Points), domain.MaxGPSBatchSize, apperr.ErrInvalid)
	}
	if b.StartedAt.IsZero() || b.EndedAt.IsZero() || b.EndedAt.Before(b.StartedAt) {
		return fmt.Errorf("invalid batch window: %w", apperr.ErrInvalid)
	}
	if b.EndedAt.After(s.now().Add(clockSkew)) {
		return fmt.Errorf("batch window ends in the future: %w", apperr.ErrInvalid)
	}
	for i, p := range b.Points {
		if !p.Valid() {
			return fmt.Errorf("point %d: %w", i, apperr.ErrInvalid)
		}
		if p.RecordedAt.Before(b.StartedAt) || p.RecordedAt.After(b.EndedAt) {
			return fmt.Errorf("point %d outside batch window: %w", i, apperr.ErrInvalid)
		}
	}
	return nil
}
