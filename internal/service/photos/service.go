package photos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/storage"
)

// CaptureInput is one uploaded photo.
type CaptureInput struct {
	DeliveryID int64
	DriverID   int64
	Category   domain.PhotoCategory
	Data       []byte
	Caption    string
	TakenAt    time.Time
	Location   *domain.Location
}

// CaptureResult is the stored photo and what the current phase still lacks.
type CaptureResult struct {
	Photo   domain.Photo
	Missing []domain.PhotoCategory
}

// Checklist is the photo requirement state of a delivery's current phase.
type Checklist struct {
	Phase    domain.DeliveryStatus
	Required []domain.PhotoCategory
	Present  []domain.PhotoCategory
	Missing  []domain.PhotoCategory
}

// Complete reports whether nothing is missing.
func (c Checklist) Complete() bool { return len(c.Missing) == 0 }

// Service - photo capture and requirement tracking.
type Service struct {
	deliveries       deliveryReader
	photos           photoRepository
	store            objectStore
	jpegQuality      int
	maxSize          int64
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// Options tunes photo processing.
type Options struct {
	JPEGQuality      int
	MaxUploadSize    int64
	OperationTimeout time.Duration
}

// NewService - creates a new photo Service.
func NewService(d deliveryReader, p photoRepository, store objectStore, opts Options, logger logx.Logger) *Service {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		deliveries:       d,
		photos:           p,
		store:            store,
		jpegQuality:      opts.JPEGQuality,
		maxSize:          opts.MaxUploadSize,
		operationTimeout: opts.OperationTimeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Capture optimizes and stores a photo, records it and recomputes the
// missing categories. It never changes the delivery status.
func (s *Service) Capture(ctx context.Context, in CaptureInput) (CaptureResult, error) {
	if err := s.validate(in); err != nil {
		return CaptureResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	d, err := s.deliveries.Get(ctx, in.DeliveryID)
	if err != nil {
		return CaptureResult{}, err
	}
	a, err := s.deliveries.ActiveAssignment(ctx, in.DeliveryID, in.DriverID)
	if err != nil {
		return CaptureResult{}, err
	}
	if a == nil || !a.Status.CanProgressDelivery() {
		return CaptureResult{}, fmt.Errorf("driver %d has no active assignment on delivery %d: %w",
			in.DriverID, in.DeliveryID, apperr.ErrForbidden)
	}

	opt, err := storage.Optimize(in.Data, s.jpegQuality)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) {
			return CaptureResult{}, fmt.Errorf("%v: %w", err, apperr.ErrInvalid)
		}
		return CaptureResult{}, err
	}

	takenAt := in.TakenAt
	if takenAt.IsZero() {
		takenAt = s.now()
	}
	p := domain.Photo{
		ID:               uuid.New(),
		DeliveryID:       in.DeliveryID,
		DriverID:         in.DriverID,
		Category:         in.Category,
		Caption:          strings.TrimSpace(in.Caption),
		TakenAt:          takenAt,
		Location:         in.Location,
		OriginalSize:     opt.OriginalSize,
		OptimizedSize:    opt.OptimizedSize,
		CompressionRatio: opt.Ratio(),
	}

	obj, err := s.store.Put(ctx, storage.PhotoKey(p.DeliveryID, p.Category, p.ID, p.TakenAt), opt.Data, opt.ContentType)
	if err != nil {
		return CaptureResult{}, fmt.Errorf("store photo: %w", err)
	}
	p.URL = obj.URL

	if err := s.photos.Insert(ctx, &p); err != nil {
		return CaptureResult{}, err
	}

	list, err := s.checklist(ctx, d)
	if err != nil {
		return CaptureResult{}, err
	}

	s.logger.Info("photo captured",
		logx.String("event", "photo_captured"),
		logx.Int64("delivery_id", p.DeliveryID),
		logx.Int64("driver_id", p.DriverID),
		logx.String("category", string(p.Category)),
		logx.Int64("original_size", p.OriginalSize),
		logx.Int64("optimized_size", p.OptimizedSize),
		logx.Int("missing", len(list.Missing)),
	)
	return CaptureResult{Photo: p, Missing: list.Missing}, nil
}

// Checklist returns required, present and missing categories for the
// delivery's current phase. A delayed delivery reports the phase it was
// delayed from.
func (s *Service) Checklist(ctx context.Context, deliveryID int64) (Checklist, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()

	d, err := s.deliveries.Get(ctx, deliveryID)
	if err != nil {
		return Checklist{}, err
	}
	return s.checklist(ctx, d)
}

// List returns a delivery's photos.
func (s *Service) List(ctx context.Context, deliveryID int64) ([]domain.Photo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.operationTimeout)
	defer cancel()
	return s.photos.ListByDelivery(ctx, deliveryID)
}

func (s *Service) checklist(ctx context.Context, d *domain.Delivery) (Checklist, error) {
	photos, err := s.photos.ListByDelivery(ctx, d.ID)
	if err != nil {
		return Checklist{}, err
	}
	phase := d.EffectiveStatus()
	required := domain.RequiredCategories(phase)
	present := domain.Categories(photos)
	return Checklist{
		Phase:    phase,
		Required: required,
		Present:  present,
		Missing:  domain.MissingCategories(required, present),
	}, nil
}

func (s *Service) validate(in CaptureInput) error {
	if in.DeliveryID <= 0 || in.DriverID <= 0 {
		return fmt.Errorf("delivery and driver ids are required: %w", apperr.ErrInvalid)
	}
	if !in.Category.Valid() {
		return fmt.Errorf("unknown photo category %q: %w", in.Category, apperr.ErrInvalid)
	}
	if len(in.Data) == 0 {
		return fmt.Errorf("empty photo: %w", apperr.ErrInvalid)
	}
	if s.maxSize > 0 && int64(len(in.Data)) > s.maxSize {
		return fmt.Errorf("photo is %d bytes, limit %d: %w", len(in.Data), s.maxSize, apperr.ErrInvalid)
	}
	if in.Location != nil && !in.Location.Valid() {
		return fmt.Errorf("location out of range: %w", apperr.ErrInvalid)
	}
	return nil
}
