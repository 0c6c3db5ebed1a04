package handlers

import (
	"context"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/service/delivery"
	"mobile-home-delivery/internal/service/photos"
	"mobile-home-delivery/internal/service/quality"
	"mobile-home-delivery/internal/service/tracking"
	"mobile-home-delivery/internal/service/wizard"
)

type deliveryUsecase interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	History(ctx context.Context, deliveryID int64) ([]domain.StatusHistoryEntry, error)
	Transition(ctx context.Context, in delivery.TransitionInput) (delivery.TransitionResult, error)
	ReportIssue(ctx context.Context, in delivery.IssueInput) (delivery.IssueResult, error)
	Resume(ctx context.Context, deliveryID, adminID int64, note string) (delivery.TransitionResult, error)
}

type assignmentUsecase interface {
	Accept(ctx context.Context, in delivery.AssignmentAction) (*domain.Assignment, error)
	Decline(ctx context.Context, in delivery.DeclineInput) (*domain.Assignment, error)
	Start(ctx context.Context, assignmentID, driverID int64, startingMileage *float64) (*domain.Assignment, error)
	Complete(ctx context.Context, assignmentID, driverID int64, endingMileage *float64) (*domain.Assignment, error)
	RecordMileage(ctx context.Context, in delivery.MileageInput) (*domain.Assignment, error)
}

type photoUsecase interface {
	Capture(ctx context.Context, in photos.CaptureInput) (photos.CaptureResult, error)
	Checklist(ctx context.Context, deliveryID int64) (photos.Checklist, error)
}

type trackingUsecase interface {
	RecordPoint(ctx context.Context, p domain.GPSPoint) (tracking.IngestResult, error)
	IngestBatch(ctx context.Context, b domain.GPSBatch) (tracking.IngestResult, error)
}

type qualityUsecase interface {
	Validate(ctx context.Context, deliveryID int64) (quality.Report, error)
}

type wizardUsecase interface {
	View(ctx context.Context, deliveryID int64, step *int) (wizard.View, error)
	Start(ctx context.Context, in wizard.MoveInput) (wizard.View, error)
	Advance(ctx context.Context, in wizard.MoveInput) (wizard.View, error)
}

var (
	_ deliveryUsecase   = (*delivery.Service)(nil)
	_ assignmentUsecase = (*delivery.Service)(nil)
	_ photoUsecase      = (*photos.Service)(nil)
	_ trackingUsecase   = (*tracking.Service)(nil)
	_ qualityUsecase    = (*quality.Service)(nil)
	_ wizardUsecase     = (*wizard.Service)(nil)
)
