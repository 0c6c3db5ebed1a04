package deliverytx

import (
	"context"
	"time"

	"mobile-home-delivery/internal/domain"
)

// Repository is the set of delivery mutations available inside one transaction.
type Repository interface {
	GetDeliveryForUpdate(ctx context.Context, id int64) (*domain.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, d *domain.Delivery) error

	DriverAssignment(ctx context.Context, deliveryID, driverID int64) (*domain.Assignment, error)
	GetAssignmentForUpdate(ctx context.Context, id int64) (*domain.Assignment, error)
	InsertAssignment(ctx context.Context, a *domain.Assignment) error
	UpdateAssignment(ctx context.Context, a *domain.Assignment) error
	SetPhaseTime(ctx context.Context, assignmentID int64, phase domain.DeliveryStatus, at time.Time) error

	PhotoCategories(ctx context.Context, deliveryID int64) ([]domain.PhotoCategory, error)
	InsertHistory(ctx context.Context, e *domain.StatusHistoryEntry) error
	InsertIssue(ctx context.Context, i *domain.Issue) error
	EnqueueNotification(ctx context.Context, n domain.Notification) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
