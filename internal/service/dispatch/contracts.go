//go:generate mockgen -source=contracts.go -destination=dispatch_mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"
	"time"

	"mobile-home-delivery/internal/domain"
)

// AssignmentPort abstracts the subset of delivery service operations
// needed by the Processor when handling dispatch events
type AssignmentPort interface {
	CreatePending(ctx context.Context, deliveryID, driverID int64, role domain.AssignmentRole, assignedAt time.Time) (*domain.Assignment, error)
	Withdraw(ctx context.Context, deliveryID, driverID int64, reason string) error
}
