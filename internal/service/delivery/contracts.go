package delivery

import (
	"context"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/ports/deliverytx"
)

type deliveryRepository interface {
	deliverytx.Runner
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	History(ctx context.Context, deliveryID int64) ([]domain.StatusHistoryEntry, error)
	Assignment(ctx context.Context, id int64) (*domain.Assignment, error)
	Assignments(ctx context.Context, deliveryID int64) ([]domain.Assignment, error)
}
