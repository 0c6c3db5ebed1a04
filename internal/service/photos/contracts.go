package photos

import (
	"context"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/storage"
)

type deliveryReader interface {
	Get(ctx context.Context, id int64) (*domain.Delivery, error)
	ActiveAssignment(ctx context.Context, deliveryID, driverID int64) (*domain.Assignment, error)
}

type photoRepository interface {
	Insert(ctx context.Context, p *domain.Photo) error
	ListByDelivery(ctx context.Context, deliveryID int64) ([]domain.Photo, error)
}

type objectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (storage.Object, error)
}
