package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
)

// PhotoRepo represents photo repository.
type PhotoRepo struct{ db *pgxpool.Pool }

// NewPhotoRepo creates a new PhotoRepo.
func NewPhotoRepo(db *pgxpool.Pool) *PhotoRepo { return &PhotoRepo{db: db} }

// Insert stores photo metadata.
func (r *PhotoRepo) Insert(ctx context.Context, p *domain.Photo) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	lat, lon, acc := locationArgs(p.Location)
	_, err := r.db.Exec(ctx, `
        INSERT INTO delivery_photos (id, delivery_id, driver_id, category, url, caption, taken_at,
            latitude, longitude, accuracy, original_size, optimized_size, compression_ratio)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, p.ID.String(), p.DeliveryID, p.DriverID, string(p.Category), p.URL, p.Caption, p.TakenAt,
		lat, lon, acc, p.OriginalSize, p.OptimizedSize, p.CompressionRatio)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("photo %s: %w", p.ID, apperr.ErrConflict)
		}
		return fmt.Errorf("insert photo: %w", err)
	}
	return nil
}

// ListByDelivery returns a delivery's photos ordered by capture time.
func (r *PhotoRepo) ListByDelivery(ctx context.Context, deliveryID int64) ([]domain.Photo, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, delivery_id, driver_id, category, url, caption, taken_at,
               latitude, longitude, accuracy, original_size, optimized_size, compression_ratio
        FROM delivery_photos
        WHERE delivery_id = $1
        ORDER BY taken_at, id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list photos %d: %w", deliveryID, err)
	}
	defer rows.Close()

	out := make([]domain.Photo, 0)
	for rows.Next() {
		var (
			p             domain.Photo
			id, category  string
			lat, lon, acc *float64
		)
		if err := rows.Scan(&id, &p.DeliveryID, &p.DriverID, &category, &p.URL, &p.Caption, &p.TakenAt,
			&lat, &lon, &acc, &p.OriginalSize, &p.OptimizedSize, &p.CompressionRatio); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse photo id %q: %w", id, err)
		}
		p.Category = domain.PhotoCategory(category)
		p.Location = scanLocation(lat, lon, acc)
		out = append(out, p)
	}
	return out, rows.Err()
}
