package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mobile-home-delivery/internal/domain"
)

// GPSRepo represents GPS tracking repository.
type GPSRepo struct{ db *pgxpool.Pool }

// NewGPSRepo creates a new GPSRepo.
func NewGPSRepo(db *pgxpool.Pool) *GPSRepo { return &GPSRepo{db: db} }

const insertPointSQL = `
        INSERT INTO delivery_gps_tracking
            (id, delivery_id, driver_id, latitude, longitude, accuracy, speed, heading, battery, recorded_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (id) DO NOTHING`

// InsertPoints stores points in one transaction. Points whose id already
// exists are skipped. It returns the number of rows actually inserted.
func (r *GPSRepo) InsertPoints(ctx context.Context, points []domain.GPSPoint) (int64, error) {
	if len(points) == 0 {
		return 0, nil
	}

	var inserted int64
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range points {
			batch.Queue(insertPointSQL, p.ID.String(), p.DeliveryID, p.DriverID,
				p.Latitude, p.Longitude, p.Accuracy, p.Speed, p.Heading, p.Battery, p.RecordedAt)
		}
		br := tx.SendBatch(ctx, batch)
		for range points {
			ct, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("insert gps point: %w", err)
			}
			inserted += ct.RowsAffected()
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Latest returns the most recent point for a delivery, or nil if none.
func (r *GPSRepo) Latest(ctx context.Context, deliveryID int64) (*domain.GPSPoint, error) {
	var (
		p  domain.GPSPoint
		id string
	)
	err := r.db.QueryRow(ctx, `
        SELECT id, delivery_id, driver_id, latitude, longitude, accuracy, speed, heading, battery, recorded_at
        FROM delivery_gps_tracking
        WHERE delivery_id = $1
        ORDER BY recorded_at DESC
        LIMIT 1
    `, deliveryID).Scan(&id, &p.DeliveryID, &p.DriverID, &p.Latitude, &p.Longitude, &p.Accuracy,
		&p.Speed, &p.Heading, &p.Battery, &p.RecordedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest gps point %d: %w", deliveryID, err)
	}
	if p.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse gps point id %q: %w", id, err)
	}
	return &p, nil
}
