package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"mobile-home-delivery/internal/domain"
)

type spooledPoint struct {
	ID         string `gorm:"primaryKey;size:36"`
	DeliveryID int64  `gorm:"index"`
	DriverID   int64
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	Speed      *float64
	Heading    *float64
	Battery    *float64
	RecordedAt time.Time `gorm:"index"`
	CreatedAt  time.Time
}

func (spooledPoint) TableName() string { return "spooled_gps_points" }

// SQLiteSpool stores queued points in a local SQLite file.
type SQLiteSpool struct {
	db *gorm.DB
}

// OpenSQLiteSpool opens (creating if needed) a spool at path. Use ":memory:" for tests.
func OpenSQLiteSpool(path string) (*SQLiteSpool, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open spool %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open spool %s: %w", path, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&spooledPoint{}); err != nil {
		return nil, fmt.Errorf("migrate spool: %w", err)
	}
	return &SQLiteSpool{db: db}, nil
}

// Save stores points; ids already spooled are ignored.
func (s *SQLiteSpool) Save(ctx context.Context, points []domain.GPSPoint) error {
	if len(points) == 0 {
		return nil
	}
	rows := make([]spooledPoint, len(points))
	for i, p := range points {
		rows[i] = spooledPoint{
			ID:         p.ID.String(),
			DeliveryID: p.DeliveryID,
			DriverID:   p.DriverID,
			Latitude:   p.Latitude,
			Longitude:  p.Longitude,
			Accuracy:   p.Accuracy,
			Speed:      p.Speed,
			Heading:    p.Heading,
			Battery:    p.Battery,
			RecordedAt: p.RecordedAt,
		}
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("spool save: %w", err)
	}
	return nil
}

// Load returns spooled points for a delivery ordered by recording time.
func (s *SQLiteSpool) Load(ctx context.Context, deliveryID int64) ([]domain.GPSPoint, error) {
	var rows []spooledPoint
	err := s.db.WithContext(ctx).
		Where("delivery_id = ?", deliveryID).
		Order("recorded_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("spool load: %w", err)
	}

	out := make([]domain.GPSPoint, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("spool load: bad id %q: %w", r.ID, err)
		}
		out = append(out, domain.GPSPoint{
			ID:         id,
			DeliveryID: r.DeliveryID,
			DriverID:   r.DriverID,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Accuracy:   r.Accuracy,
			Speed:      r.Speed,
			Heading:    r.Heading,
			Battery:    r.Battery,
			RecordedAt: r.RecordedAt,
		})
	}
	return out, nil
}

// Deliveries returns the ids of deliveries with spooled points.
func (s *SQLiteSpool) Deliveries(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).
		Model(&spooledPoint{}).
		Distinct("delivery_id").
		Order("delivery_id").
		Pluck("delivery_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("spool deliveries: %w", err)
	}
	return ids, nil
}

// Delete removes points by id.
func (s *SQLiteSpool) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", keys).Delete(&spooledPoint{}).Error; err != nil {
		return fmt.Errorf("spool delete: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteSpool) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
