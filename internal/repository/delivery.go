package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/ports/deliverytx"
)

const deliveryColumns = `id, delivery_number, status, delayed_from, customer_name, customer_phone,
        pickup_address, delivery_address, special_instructions, completion_notes,
        completed_at, version, created_at, updated_at`

// DeliveryRepo represents delivery repository.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx deliverytx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				panic(rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Create inserts a new scheduled delivery.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	if d.Status == "" {
		d.Status = domain.StatusScheduled
	}
	err := r.db.QueryRow(ctx, `
        INSERT INTO deliveries (delivery_number, status, customer_name, customer_phone,
            pickup_address, delivery_address, special_instructions)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, version, created_at, updated_at
    `, d.Number, string(d.Status), d.CustomerName, d.CustomerPhone,
		d.PickupAddress, d.DeliveryAddress, d.SpecialInstructions,
	).Scan(&d.ID, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("delivery %q: %w", d.Number, apperr.ErrConflict)
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// Get returns a delivery by id.
func (r *DeliveryRepo) Get(ctx context.Context, id int64) (*domain.Delivery, error) {
	row := r.db.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("delivery %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get delivery %d: %w", id, err)
	}
	return d, nil
}

// History returns the status history of a delivery, oldest first.
func (r *DeliveryRepo) History(ctx context.Context, deliveryID int64) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, delivery_id, from_status, status, actor_id, note,
               latitude, longitude, accuracy, created_at
        FROM delivery_status_history
        WHERE delivery_id = $1
        ORDER BY created_at, id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list history %d: %w", deliveryID, err)
	}
	defer rows.Close()

	out := make([]domain.StatusHistoryEntry, 0)
	for rows.Next() {
		var (
			e             domain.StatusHistoryEntry
			from, to      string
			lat, lon, acc *float64
		)
		if err := rows.Scan(&e.ID, &e.DeliveryID, &from, &to, &e.ActorID, &e.Note,
			&lat, &lon, &acc, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.FromStatus = domain.DeliveryStatus(from)
		e.Status = domain.DeliveryStatus(to)
		e.Location = scanLocation(lat, lon, acc)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Issues returns the issues reported against a delivery.
func (r *DeliveryRepo) Issues(ctx context.Context, deliveryID int64) ([]domain.Issue, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, delivery_id, type, severity, description,
               latitude, longitude, accuracy, created_by, created_at, resolved_at
        FROM delivery_issues
        WHERE delivery_id = $1
        ORDER BY created_at, id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list issues %d: %w", deliveryID, err)
	}
	defer rows.Close()

	out := make([]domain.Issue, 0)
	for rows.Next() {
		var (
			i             domain.Issue
			typ, severity string
			lat, lon, acc *float64
		)
		if err := rows.Scan(&i.ID, &i.DeliveryID, &typ, &severity, &i.Description,
			&lat, &lon, &acc, &i.CreatedBy, &i.CreatedAt, &i.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		i.Type = domain.IssueType(typ)
		i.Severity = domain.Severity(severity)
		i.Location = scanLocation(lat, lon, acc)
		out = append(out, i)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var (
		d           domain.Delivery
		status      string
		delayedFrom *string
	)
	if err := row.Scan(&d.ID, &d.Number, &status, &delayedFrom, &d.CustomerName, &d.CustomerPhone,
		&d.PickupAddress, &d.DeliveryAddress, &d.SpecialInstructions, &d.CompletionNotes,
		&d.CompletedAt, &d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = domain.DeliveryStatus(status)
	if delayedFrom != nil {
		s := domain.DeliveryStatus(*delayedFrom)
		d.DelayedFrom = &s
	}
	return &d, nil
}

func scanLocation(lat, lon, acc *float64) *domain.Location {
	if lat == nil || lon == nil {
		return nil
	}
	l := &domain.Location{Latitude: *lat, Longitude: *lon}
	if acc != nil {
		l.Accuracy = *acc
	}
	return l
}

func locationArgs(l *domain.Location) (lat, lon, acc *float64) {
	if l == nil {
		return nil, nil, nil
	}
	la, lo := l.Latitude, l.Longitude
	lat, lon = &la, &lo
	if l.Accuracy > 0 {
		a := l.Accuracy
		acc = &a
	}
	return lat, lon, acc
}
