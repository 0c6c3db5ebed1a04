package repository

import (
	"context"
	"fmt"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
)

// Assignment returns an assignment by id.
func (r *DeliveryRepo) Assignment(ctx context.Context, id int64) (*domain.Assignment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("assignment %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("get assignment %d: %w", id, err)
	}
	return a, nil
}

// Assignments returns every assignment on a delivery.
func (r *DeliveryRepo) Assignments(ctx context.Context, deliveryID int64) ([]domain.Assignment, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+assignmentColumns+`
        FROM delivery_assignments
        WHERE delivery_id = $1
        ORDER BY assigned_at, id
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("list assignments %d: %w", deliveryID, err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ActiveAssignment returns the driver's accepted or in-progress assignment on a delivery, or nil.
func (r *DeliveryRepo) ActiveAssignment(ctx context.Context, deliveryID, driverID int64) (*domain.Assignment, error) {
	row := r.db.QueryRow(ctx, `
        SELECT `+assignmentColumns+`
        FROM delivery_assignments
        WHERE delivery_id = $1 AND driver_id = $2 AND status IN ('accepted', 'in_progress')
        ORDER BY assigned_at DESC, id DESC
        LIMIT 1
    `, deliveryID, driverID)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("active assignment %d/%d: %w", deliveryID, driverID, err)
	}
	return a, nil
}
