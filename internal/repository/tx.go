package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

var _ deliverytx.Repository = (*TxRepo)(nil)

// GetDeliveryForUpdate loads a delivery and locks its row until the transaction ends.
func (r *TxRepo) GetDeliveryForUpdate(ctx context.Context, id int64) (*domain.Delivery, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1 FOR UPDATE`, id)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("delivery %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("lock delivery %d: %w", id, err)
	}
	return d, nil
}

// UpdateDeliveryStatus writes status fields guarded by d.Version and bumps the version.
func (r *TxRepo) UpdateDeliveryStatus(ctx context.Context, d *domain.Delivery) error {
	var delayedFrom *string
	if d.DelayedFrom != nil {
		s := string(*d.DelayedFrom)
		delayedFrom = &s
	}
	err := r.tx.QueryRow(ctx, `
        UPDATE deliveries
        SET status = $3, delayed_from = $4, completed_at = $5, completion_notes = $6,
            version = version + 1, updated_at = now()
        WHERE id = $1 AND version = $2
        RETURNING version, updated_at
    `, d.ID, d.Version, string(d.Status), delayedFrom, d.CompletedAt, d.CompletionNotes,
	).Scan(&d.Version, &d.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("delivery %d version %d: %w", d.ID, d.Version, apperr.ErrConflict)
		}
		return fmt.Errorf("update delivery %d: %w", d.ID, err)
	}
	return nil
}

const assignmentColumns = `id, delivery_id, driver_id, role, status, assigned_at, accepted_at,
        declined_at, decline_reason, started_at, completed_at, starting_mileage, ending_mileage, phase_times`

// DriverAssignment returns the driver's most recent assignment on a delivery, or nil.
func (r *TxRepo) DriverAssignment(ctx context.Context, deliveryID, driverID int64) (*domain.Assignment, error) {
	row := r.tx.QueryRow(ctx, `
        SELECT `+assignmentColumns+`
        FROM delivery_assignments
        WHERE delivery_id = $1 AND driver_id = $2
        ORDER BY (status IN ('accepted', 'in_progress')) DESC, assigned_at DESC, id DESC
        LIMIT 1
        FOR UPDATE
    `, deliveryID, driverID)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("driver assignment %d/%d: %w", deliveryID, driverID, err)
	}
	return a, nil
}

// GetAssignmentForUpdate loads an assignment and locks its row.
func (r *TxRepo) GetAssignmentForUpdate(ctx context.Context, id int64) (*domain.Assignment, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM delivery_assignments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("assignment %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("lock assignment %d: %w", id, err)
	}
	return a, nil
}

// InsertAssignment inserts a new assignment.
func (r *TxRepo) InsertAssignment(ctx context.Context, a *domain.Assignment) error {
	err := r.tx.QueryRow(ctx, `
        INSERT INTO delivery_assignments (delivery_id, driver_id, role, status, assigned_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, a.DeliveryID, a.DriverID, string(a.Role), string(a.Status), a.AssignedAt).Scan(&a.ID)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("assignment %d/%d/%s: %w", a.DeliveryID, a.DriverID, a.Role, apperr.ErrConflict)
		}
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// UpdateAssignment writes the mutable assignment fields.
func (r *TxRepo) UpdateAssignment(ctx context.Context, a *domain.Assignment) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE delivery_assignments
        SET status = $2, accepted_at = $3, declined_at = $4, decline_reason = $5,
            started_at = $6, completed_at = $7, starting_mileage = $8, ending_mileage = $9
        WHERE id = $1
    `, a.ID, string(a.Status), a.AcceptedAt, a.DeclinedAt, a.DeclineReason,
		a.StartedAt, a.CompletedAt, a.StartingMileage, a.EndingMileage)
	if err != nil {
		return fmt.Errorf("update assignment %d: %w", a.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("assignment %d: %w", a.ID, apperr.ErrNotFound)
	}
	return nil
}

// SetPhaseTime records when the assignment's delivery entered phase.
func (r *TxRepo) SetPhaseTime(ctx context.Context, assignmentID int64, phase domain.DeliveryStatus, at time.Time) error {
	_, err := r.tx.Exec(ctx, `
        UPDATE delivery_assignments
        SET phase_times = phase_times || jsonb_build_object($2::text, $3::text)
        WHERE id = $1
    `, assignmentID, string(phase), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("set phase time %d/%s: %w", assignmentID, phase, err)
	}
	return nil
}

// PhotoCategories returns the distinct photo categories stored for a delivery.
func (r *TxRepo) PhotoCategories(ctx context.Context, deliveryID int64) ([]domain.PhotoCategory, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT DISTINCT category FROM delivery_photos WHERE delivery_id = $1 ORDER BY category
    `, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("photo categories %d: %w", deliveryID, err)
	}
	defer rows.Close()

	out := make([]domain.PhotoCategory, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, domain.PhotoCategory(c))
	}
	return out, rows.Err()
}

// InsertHistory appends a status history entry.
func (r *TxRepo) InsertHistory(ctx context.Context, e *domain.StatusHistoryEntry) error {
	lat, lon, acc := locationArgs(e.Location)
	err := r.tx.QueryRow(ctx, `
        INSERT INTO delivery_status_history
            (delivery_id, from_status, status, actor_id, note, latitude, longitude, accuracy, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `, e.DeliveryID, string(e.FromStatus), string(e.Status), e.ActorID, e.Note,
		lat, lon, acc, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// InsertIssue records a reported issue.
func (r *TxRepo) InsertIssue(ctx context.Context, i *domain.Issue) error {
	lat, lon, acc := locationArgs(i.Location)
	err := r.tx.QueryRow(ctx, `
        INSERT INTO delivery_issues
            (delivery_id, type, severity, description, latitude, longitude, accuracy, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `, i.DeliveryID, string(i.Type), string(i.Severity), i.Description,
		lat, lon, acc, i.CreatedBy, i.CreatedAt).Scan(&i.ID)
	if err != nil {
		return fmt.Errorf("insert issue: %w", err)
	}
	return nil
}

// EnqueueNotification writes an outbox row in the current transaction.
func (r *TxRepo) EnqueueNotification(ctx context.Context, n domain.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	_, err = r.tx.Exec(ctx, `
        INSERT INTO notification_outbox (id, delivery_id, event, payload, next_attempt_at, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, n.ID.String(), n.DeliveryID, string(n.Event), payload, n.NextAttemptAt, string(domain.NotificationPending), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	var (
		a            domain.Assignment
		role, status string
		phaseTimes   []byte
	)
	if err := row.Scan(&a.ID, &a.DeliveryID, &a.DriverID, &role, &status, &a.AssignedAt,
		&a.AcceptedAt, &a.DeclinedAt, &a.DeclineReason, &a.StartedAt, &a.CompletedAt,
		&a.StartingMileage, &a.EndingMileage, &phaseTimes); err != nil {
		return nil, err
	}
	a.Role = domain.AssignmentRole(role)
	a.Status = domain.AssignmentStatus(status)

	raw := map[string]time.Time{}
	if len(phaseTimes) > 0 {
		if err := json.Unmarshal(phaseTimes, &raw); err != nil {
			return nil, fmt.Errorf("decode phase times: %w", err)
		}
	}
	a.PhaseTimes = make(map[domain.DeliveryStatus]time.Time, len(raw))
	for k, v := range raw {
		a.PhaseTimes[domain.DeliveryStatus(k)] = v
	}
	return &a, nil
}
