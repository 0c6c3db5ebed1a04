package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mobile-home-delivery/internal/domain"
)

// OutboxRepo represents notification outbox repository.
type OutboxRepo struct{ db *pgxpool.Pool }

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(db *pgxpool.Pool) *OutboxRepo { return &OutboxRepo{db: db} }

// ClaimDue locks up to limit pending rows due at now, pushes their
// next_attempt_at forward by lease so concurrent workers skip them, and
// returns them.
func (r *OutboxRepo) ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Notification, error) {
	var out []domain.Notification
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            SELECT id, delivery_id, event, payload, attempts, next_attempt_at, last_error, status, created_at
            FROM notification_outbox
            WHERE status = 'pending' AND next_attempt_at <= $1
            ORDER BY next_attempt_at, created_at
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        `, now, limit)
		if err != nil {
			return fmt.Errorf("select due notifications: %w", err)
		}
		out, err = scanNotifications(rows)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}

		ids := make([]string, len(out))
		for i, n := range out {
			ids[i] = n.ID.String()
		}
		if _, err := tx.Exec(ctx, `
            UPDATE notification_outbox SET next_attempt_at = $2 WHERE id = ANY($1::uuid[])
        `, ids, now.Add(lease)); err != nil {
			return fmt.Errorf("lease notifications: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSent marks a notification delivered.
func (r *OutboxRepo) MarkSent(ctx context.Context, id uuid.UUID, attempts int) error {
	_, err := r.db.Exec(ctx, `
        UPDATE notification_outbox SET status = 'sent', attempts = $2, last_error = '' WHERE id = $1
    `, id.String(), attempts)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", id, err)
	}
	return nil
}

// Reschedule records a failed attempt and the next due time.
func (r *OutboxRepo) Reschedule(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE notification_outbox SET attempts = $2, next_attempt_at = $3, last_error = $4 WHERE id = $1
    `, id.String(), attempts, next, lastErr)
	if err != nil {
		return fmt.Errorf("reschedule %s: %w", id, err)
	}
	return nil
}

// MarkDead stops retrying a notification.
func (r *OutboxRepo) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE notification_outbox SET status = 'dead', attempts = $2, last_error = $3 WHERE id = $1
    `, id.String(), attempts, lastErr)
	if err != nil {
		return fmt.Errorf("mark dead %s: %w", id, err)
	}
	return nil
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n                 domain.Notification
			id, event, status string
			payload           []byte
		)
		if err := rows.Scan(&id, &n.DeliveryID, &event, &payload, &n.Attempts, &n.NextAttemptAt,
			&n.LastError, &status, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		var err error
		if n.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse notification id %q: %w", id, err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, fmt.Errorf("decode payload %s: %w", id, err)
			}
		}
		n.Event = domain.EventType(event)
		n.Status = domain.NotificationStatus(status)
		out = append(out, n)
	}
	return out, rows.Err()
}
