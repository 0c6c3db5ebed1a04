package tracking

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"mobile-home-delivery/internal/domain"
)

// Spool persists queued points across restarts.
type Spool interface {
	Save(ctx context.Context, points []domain.GPSPoint) error
	Load(ctx context.Context, deliveryID int64) ([]domain.GPSPoint, error)
	Delete(ctx context.Context, ids []uuid.UUID) error
	Close() error
}

// Queue is a FIFO of GPS points awaiting batch sync, safe for concurrent use.
// With a spool attached, pushed points are also written to durable storage
// and removed from it only after Ack.
type Queue struct {
	mu    sync.Mutex
	items []domain.GPSPoint
	spool Spool
}

// NewQueue creates a new Queue. spool may be nil.
func NewQueue(spool Spool) *Queue {
	return &Queue{spool: spool}
}

// Push appends p. The point is always kept in memory; a spool error is returned for logging.
func (q *Queue) Push(ctx context.Context, p domain.GPSPoint) error {
	q.mu.Lock()
	q.items = append(q.items, p)
	q.mu.Unlock()

	if q.spool == nil {
		return nil
	}
	return q.spool.Save(ctx, []domain.GPSPoint{p})
}

// Len returns the number of queued points.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain removes and returns every queued point in one step.
func (q *Queue) Drain() []domain.GPSPoint {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Requeue puts points back at the front, ahead of anything pushed since they were drained.
func (q *Queue) Requeue(points []domain.GPSPoint) {
	if len(points) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]domain.GPSPoint, 0, len(points)+len(q.items))
	merged = append(merged, points...)
	merged = append(merged, q.items...)
	q.items = merged
}

// Ack drops synced points from the spool.
func (q *Queue) Ack(ctx context.Context, points []domain.GPSPoint) error {
	if q.spool == nil || len(points) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(points))
	for i, p := range points {
		ids[i] = p.ID
	}
	return q.spool.Delete(ctx, ids)
}

// Restore loads spooled points for a delivery into memory, skipping ids already queued.
func (q *Queue) Restore(ctx context.Context, deliveryID int64) (int, error) {
	if q.spool == nil {
		return 0, nil
	}
	points, err := q.spool.Load(ctx, deliveryID)
	if err != nil {
		return 0, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	seen := make(map[uuid.UUID]struct{}, len(q.items))
	for _, p := range q.items {
		seen[p.ID] = struct{}{}
	}
	restored := make([]domain.GPSPoint, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		restored = append(restored, p)
	}
	q.items = append(restored, q.items...)
	return len(restored), nil
}

// Close releases the spool.
func (q *Queue) Close() error {
	if q.spool == nil {
		return nil
	}
	return q.spool.Close()
}
