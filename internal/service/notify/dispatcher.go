package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
)

type outboxRepository interface {
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, attempts int) error
	Reschedule(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
}

// DispatcherConfig tunes outbox draining.
type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Lease is how long a claimed row stays invisible to other workers.
	Lease time.Duration
	// SendTimeout bounds a single notification send.
	SendTimeout time.Duration
}

// DefaultDispatcherConfig returns the default outbox settings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BatchSize:   50,
		MaxAttempts: 8,
		BaseBackoff: 5 * time.Second,
		MaxBackoff:  10 * time.Minute,
		Lease:       2 * time.Minute,
		SendTimeout: 15 * time.Second,
	}
}

// RunStats summarizes one RunOnce pass.
type RunStats struct {
	Claimed     int
	Sent        int
	Skipped     int
	Rescheduled int
	Dead        int
}

// Dispatcher drains due outbox rows through a Notifier.
type Dispatcher struct {
	repo     outboxRepository
	notifier Notifier
	cfg      DispatcherConfig
	results  *prometheus.CounterVec
	logger   logx.Logger
	now      func() time.Time
}

// NewDispatcher - creates a new Dispatcher. results may be nil.
func NewDispatcher(repo outboxRepository, n Notifier, cfg DispatcherConfig, results *prometheus.CounterVec, logger logx.Logger) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.BaseBackoff)
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Dispatcher{
		repo:     repo,
		notifier: n,
		cfg:      cfg,
		results:  results,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce claims one batch of due rows and sends each. Send failures are
// rescheduled with exponential backoff and never surface as an error;
// only storage failures do.
func (d *Dispatcher) RunOnce(ctx context.Context) (RunStats, error) {
	var stats RunStats
	batch, err := d.repo.ClaimDue(ctx, d.now(), d.cfg.BatchSize, d.cfg.Lease)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(batch)

	for _, n := range batch {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := d.dispatch(ctx, n, &stats); err != nil {
			return stats, err
		}
	}

	if stats.Claimed > 0 {
		d.logger.Info("outbox drained",
			logx.String("event", "outbox_run"),
			logx.Int("claimed", stats.Claimed),
			logx.Int("sent", stats.Sent),
			logx.Int("rescheduled", stats.Rescheduled),
			logx.Int("dead", stats.Dead),
		)
	}
	return stats, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, n domain.Notification, stats *RunStats) error {
	attempts := n.Attempts + 1

	if !d.notifier.Handles(n) {
		stats.Skipped++
		d.count(n.Event, "skipped")
		return d.repo.MarkSent(ctx, n.ID, n.Attempts)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	sendErr := d.notifier.Send(sendCtx, n)
	cancel()

	if sendErr == nil {
		stats.Sent++
		d.count(n.Event, "sent")
		return d.repo.MarkSent(ctx, n.ID, attempts)
	}

	if attempts >= d.cfg.MaxAttempts {
		stats.Dead++
		d.count(n.Event, "dead")
		d.logger.Error("notification dead",
			logx.String("event", "notification_dead"),
			logx.String("notification_id", n.ID.String()),
			logx.String("type", string(n.Event)),
			logx.Int64("delivery_id", n.DeliveryID),
			logx.Int("attempts", attempts),
			logx.Err(sendErr),
		)
		return d.repo.MarkDead(ctx, n.ID, attempts, sendErr.Error())
	}

	next := d.now().Add(backoff(d.cfg.BaseBackoff, d.cfg.MaxBackoff, attempts))
	stats.Rescheduled++
	d.count(n.Event, "retry")
	d.logger.Warn("notification send failed",
		logx.String("event", "notification_retry"),
		logx.String("notification_id", n.ID.String()),
		logx.String("type", string(n.Event)),
		logx.Int("attempts", attempts),
		logx.Time("next_attempt_at", next),
		logx.Err(sendErr),
	)
	return d.repo.Reschedule(ctx, n.ID, attempts, next, sendErr.Error())
}

func (d *Dispatcher) count(event domain.EventType, result string) {
	if d.results == nil {
		return
	}
	d.results.WithLabelValues(string(event), result).Inc()
}

// backoff returns base * 2^(attempt-1), capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return min(delay, limit)
}
