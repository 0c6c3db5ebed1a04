package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
)

// Sink delivers points to the server.
type Sink interface {
	SendPoint(ctx context.Context, p domain.GPSPoint) error
	SendBatch(ctx context.Context, b domain.GPSBatch) error
}

// permanent is implemented by sink errors that would fail the same way on every retry.
type permanent interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}

// ErrSessionRunning is returned by Start on a session that is already running.
var ErrSessionRunning = errors.New("tracking session already running")

// SessionConfig stores per-delivery session settings.
type SessionConfig struct {
	DeliveryID   int64
	DriverID     int64
	SyncInterval time.Duration
	MaxBackoff   time.Duration
}

// Stats counts what a session has done so far.
type Stats struct {
	Received int
	Accepted int
	Sent     int
	Queued   int
	Synced   int
	Dropped  int
}

// Session owns the location watch and the periodic batch sync for one delivery.
type Session struct {
	cfg    SessionConfig
	source LocationSource
	opt    *Optimizer
	queue  *Queue
	sink   Sink
	logger logx.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	failures int
	stats    Stats
	done     chan struct{}

	syncMu sync.Mutex
}

// NewSession creates a new Session.
func NewSession(cfg SessionConfig, source LocationSource, opt *Optimizer, queue *Queue, sink Sink, logger logx.Logger) *Session {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Minute
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Session{
		cfg:    cfg,
		source: source,
		opt:    opt,
		queue:  queue,
		sink:   sink,
		logger: logger.With(logx.Int64("delivery_id", cfg.DeliveryID), logx.Int64("driver_id", cfg.DriverID)),
	}
}

// Start restores spooled points and launches the watch and sync loops.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSessionRunning
	}

	restored, err := s.queue.Restore(ctx, s.cfg.DeliveryID)
	if err != nil {
		s.logger.Warn("spool restore failed", logx.String("event", "spool_restore_failed"), logx.Err(err))
	} else if restored > 0 {
		s.logger.Info("restored spooled points", logx.String("event", "spool_restored"), logx.Int("points", restored))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(2)
	go s.watchLoop(runCtx)
	go s.syncLoop(runCtx)

	s.logger.Info("tracking started", logx.String("event", "tracking_started"))
	return nil
}

// Done is closed when the location source is exhausted or the session stops.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Stop ends both loops and attempts a final flush.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	err := s.Flush(ctx)
	s.logger.Info("tracking stopped",
		logx.String("event", "tracking_stopped"),
		logx.Int("queued", s.queue.Len()),
	)
	return err
}

// Cleanup stops the session if needed and releases the spool and optimizer state.
func (s *Session) Cleanup(ctx context.Context) error {
	stopErr := s.Stop(ctx)
	s.opt.Cleanup()
	return errors.Join(stopErr, s.queue.Close())
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Queued = s.queue.Len()
	return st
}

// Flush sends queued points in batches of at most domain.MaxGPSBatchSize.
// A batch the server refuses for good is dropped; on any other failure the
// unsent points are put back and the error is returned.
func (s *Session) Flush(ctx context.Context) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	points := s.discardInvalid(ctx, s.queue.Drain())
	for len(points) > 0 {
		n := min(len(points), domain.MaxGPSBatchSize)
		chunk := points[:n]

		batch, err := s.sendBatch(ctx, chunk)
		switch {
		case err == nil:
			s.ack(ctx, chunk)
			s.mu.Lock()
			s.stats.Synced += n
			s.mu.Unlock()
			s.logger.Info("batch synced",
				logx.String("event", "batch_synced"),
				logx.Int("points", n),
				logx.Time("started_at", batch.StartedAt),
				logx.Time("ended_at", batch.EndedAt),
			)
		case isPermanent(err):
			s.ack(ctx, chunk)
			s.mu.Lock()
			s.stats.Dropped += n
			s.mu.Unlock()
			s.logger.Error("batch rejected, points dropped",
				logx.String("event", "batch_rejected"),
				logx.Int("points", n),
				logx.Err(err),
			)
		default:
			s.queue.Requeue(points)
			s.logger.Warn("batch sync failed",
				logx.String("event", "batch_sync_failed"),
				logx.Int("points", len(points)),
				logx.Err(err),
			)
			return fmt.Errorf("sync %d points: %w", len(points), err)
		}
		points = points[n:]
	}
	return nil
}

func (s *Session) sendBatch(ctx context.Context, points []domain.GPSPoint) (domain.GPSBatch, error) {
	batch := domain.GPSBatch{
		DeliveryID: s.cfg.DeliveryID,
		DriverID:   s.cfg.DriverID,
		StartedAt:  points[0].RecordedAt,
		EndedAt:    points[0].RecordedAt,
		Points:     points,
	}
	for _, p := range points[1:] {
		if p.RecordedAt.Before(batch.StartedAt) {
			batch.StartedAt = p.RecordedAt
		}
		if p.RecordedAt.After(batch.EndedAt) {
			batch.EndedAt = p.RecordedAt
		}
	}
	return batch, s.sink.SendBatch(ctx, batch)
}

// discardInvalid drops points the server would refuse, such as ones spooled
// by an older agent, so they cannot hold back the rest of the queue.
func (s *Session) discardInvalid(ctx context.Context, points []domain.GPSPoint) []domain.GPSPoint {
	valid := make([]domain.GPSPoint, 0, len(points))
	var invalid []domain.GPSPoint
	for _, p := range points {
		if p.Valid() {
			valid = append(valid, p)
		} else {
			invalid = append(invalid, p)
		}
	}
	if len(invalid) == 0 {
		return points
	}
	s.ack(ctx, invalid)
	s.mu.Lock()
	s.stats.Dropped += len(invalid)
	s.mu.Unlock()
	s.logger.Warn("invalid queued points dropped",
		logx.String("event", "queued_points_invalid"),
		logx.Int("points", len(invalid)),
	)
	return valid
}

func (s *Session) ack(ctx context.Context, points []domain.GPSPoint) {
	if err := s.queue.Ack(ctx, points); err != nil {
		s.logger.Warn("spool ack failed", logx.String("event", "spool_ack_failed"), logx.Err(err))
	}
}

func (s *Session) watchLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
	}()

	fixes, errs := s.source.Watch(ctx)
	for fixes != nil || errs != nil {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("location source error", logx.String("event", "location_error"), logx.Err(err))
		case fix, ok := <-fixes:
			if !ok {
				fixes = nil
				continue
			}
			s.handleFix(ctx, fix)
		}
	}
}

func (s *Session) handleFix(ctx context.Context, fix Fix) {
	s.mu.Lock()
	s.stats.Received++
	s.mu.Unlock()

	p, err := fix.Point(s.cfg.DeliveryID, s.cfg.DriverID)
	if err != nil {
		s.logger.Warn("bad fix", logx.String("event", "location_error"), logx.Err(err))
		return
	}
	if !p.Valid() {
		s.mu.Lock()
		s.stats.Dropped++
		s.mu.Unlock()
		s.logger.Warn("fix out of range, dropped",
			logx.String("event", "fix_invalid"),
			logx.Float64("lat", p.Latitude),
			logx.Float64("lon", p.Longitude),
			logx.Float64("accuracy", p.Accuracy),
			logx.Time("recorded_at", p.RecordedAt),
		)
		return
	}
	if !s.opt.AddPoint(p) {
		return
	}

	s.mu.Lock()
	s.stats.Accepted++
	s.mu.Unlock()

	if err := s.sink.SendPoint(ctx, p); err != nil {
		if qErr := s.queue.Push(ctx, p); qErr != nil {
			s.logger.Warn("spool save failed", logx.String("event", "spool_save_failed"), logx.Err(qErr))
		}
		s.logger.Debug("point queued",
			logx.String("event", "point_queued"),
			logx.Int("queue_len", s.queue.Len()),
			logx.Err(err),
		)
		return
	}

	s.mu.Lock()
	s.stats.Sent++
	s.mu.Unlock()
}

func (s *Session) syncLoop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.syncDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			err := s.Flush(ctx)
			s.mu.Lock()
			if err != nil {
				s.failures++
			} else {
				s.failures = 0
			}
			s.mu.Unlock()
			timer.Reset(s.syncDelay())
		}
	}
}

func (s *Session) syncDelay() time.Duration {
	s.mu.Lock()
	failures := s.failures
	s.mu.Unlock()
	return backoff(s.cfg.SyncInterval, s.cfg.MaxBackoff, failures+1)
}

// backoff returns base doubled for every attempt after the first, capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	if attempt <= 1 {
		return base
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= limit {
			return limit
		}
	}
	return d
}
