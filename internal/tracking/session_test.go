package tracking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/domain"
	testlog "mobile-home-delivery/internal/testutil"
)

type sliceSource struct {
	fixes []Fix
	errs  []error
}

func (s sliceSource) Watch(ctx context.Context) (<-chan Fix, <-chan error) {
	fixes := make(chan Fix)
	errs := make(chan error, len(s.errs))
	for _, err := range s.errs {
		errs <- err
	}
	go func() {
		defer close(fixes)
		defer close(errs)
		for _, f := range s.fixes {
			select {
			case fixes <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return fixes, errs
}

type fakeSink struct {
	mu         sync.Mutex
	failPoints bool
	failBatch  bool
	batchErr   func(n int, b domain.GPSBatch) error
	points     []domain.GPSPoint
	batches    []domain.GPSBatch
}

func (f *fakeSink) SendPoint(_ context.Context, p domain.GPSPoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPoints {
		return errors.New("offline")
	}
	f.points = append(f.points, p)
	return nil
}

func (f *fakeSink) SendBatch(_ context.Context, b domain.GPSBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return errors.New("offline")
	}
	if len(b.Points) > domain.MaxGPSBatchSize {
		return errors.New("batch too large")
	}
	if f.batchErr != nil {
		if err := f.batchErr(len(f.batches), b); err != nil {
			return err
		}
	}
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeSink) setFailBatch(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failBatch = v
}

func movingFixes(n int) []Fix {
	out := make([]Fix, n)
	for i := range out {
		out[i] = Fix{
			Latitude:  45 + float64(i)*0.01,
			Longitude: -93,
			Accuracy:  8,
			Timestamp: t0.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("location source did not finish")
	}
}

func newTestSession(src LocationSource, sink Sink, queue *Queue) *Session {
	return NewSession(SessionConfig{DeliveryID: 1, DriverID: 2, SyncInterval: time.Hour},
		src, NewOptimizer(OptimizerConfig{}), queue, sink, nil)
}

func TestSession_FailedWritesAreQueuedThenSynced(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := &fakeSink{failPoints: true}
	s := newTestSession(sliceSource{fixes: movingFixes(4)}, sink, NewQueue(nil))

	require.NoError(t, s.Start(ctx))
	waitDone(t, s)
	require.Equal(t, 4, s.queue.Len())

	sink.setFailBatch(true)
	require.Error(t, s.Flush(ctx))
	require.Equal(t, 4, s.queue.Len())

	sink.setFailBatch(false)
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 0, s.queue.Len())

	require.Len(t, sink.batches, 1)
	batch := sink.batches[0]
	require.Len(t, batch.Points, 4)
	seen := map[string]bool{}
	for _, p := range batch.Points {
		require.False(t, seen[p.ID.String()], "duplicate point %s", p.ID)
		seen[p.ID.String()] = true
	}
	require.True(t, batch.StartedAt.Equal(t0))
	require.True(t, batch.EndedAt.Equal(t0.Add(3*time.Minute)))

	require.NoError(t, s.Stop(ctx))
	st := s.Stats()
	require.Equal(t, 4, st.Accepted)
	require.Equal(t, 4, st.Synced)
	require.Equal(t, 0, st.Queued)
}

func TestSession_OnlinePointsAreSentImmediately(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := &fakeSink{}
	fixes := movingFixes(3)
	fixes = append(fixes, fixes[2])
	s := newTestSession(sliceSource{fixes: fixes}, sink, NewQueue(nil))

	require.NoError(t, s.Start(ctx))
	waitDone(t, s)
	require.NoError(t, s.Stop(ctx))

	require.Len(t, sink.points, 3)
	require.Empty(t, sink.batches)
	require.Equal(t, 4, s.Stats().Received)
}

func TestSession_StopFlushes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := &fakeSink{failPoints: true}
	s := newTestSession(sliceSource{fixes: movingFixes(2)}, sink, NewQueue(nil))

	require.NoError(t, s.Start(ctx))
	waitDone(t, s)
	require.NoError(t, s.Stop(ctx))
	require.Len(t, sink.batches, 1)
	require.Equal(t, 0, s.Stats().Queued)
}

func TestSession_StartTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestSession(sliceSource{}, &fakeSink{}, NewQueue(nil))
	require.NoError(t, s.Start(ctx))
	require.ErrorIs(t, s.Start(ctx), ErrSessionRunning)
	require.NoError(t, s.Cleanup(ctx))
}

func TestSession_SourceErrorsAreLogged(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	rec := testlog.New()
	s := NewSession(SessionConfig{DeliveryID: 1, DriverID: 2, SyncInterval: time.Hour},
		sliceSource{errs: []error{errors.New("gps denied")}}, NewOptimizer(OptimizerConfig{}),
		NewQueue(nil), &fakeSink{}, rec.Logger())

	require.NoError(t, s.Start(ctx))
	waitDone(t, s)
	require.NoError(t, s.Stop(ctx))

	entries := rec.ByEvent("location_error")
	require.Len(t, entries, 1)
	v, _ := entries[0].Field("error")
	require.True(t, strings.Contains(v.(string), "gps denied"))
}

func TestSession_RestoresSpoolOnStart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	spool, err := OpenSQLiteSpool(":memory:")
	require.NoError(t, err)
	require.NoError(t, spool.Save(ctx, []domain.GPSPoint{point(45, -93, 5, t0)}))

	sink := &fakeSink{}
	s := newTestSession(sliceSource{}, sink, NewQueue(spool))
	require.NoError(t, s.Start(ctx))
	waitDone(t, s)
	require.NoError(t, s.Cleanup(ctx))

	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0].Points, 1)
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	base, limit := 5*time.Minute, 30*time.Minute
	require.Equal(t, 5*time.Minute, backoff(base, limit, 1))
	require.Equal(t, 10*time.Minute, backoff(base, limit, 2))
	require.Equal(t, 20*time.Minute, backoff(base, limit, 3))
	require.Equal(t, 30*time.Minute, backoff(base, limit, 4))
	require.Equal(t, 30*time.Minute, backoff(base, limit, 40))
}

func TestSession_SyncDelayBacksOff(t *testing.T) {
	t.Parallel()

	s := NewSession(SessionConfig{SyncInterval: time.Minute, MaxBackoff: 3 * time.Minute},
		sliceSource{}, NewOptimizer(OptimizerConfig{}), NewQueue(nil), &fakeSink{}, nil)
	require.Equal(t, time.Minute, s.syncDelay())
	s.failures = 1
	require.Equal(t, 2*time.Minute, s.syncDelay())
	s.failures = 5
	require.Equal(t, 3*time.Minute, s.syncDelay())
}

type rejectedErr struct{}

func (rejectedErr) Error() string   { return "api: status 400: invalid input" }
func (rejectedErr) Permanent() bool { return true }

func queuedPoints(t *testing.T, q *Queue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, q.Push(context.Background(), point(45, -93, 5, t0.Add(time.Duration(i)*time.Second))))
	}
}

func TestSession_FlushSplitsLargeQueue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := &fakeSink{}
	q := NewQueue(nil)
	queuedPoints(t, q, domain.MaxGPSBatchSize+1)
	s := newTestSession(sliceSource{}, sink, q)

	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 0, q.Len())
	require.Len(t, sink.batches, 2)
	require.Len(t, sink.batches[0].Points, domain.MaxGPSBatchSize)
	require.Len(t, sink.batches[1].Points, 1)
	require.True(t, sink.batches[1].StartedAt.Equal(t0.Add(time.Duration(domain.MaxGPSBatchSize)*time.Second)))
	require.Equal(t, domain.MaxGPSBatchSize+1, s.Stats().Synced)
}

func TestSession_FlushRequeuesOnlyUnsentBatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := &fakeSink{batchErr: func(sent int, _ domain.GPSBatch) error {
		if sent == 1 {
			return errors.New("connection reset")
		}
		return nil
	}}
	q := NewQueue(nil)
	queuedPoints(t, q, domain.MaxGPSBatchSize+5)
	s := newTestSession(sliceSource{}, sink, q)

	require.Error(t, s.Flush(ctx))
	require.Equal(t, 5, q.Len())
	require.Equal(t, domain.MaxGPSBatchSize, s.Stats().Synced)

	sink.mu.Lock()
	sink.batchErr = nil
	sink.mu.Unlock()
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 0, q.Len())
	require.Len(t, sink.batches, 2)
	require.Len(t, sink.batches[1].Points, 5)
}

func TestSession_RejectedBatchIsDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	spool, err := OpenSQLiteSpool(":memory:")
	require.NoError(t, err)
	q := NewQueue(spool)
	queuedPoints(t, q, 3)

	rec := testlog.New()
	sink := &fakeSink{batchErr: func(int, domain.GPSBatch) error { return rejectedErr{} }}
	s := NewSession(SessionConfig{DeliveryID: 1, DriverID: 2, SyncInterval: time.Hour},
		sliceSource{}, NewOptimizer(OptimizerConfig{}), q, sink, rec.Logger())

	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 0, q.Len())
	require.Equal(t, 3, s.Stats().Dropped)
	require.Len(t, rec.ByEvent("batch_rejected"), 1)

	left, err := spool.Load(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestSession_InvalidQueuedPointsDoNotBlockSync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	q := NewQueue(nil)
	queuedPoints(t, q, 2)
	bad := point(45, -93, -1, t0.Add(time.Minute))
	require.NoError(t, q.Push(ctx, bad))
	queuedPoints(t, q, 1)

	sink := &fakeSink{}
	s := newTestSession(sliceSource{}, sink, q)

	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 0, q.Len())
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0].Points, 3)
	for _, p := range sink.batches[0].Points {
		require.NotEqual(t, bad.ID, p.ID)
	}
	require.Equal(t, 1, s.Stats().Dropped)
}

func TestSession_OutOfRangeFixesAreDropped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fixes := []Fix{
		{Latitude: 45, Longitude: -93, Accuracy: 8},
		{Latitude: 45, Longitude: -93, Accuracy: -1, Timestamp: t0},
		{Latitude: 91, Longitude: -93, Accuracy: 8, Timestamp: t0},
		{Latitude: 45, Longitude: -93, Accuracy: 8, Battery: ptr(140), Timestamp: t0},
		{Latitude: 45, Longitude: -93, Accuracy: 8, Timestamp: t0},
	}
	rec := testlog.New()
	sink := &fakeSink{failPoints: true}
	q := NewQueue(nil)
	s := NewSession(SessionConfig{DeliveryID: 1, DriverID: 2, SyncInterval: time.Hour},
		sliceSource{fixes: fixes}, NewOptimizer(OptimizerConfig{}), q, sink, rec.Logger())

	require.NoError(t, s.Start(ctx))
	waitDone(t, s)
	require.Equal(t, 1, q.Len())
	require.NoError(t, s.Stop(ctx))

	st := s.Stats()
	require.Equal(t, 5, st.Received)
	require.Equal(t, 1, st.Accepted)
	require.Equal(t, 4, st.Dropped)
	require.Len(t, rec.ByEvent("fix_invalid"), 4)
}
