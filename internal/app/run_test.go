package app

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"mobile-home-delivery/internal/logx"
	testlog "mobile-home-delivery/internal/testutil"
)

func hasMsg(entries []testlog.Entry, msg string) bool {
	for _, e := range entries {
		if e.Msg == msg {
			return true
		}
	}
	return false
}

func TestGracefulShutdown_DoesNotPanic(t *testing.T) {
	t.Parallel()

	srv := &http.Server{
		Addr:    "127.0.0.1:0",
		Handler: http.NewServeMux(),
	}

	require.NotPanics(t, func() {
		gracefulShutdown(srv, logx.Nop(), 100*time.Millisecond)
	})
}

func TestRunner_MustRun_ShutdownRequested(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() logx.Logger { return rec.Logger() }))

	r := &Runner{runFn: func(*dig.Container) error { return context.Canceled }}
	r.MustRun(container)
	require.True(t, hasMsg(rec.Entries(), "shutdown requested, exiting"))
}

func TestRunner_MustRun_StartupTimeout(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() logx.Logger { return rec.Logger() }))

	r := &Runner{runFn: func(*dig.Container) error { return context.DeadlineExceeded }}
	r.MustRun(container)
	require.True(t, hasMsg(rec.Entries(), "startup aborted: startup timeout exceeded"))
}

func TestRunner_MustRun_NoLoggerInContainer(t *testing.T) {
	t.Parallel()

	r := &Runner{runFn: func(*dig.Container) error { return context.Canceled }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
}

func TestNewRunner_DefaultFields(t *testing.T) {
	t.Parallel()

	r := NewRunner()
	require.NotNil(t, r)
	require.NotNil(t, r.runFn)
	require.Equal(t, fmt.Sprintf("%p", run), fmt.Sprintf("%p", r.runFn))
}

func TestRun_ServesUntilCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := testlog.New()
	container := dig.New()
	require.NoError(t, container.Provide(func() context.Context { return ctx }))
	require.NoError(t, container.Provide(func() logx.Logger { return rec.Logger() }))
	require.NoError(t, container.Provide(func() *pgxpool.Pool { return nil }))
	require.NoError(t, container.Provide(func() *http.Server {
		return &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		}
	}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := run(container)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, hasMsg(rec.Entries(), "shutting down service-delivery"))
}

func TestRun_ListenErrorIsReturned(t *testing.T) {
	t.Parallel()

	container := dig.New()
	require.NoError(t, container.Provide(func() context.Context { return context.Background() }))
	require.NoError(t, container.Provide(logx.Nop))
	require.NoError(t, container.Provide(func() *pgxpool.Pool { return nil }))
	require.NoError(t, container.Provide(func() *http.Server {
		return &http.Server{Addr: "256.0.0.1:bad", Handler: http.NewServeMux()}
	}))

	err := run(container)
	require.Error(t, err)
	require.Contains(t, err.Error(), "listen")
}
