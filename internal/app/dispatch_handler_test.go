package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/service/dispatch"
	"mobile-home-delivery/internal/transport/kafka"
)

type ctxKey struct{}

type spyProcessor struct {
	called int
	ctx    context.Context
	event  dispatch.Event
	err    error
}

func (s *spyProcessor) Handle(ctx context.Context, e dispatch.Event) error {
	s.called++
	s.ctx = ctx
	s.event = e
	return s.err
}

func TestDispatchHandler_Delegates(t *testing.T) {
	t.Parallel()

	spy := &spyProcessor{}
	h := dispatchHandler(spy)

	ctx := context.WithValue(context.Background(), ctxKey{}, "v")
	in := dispatch.Event{DeliveryID: 1, DriverID: 2, Action: "assigned"}

	require.NoError(t, h(ctx, in))
	require.Equal(t, 1, spy.called)
	require.Equal(t, "v", spy.ctx.Value(ctxKey{}))
	require.Equal(t, in, spy.event)
}

func TestDispatchHandler_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"invalid", fmt.Errorf("bad role: %w", apperr.ErrInvalid), true},
		{"rejected", fmt.Errorf("terminal: %w", apperr.ErrRejected), true},
		{"forbidden", apperr.ErrForbidden, true},
		{"not found", apperr.ErrNotFound, true},
		{"storage", errors.New("connection reset"), false},
		{"timeout", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := dispatchHandler(&spyProcessor{err: tt.err})
			err := h(context.Background(), dispatch.Event{DeliveryID: 1, DriverID: 2})
			require.ErrorIs(t, err, tt.err)

			var perm kafka.PermanentError
			require.Equal(t, tt.permanent, errors.As(err, &perm))
		})
	}
}
