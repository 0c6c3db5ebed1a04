package api

import (
	"context"
	"errors"
	"net"
	"time"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
)

type driverAPI interface {
	SendPoint(context.Context, domain.GPSPoint) error
	SendBatch(context.Context, domain.GPSBatch) error
	Transition(context.Context, TransitionRequest) (*TransitionResponse, error)
	UploadPhoto(context.Context, PhotoUpload) (*PhotoResponse, error)
	Quality(context.Context, int64) (*QualityReport, error)
}

type counter interface {
	Inc()
}

// RetryConfig describes how RetryingClient backs off.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns the agent retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 4, BaseDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second}
}

// RetryingClient repeats requests that failed on the network, with 429 or with 5xx.
type RetryingClient struct {
	next    driverAPI
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingClient wraps next. It returns nil when next is nil.
func NewRetryingClient(next driverAPI, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingClient {
	if next == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingClient{next: next, logger: logger, retries: retries, cfg: cfg}
}

// SendPoint implements tracking.Sink with retries.
func (c *RetryingClient) SendPoint(ctx context.Context, p domain.GPSPoint) error {
	_, err := retry(ctx, c, "SendPoint", func() (struct{}, error) {
		return struct{}{}, c.next.SendPoint(ctx, p)
	})
	return err
}

// SendBatch implements tracking.Sink with retries.
func (c *RetryingClient) SendBatch(ctx context.Context, b domain.GPSBatch) error {
	_, err := retry(ctx, c, "SendBatch", func() (struct{}, error) {
		return struct{}{}, c.next.SendBatch(ctx, b)
	})
	return err
}

// Transition requests a status change with retries.
func (c *RetryingClient) Transition(ctx context.Context, req TransitionRequest) (*TransitionResponse, error) {
	return retry(ctx, c, "Transition", func() (*TransitionResponse, error) {
		return c.next.Transition(ctx, req)
	})
}

// UploadPhoto uploads an image with retries.
func (c *RetryingClient) UploadPhoto(ctx context.Context, up PhotoUpload) (*PhotoResponse, error) {
	return retry(ctx, c, "UploadPhoto", func() (*PhotoResponse, error) {
		return c.next.UploadPhoto(ctx, up)
	})
}

// Quality fetches a quality report with retries.
func (c *RetryingClient) Quality(ctx context.Context, deliveryID int64) (*QualityReport, error) {
	return retry(ctx, c, "Quality", func() (*QualityReport, error) {
		return c.next.Quality(ctx, deliveryID)
	})
}

func retry[T any](ctx context.Context, c *RetryingClient, method string, call func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil || attempt == c.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
		if c.retries != nil {
			c.retries.Inc()
		}
		c.logger.Warn("driver api retry",
			logx.String("event", "gateway_retry"),
			logx.String("method", method),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return zero, lastErr
}

// isRetryable reports whether err is a transport failure or a temporary status.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > limit || d < 0 {
		return limit
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
