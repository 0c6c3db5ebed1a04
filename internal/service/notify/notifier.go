// Package notify drains the notification outbox to Kafka, e-mail and push.
package notify

import (
	"context"
	"errors"
	"fmt"

	"mobile-home-delivery/internal/domain"
)

// Notifier delivers one outbox notification on a channel.
type Notifier interface {
	Name() string
	// Handles reports whether the channel cares about n.
	Handles(n domain.Notification) bool
	Send(ctx context.Context, n domain.Notification) error
}

// Fanout sends a notification to every channel that handles it. A failure
// on any channel fails the whole send so the row is retried.
type Fanout struct {
	channels []Notifier
}

// NewFanout skips nil channels.
func NewFanout(channels ...Notifier) *Fanout {
	f := &Fanout{}
	for _, c := range channels {
		if c != nil {
			f.channels = append(f.channels, c)
		}
	}
	return f
}

// Name implements Notifier.
func (f *Fanout) Name() string { return "fanout" }

// Handles implements Notifier.
func (f *Fanout) Handles(n domain.Notification) bool {
	for _, c := range f.channels {
		if c.Handles(n) {
			return true
		}
	}
	return false
}

// Send implements Notifier.
func (f *Fanout) Send(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, c := range f.channels {
		if !c.Handles(n) {
			continue
		}
		if err := c.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Channels lists the configured channel names.
func (f *Fanout) Channels() []string {
	out := make([]string, len(f.channels))
	for i, c := range f.channels {
		out[i] = c.Name()
	}
	return out
}

func payloadString(n domain.Notification, key string) string {
	v, ok := n.Payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprint(int64(f))
	}
	return fmt.Sprint(v)
}
