package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRateLimitExceededTotal returns a Prometheus counter for the number of rejected HTTP requests due to rate limiting
func NewRateLimitExceededTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Total number of rejected HTTP requests due to rate limiting",
	})
}

// NewGatewayRetriesTotal returns a Prometheus counter for the number of retry attempts performed by the driver API client
func NewGatewayRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Total number of retry attempts performed by the driver API client",
	})
}

// NewTransitionsTotal counts status change attempts by target status and result
// (applied, rejected reason, conflict, not_found, error).
func NewTransitionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_transitions_total",
		Help: "Delivery status change attempts by target status and result",
	}, []string{"to", "result"})
}

// NewGPSPointsIngestedTotal counts GPS points stored by the server.
func NewGPSPointsIngestedTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gps_points_ingested_total",
		Help: "Total number of GPS points stored",
	})
}

// NewNotificationsTotal counts outbox dispatch results by event type.
func NewNotificationsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_dispatch_total",
		Help: "Outbox dispatch results by event type",
	}, []string{"event", "result"})
}

// Set bundles the service collectors so they can be registered together.
type Set struct {
	RateLimitExceeded prometheus.Counter
	Transitions       *prometheus.CounterVec
	GPSPointsIngested prometheus.Counter
	Notifications     *prometheus.CounterVec
}

// NewSet creates all service collectors.
func NewSet() *Set {
	return &Set{
		RateLimitExceeded: NewRateLimitExceededTotal(),
		Transitions:       NewTransitionsTotal(),
		GPSPointsIngested: NewGPSPointsIngestedTotal(),
		Notifications:     NewNotificationsTotal(),
	}
}

// Register registers every collector of the set with reg.
func (s *Set) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{s.RateLimitExceeded, s.Transitions, s.GPSPointsIngested, s.Notifications} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
