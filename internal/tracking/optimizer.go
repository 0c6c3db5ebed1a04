package tracking

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"mobile-home-delivery/internal/domain"
)

// OptimizerConfig stores sampling thresholds.
type OptimizerConfig struct {
	ActiveInterval time.Duration
	IdleInterval   time.Duration
	MinInterval    time.Duration
	MaxInterval    time.Duration
	MinDistance    float64 // meters
	UsableAccuracy float64 // meters; fixes worse than this never count as movement
	PoorAccuracy   float64 // meters; above this the interval is stretched
	RecentSize     int
}

// DefaultOptimizerConfig returns the default sampling thresholds.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		ActiveInterval: 30 * time.Second,
		IdleInterval:   2 * time.Minute,
		MinInterval:    15 * time.Second,
		MaxInterval:    5 * time.Minute,
		MinDistance:    10,
		UsableAccuracy: 100,
		PoorAccuracy:   50,
		RecentSize:     50,
	}
}

// Optimizer decides which raw fixes are worth persisting.
type Optimizer struct {
	cfg OptimizerConfig

	mu      sync.Mutex
	active  bool
	battery *float64
	last    *domain.GPSPoint
	recent  []domain.GPSPoint
}

// NewOptimizer creates a new Optimizer. Zero fields in cfg take defaults.
func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	def := DefaultOptimizerConfig()
	if cfg.ActiveInterval <= 0 {
		cfg.ActiveInterval = def.ActiveInterval
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = def.MaxInterval
	}
	if cfg.MinDistance <= 0 {
		cfg.MinDistance = def.MinDistance
	}
	if cfg.UsableAccuracy <= 0 {
		cfg.UsableAccuracy = def.UsableAccuracy
	}
	if cfg.PoorAccuracy <= 0 {
		cfg.PoorAccuracy = def.PoorAccuracy
	}
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = def.RecentSize
	}
	return &Optimizer{cfg: cfg, active: true}
}

// SetActive switches between active tracking and idle sampling.
func (o *Optimizer) SetActive(active bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active = active
}

// AddPoint reports whether p is significant and, if so, records it as the last accepted point.
func (o *Optimizer) AddPoint(p domain.GPSPoint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if p.Battery != nil {
		b := *p.Battery
		o.battery = &b
	}

	if o.last == nil {
		o.accept(p)
		return true
	}

	last := *o.last
	elapsed := p.RecordedAt.Sub(last.RecordedAt)
	if elapsed < 0 {
		return false
	}
	if elapsed == 0 && p.Latitude == last.Latitude && p.Longitude == last.Longitude {
		return false
	}

	lastAccuracy := last.Accuracy
	interval := o.adaptiveInterval(o.active, o.battery, &lastAccuracy)

	significant := elapsed >= interval
	// a move smaller than the fix's own error radius is jitter
	if !significant && p.Accuracy > 0 && p.Accuracy <= o.cfg.UsableAccuracy {
		significant = Distance(last, p) >= max(o.cfg.MinDistance, p.Accuracy)
	}
	if !significant && last.Accuracy > 0 && p.Accuracy > 0 {
		significant = p.Accuracy <= last.Accuracy*0.5
	}

	if significant {
		o.accept(p)
	}
	return significant
}

func (o *Optimizer) accept(p domain.GPSPoint) {
	o.last = &p
	o.recent = append(o.recent, p)
	if over := len(o.recent) - o.cfg.RecentSize; over > 0 {
		o.recent = append(o.recent[:0:0], o.recent[over:]...)
	}
}

// AdaptiveInterval returns the sampling period for the given conditions.
// Battery is a percentage; nil battery or accuracy means unknown.
func (o *Optimizer) AdaptiveInterval(active bool, battery, lastAccuracy *float64) time.Duration {
	return o.adaptiveInterval(active, battery, lastAccuracy)
}

// CurrentInterval returns the sampling period for the optimizer's current state.
func (o *Optimizer) CurrentInterval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	var acc *float64
	if o.last != nil {
		a := o.last.Accuracy
		acc = &a
	}
	return o.adaptiveInterval(o.active, o.battery, acc)
}

func (o *Optimizer) adaptiveInterval(active bool, battery, lastAccuracy *float64) time.Duration {
	base := o.cfg.IdleInterval
	if active {
		base = o.cfg.ActiveInterval
	}
	interval := float64(base)

	if battery != nil {
		switch {
		case *battery < 20:
			interval *= 2
		case *battery < 50:
			interval *= 1.5
		}
	}
	if lastAccuracy != nil && *lastAccuracy > o.cfg.PoorAccuracy {
		interval *= 2
	}

	d := time.Duration(interval)
	if d < o.cfg.MinInterval {
		d = o.cfg.MinInterval
	}
	if d > o.cfg.MaxInterval {
		d = o.cfg.MaxInterval
	}
	return d
}

// Recent returns a copy of the recently accepted points, oldest first.
func (o *Optimizer) Recent() []domain.GPSPoint {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]domain.GPSPoint, len(o.recent))
	copy(out, o.recent)
	return out
}

// Cleanup clears all state.
func (o *Optimizer) Cleanup() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = nil
	o.recent = nil
	o.battery = nil
}

// Distance returns the great-circle distance between two points in meters.
func Distance(a, b domain.GPSPoint) float64 {
	return geo.DistanceHaversine(
		orb.Point{a.Longitude, a.Latitude},
		orb.Point{b.Longitude, b.Latitude},
	)
}
