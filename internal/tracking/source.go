package tracking

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"mobile-home-delivery/internal/domain"
)

// Fix is one raw location reading from a device.
type Fix struct {
	ID        string    `json:"id,omitempty"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Accuracy  float64   `json:"accuracy"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Battery   *float64  `json:"battery,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Point converts the fix to a GPS point, generating an id when the device sent none.
func (f Fix) Point(deliveryID, driverID int64) (domain.GPSPoint, error) {
	id := uuid.New()
	if f.ID != "" {
		parsed, err := uuid.Parse(f.ID)
		if err != nil {
			return domain.GPSPoint{}, fmt.Errorf("fix id %q: %w", f.ID, err)
		}
		id = parsed
	}
	return domain.GPSPoint{
		ID:         id,
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Accuracy:   f.Accuracy,
		Speed:      f.Speed,
		Heading:    f.Heading,
		Battery:    f.Battery,
		RecordedAt: f.Timestamp,
	}, nil
}

// LocationSource streams fixes until ctx ends or the source is exhausted.
// Both channels are closed when the source stops.
type LocationSource interface {
	Watch(ctx context.Context) (<-chan Fix, <-chan error)
}

// JSONLinesSource reads newline-delimited JSON fixes from r.
// Malformed lines are reported on the error channel and skipped.
type JSONLinesSource struct {
	r io.Reader
}

// NewJSONLinesSource creates a new JSONLinesSource.
func NewJSONLinesSource(r io.Reader) *JSONLinesSource {
	return &JSONLinesSource{r: r}
}

// Watch implements LocationSource.
func (s *JSONLinesSource) Watch(ctx context.Context) (<-chan Fix, <-chan error) {
	fixes := make(chan Fix)
	errs := make(chan error, 1)

	go func() {
		defer close(fixes)
		defer close(errs)

		sendErr := func(err error) bool {
			select {
			case errs <- err:
				return true
			case <-ctx.Done():
				return false
			}
		}

		scanner := bufio.NewScanner(s.r)
		line := 0
		for scanner.Scan() {
			line++
			raw := scanner.Bytes()
			if len(raw) == 0 {
				continue
			}
			var f Fix
			if err := json.Unmarshal(raw, &f); err != nil {
				if !sendErr(fmt.Errorf("line %d: %w", line, err)) {
					return
				}
				continue
			}
			select {
			case fixes <- f:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			sendErr(fmt.Errorf("read fixes: %w", err))
		}
	}()

	return fixes, errs
}
