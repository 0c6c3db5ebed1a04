package api

import "time"

// Location is a device fix as sent on the wire.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// TransitionRequest asks the server to move a delivery to Status.
type TransitionRequest struct {
	DeliveryID      int64     `json:"-"`
	Status          string    `json:"status"`
	Location        *Location `json:"location,omitempty"`
	Note            string    `json:"note,omitempty"`
	ExpectedVersion *int64    `json:"expected_version,omitempty"`
}

// Delivery is the server view of a delivery.
type Delivery struct {
	ID          int64      `json:"id"`
	Number      string     `json:"number"`
	Status      string     `json:"status"`
	DelayedFrom string     `json:"delayed_from,omitempty"`
	Version     int64      `json:"version"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TransitionResponse is returned by an applied transition.
type TransitionResponse struct {
	Delivery Delivery `json:"delivery"`
}

// PhotoUpload is one image to attach to a delivery.
type PhotoUpload struct {
	DeliveryID int64
	Category   string
	Caption    string
	FileName   string
	Data       []byte
	TakenAt    time.Time
	Location   *Location
}

// Photo is a stored photo as returned by the server.
type Photo struct {
	ID               string    `json:"id"`
	Category         string    `json:"category"`
	URL              string    `json:"url"`
	TakenAt          time.Time `json:"taken_at"`
	OriginalSize     int64     `json:"original_size"`
	OptimizedSize    int64     `json:"optimized_size"`
	CompressionRatio float64   `json:"compression_ratio"`
}

// PhotoResponse carries the stored photo and what the current phase still needs.
type PhotoResponse struct {
	Photo   Photo    `json:"photo"`
	Missing []string `json:"missing"`
}

// QualityResult is one check of a quality report.
type QualityResult struct {
	Check    string   `json:"check"`
	Passed   bool     `json:"passed"`
	Severity string   `json:"severity"`
	Message  string   `json:"message"`
	Current  int      `json:"current,omitempty"`
	Required int      `json:"required,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

// QualityReport is the server quality verdict for a delivery.
type QualityReport struct {
	DeliveryID int64           `json:"delivery_id"`
	Phase      string          `json:"phase"`
	Score      int             `json:"score"`
	Ready      bool            `json:"ready"`
	Results    []QualityResult `json:"results"`
}

type pointPayload struct {
	ID         string    `json:"id"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Battery    *float64  `json:"battery,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type batchPayload struct {
	StartedAt time.Time      `json:"started_at"`
	EndedAt   time.Time      `json:"ended_at"`
	Points    []pointPayload `json:"points"`
}

type errorBody struct {
	Error    string   `json:"error"`
	Reason   string   `json:"reason,omitempty"`
	Current  int      `json:"current,omitempty"`
	Required int      `json:"required,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}
