package handlers

import (
	"time"

	"github.com/google/uuid"
)

type locationDTO struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Accuracy  float64 `json:"accuracy" validate:"min=0"`
}

type transitionRequest struct {
	Status          string       `json:"status" validate:"required"`
	Location        *locationDTO `json:"location,omitempty"`
	Note            string       `json:"note,omitempty" validate:"max=2000"`
	ExpectedVersion *int64       `json:"expected_version,omitempty" validate:"omitempty,min=0"`
}

type issueRequest struct {
	Type        string       `json:"type" validate:"required,oneof=mechanical route weather customer permit damage other"`
	Severity    string       `json:"severity" validate:"required,oneof=low medium high critical"`
	Description string       `json:"description" validate:"required,max=4000"`
	Location    *locationDTO `json:"location,omitempty"`
}

type resumeRequest struct {
	Note string `json:"note,omitempty" validate:"max=2000"`
}

type confirmRequest struct {
	Confirmed bool `json:"confirmed"`
}

type declineRequest struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason" validate:"max=2000"`
}

type mileageRequest struct {
	Mileage *float64 `json:"mileage,omitempty" validate:"omitempty,min=0"`
}

type recordMileageRequest struct {
	Starting *float64 `json:"starting_mileage,omitempty" validate:"omitempty,min=0"`
	Ending   *float64 `json:"ending_mileage,omitempty" validate:"omitempty,min=0"`
}

type gpsPointRequest struct {
	ID         uuid.UUID `json:"id" validate:"required"`
	Latitude   float64   `json:"latitude" validate:"min=-90,max=90"`
	Longitude  float64   `json:"longitude" validate:"min=-180,max=180"`
	Accuracy   float64   `json:"accuracy" validate:"min=0"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	Battery    *float64  `json:"battery,omitempty" validate:"omitempty,min=0,max=100"`
	RecordedAt time.Time `json:"recorded_at" validate:"required"`
}

type gpsBatchRequest struct {
	StartedAt time.Time         `json:"started_at" validate:"required"`
	EndedAt   time.Time         `json:"ended_at" validate:"required"`
	Points    []gpsPointRequest `json:"points" validate:"required,min=1,dive"`
}

type wizardMoveRequest struct {
	Location *locationDTO `json:"location,omitempty"`
	Note     string       `json:"note,omitempty" validate:"max=2000"`
}

type deliveryResponse struct {
	ID                  int64      `json:"id"`
	Number              string     `json:"number"`
	Status              string     `json:"status"`
	DelayedFrom         string     `json:"delayed_from,omitempty"`
	CustomerName        string     `json:"customer_name"`
	CustomerPhone       string     `json:"customer_phone"`
	PickupAddress       string     `json:"pickup_address"`
	DeliveryAddress     string     `json:"delivery_address"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
	CompletionNotes     string     `json:"completion_notes,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
	Version             int64      `json:"version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type historyResponse struct {
	ID         int64        `json:"id"`
	FromStatus string       `json:"from_status"`
	Status     string       `json:"status"`
	ActorID    int64        `json:"actor_id"`
	Note       string       `json:"note,omitempty"`
	Location   *locationDTO `json:"location,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

type transitionResponse struct {
	Delivery deliveryResponse `json:"delivery"`
	Entry    historyResponse  `json:"entry"`
}

type issueResponse struct {
	ID          int64            `json:"id"`
	Type        string           `json:"type"`
	Severity    string           `json:"severity"`
	Description string           `json:"description"`
	CreatedAt   time.Time        `json:"created_at"`
	Delayed     bool             `json:"delayed"`
	Delivery    deliveryResponse `json:"delivery"`
}

type assignmentResponse struct {
	ID              int64             `json:"id"`
	DeliveryID      int64             `json:"delivery_id"`
	DriverID        int64             `json:"driver_id"`
	Role            string            `json:"role"`
	Status          string            `json:"status"`
	AssignedAt      time.Time         `json:"assigned_at"`
	AcceptedAt      *time.Time        `json:"accepted_at,omitempty"`
	DeclinedAt      *time.Time        `json:"declined_at,omitempty"`
	DeclineReason   string            `json:"decline_reason,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	StartingMileage *float64          `json:"starting_mileage,omitempty"`
	EndingMileage   *float64          `json:"ending_mileage,omitempty"`
	PhaseTimes      map[string]string `json:"phase_times,omitempty"`
}

type photoResponse struct {
	ID               string    `json:"id"`
	Category         string    `json:"category"`
	URL              string    `json:"url"`
	Caption          string    `json:"caption,omitempty"`
	TakenAt          time.Time `json:"taken_at"`
	OriginalSize     int64     `json:"original_size"`
	OptimizedSize    int64     `json:"optimized_size"`
	CompressionRatio float64   `json:"compression_ratio"`
}

type captureResponse struct {
	Photo   photoResponse `json:"photo"`
	Missing []string      `json:"missing"`
}

type checklistResponse struct {
	Phase    string   `json:"phase"`
	Required []string `json:"required"`
	Present  []string `json:"present"`
	Missing  []string `json:"missing"`
	Complete bool     `json:"complete"`
}

type ingestResponse struct {
	Received  int   `json:"received"`
	Inserted  int64 `json:"inserted"`
	Duplicate int64 `json:"duplicate"`
}

type qualityResultResponse struct {
	Check    string   `json:"check"`
	Passed   bool     `json:"passed"`
	Severity string   `json:"severity"`
	Message  string   `json:"message"`
	Current  int      `json:"current,omitempty"`
	Required int      `json:"required,omitempty"`
	Missing  []string `json:"missing,omitempty"`
}

type qualityResponse struct {
	DeliveryID int64                   `json:"delivery_id"`
	Phase      string                  `json:"phase"`
	Score      int                     `json:"score"`
	Ready      bool                    `json:"ready"`
	Results    []qualityResultResponse `json:"results"`
}

type wizardResponse struct {
	Index       int      `json:"index"`
	Total       int      `json:"total"`
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Required    []string `json:"required"`
	Missing     []string `json:"missing"`
	CanAdvance  bool     `json:"can_advance"`
	CanGoBack   bool     `json:"can_go_back"`
	Current     bool     `json:"current"`
	Started     bool     `json:"started"`
	Done        bool     `json:"done"`
	Status      string   `json:"status"`
	Version     int64    `json:"version"`
}
