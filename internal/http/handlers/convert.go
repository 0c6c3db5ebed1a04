package handlers

import (
	"time"

	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/service/delivery"
	"mobile-home-delivery/internal/service/photos"
	"mobile-home-delivery/internal/service/quality"
	"mobile-home-delivery/internal/service/tracking"
	"mobile-home-delivery/internal/service/wizard"
)

func (l *locationDTO) toModel() *domain.Location {
	if l == nil {
		return nil
	}
	return &domain.Location{Latitude: l.Latitude, Longitude: l.Longitude, Accuracy: l.Accuracy}
}

func locationToResponse(l *domain.Location) *locationDTO {
	if l == nil {
		return nil
	}
	return &locationDTO{Latitude: l.Latitude, Longitude: l.Longitude, Accuracy: l.Accuracy}
}

func (p gpsPointRequest) toModel(deliveryID, driverID int64) domain.GPSPoint {
	return domain.GPSPoint{
		ID:         p.ID,
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   p.Accuracy,
		Speed:      p.Speed,
		Heading:    p.Heading,
		Battery:    p.Battery,
		RecordedAt: p.RecordedAt,
	}
}

func (b gpsBatchRequest) toModel(deliveryID, driverID int64) domain.GPSBatch {
	points := make([]domain.GPSPoint, 0, len(b.Points))
	for _, p := range b.Points {
		points = append(points, p.toModel(deliveryID, driverID))
	}
	return domain.GPSBatch{
		DeliveryID: deliveryID,
		DriverID:   driverID,
		StartedAt:  b.StartedAt,
		EndedAt:    b.EndedAt,
		Points:     points,
	}
}

func deliveryToResponse(d domain.Delivery) deliveryResponse {
	out := deliveryResponse{
		ID:                  d.ID,
		Number:              d.Number,
		Status:              string(d.Status),
		CustomerName:        d.CustomerName,
		CustomerPhone:       d.CustomerPhone,
		PickupAddress:       d.PickupAddress,
		DeliveryAddress:     d.DeliveryAddress,
		SpecialInstructions: d.SpecialInstructions,
		CompletionNotes:     d.CompletionNotes,
		CompletedAt:         d.CompletedAt,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	if d.DelayedFrom != nil {
		out.DelayedFrom = string(*d.DelayedFrom)
	}
	return out
}

func historyToResponse(e domain.StatusHistoryEntry) historyResponse {
	return historyResponse{
		ID:         e.ID,
		FromStatus: string(e.FromStatus),
		Status:     string(e.Status),
		ActorID:    e.ActorID,
		Note:       e.Note,
		Location:   locationToResponse(e.Location),
		CreatedAt:  e.CreatedAt,
	}
}

func transitionToResponse(res delivery.TransitionResult) transitionResponse {
	return transitionResponse{
		Delivery: deliveryToResponse(res.Delivery),
		Entry:    historyToResponse(res.Entry),
	}
}

func issueToResponse(res delivery.IssueResult) issueResponse {
	return issueResponse{
		ID:          res.Issue.ID,
		Type:        string(res.Issue.Type),
		Severity:    string(res.Issue.Severity),
		Description: res.Issue.Description,
		CreatedAt:   res.Issue.CreatedAt,
		Delayed:     res.Delayed,
		Delivery:    deliveryToResponse(res.Delivery),
	}
}

func assignmentToResponse(a domain.Assignment) assignmentResponse {
	out := assignmentResponse{
		ID:              a.ID,
		DeliveryID:      a.DeliveryID,
		DriverID:        a.DriverID,
		Role:            string(a.Role),
		Status:          string(a.Status),
		AssignedAt:      a.AssignedAt,
		AcceptedAt:      a.AcceptedAt,
		DeclinedAt:      a.DeclinedAt,
		DeclineReason:   a.DeclineReason,
		StartedAt:       a.StartedAt,
		CompletedAt:     a.CompletedAt,
		StartingMileage: a.StartingMileage,
		EndingMileage:   a.EndingMileage,
	}
	if len(a.PhaseTimes) > 0 {
		out.PhaseTimes = make(map[string]string, len(a.PhaseTimes))
		for k, v := range a.PhaseTimes {
			out.PhaseTimes[string(k)] = v.UTC().Format(time.RFC3339)
		}
	}
	return out
}

func photoToResponse(p domain.Photo) photoResponse {
	return photoResponse{
		ID:               p.ID.String(),
		Category:         string(p.Category),
		URL:              p.URL,
		Caption:          p.Caption,
		TakenAt:          p.TakenAt,
		OriginalSize:     p.OriginalSize,
		OptimizedSize:    p.OptimizedSize,
		CompressionRatio: p.CompressionRatio,
	}
}

func captureToResponse(res photos.CaptureResult) captureResponse {
	return captureResponse{Photo: photoToResponse(res.Photo), Missing: categoryStrings(res.Missing)}
}

func checklistToResponse(c photos.Checklist) checklistResponse {
	return checklistResponse{
		Phase:    string(c.Phase),
		Required: categoryStrings(c.Required),
		Present:  categoryStrings(c.Present),
		Missing:  categoryStrings(c.Missing),
		Complete: c.Complete(),
	}
}

func ingestToResponse(r tracking.IngestResult) ingestResponse {
	return ingestResponse{Received: r.Received, Inserted: r.Inserted, Duplicate: r.Duplicate}
}

func qualityToResponse(r quality.Report) qualityResponse {
	out := qualityResponse{
		DeliveryID: r.DeliveryID,
		Phase:      string(r.Phase),
		Score:      r.Score,
		Ready:      r.Ready,
		Results:    make([]qualityResultResponse, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		out.Results = append(out.Results, qualityResultResponse{
			Check:    res.Check,
			Passed:   res.Passed,
			Severity: string(res.Severity),
			Message:  res.Message,
			Current:  res.Current,
			Required: res.Required,
			Missing:  categoryStrings(res.Missing),
		})
	}
	return out
}

func wizardToResponse(v wizard.View) wizardResponse {
	return wizardResponse{
		Index:       v.Index,
		Total:       v.Total,
		Key:         v.Key,
		Title:       v.Title,
		Description: v.Description,
		Required:    categoryStrings(v.Required),
		Missing:     categoryStrings(v.Missing),
		CanAdvance:  v.CanAdvance,
		CanGoBack:   v.CanGoBack,
		Current:     v.Current,
		Started:     v.Started,
		Done:        v.Done,
		Status:      string(v.Status),
		Version:     v.Version,
	}
}

// categoryStrings never returns nil so lists encode as [].
func categoryStrings(cs []domain.PhotoCategory) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
