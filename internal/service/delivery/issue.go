package delivery

import (
	"context"
	"fmt"
	"strings"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
	"mobile-home-delivery/internal/logx"
	"mobile-home-delivery/internal/ports/deliverytx"
)

// IssueInput reports a problem with a delivery.
type IssueInput struct {
	DeliveryID  int64
	ReporterID  int64
	Type        domain.IssueType
	Severity    domain.Severity
	Description string
	Location    *domain.Location
}

// IssueResult is the recorded issue and whether it forced a delay.
type IssueResult struct {
	Issue    domain.Issue
	Delayed  bool
	Delivery domain.Delivery
}

// ReportIssue records an issue. Severe issues on an in-progress delivery
// move it to delayed in the same transaction.
func (s *Service) ReportIssue(ctx context.Context, in IssueInput) (IssueResult, error) {
	in.Description = strings.TrimSpace(in.Description)
	if in.DeliveryID <= 0 || in.ReporterID <= 0 {
		return IssueResult{}, fmt.Errorf("delivery and reporter ids are required: %w", apperr.ErrInvalid)
	}
	if !in.Type.Valid() || !in.Severity.Valid() {
		return IssueResult{}, fmt.Errorf("issue %q/%q: %w", in.Type, in.Severity, apperr.ErrInvalid)
	}
	if in.Description == "" {
		return IssueResult{}, fmt.Errorf("issue description is required: %w", apperr.ErrInvalid)
	}
	if in.Location != nil && !in.Location.Valid() {
		return IssueResult{}, fmt.Errorf("location out of range: %w", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var result IssueResult
	err := s.repo.WithTx(ctx, func(tx deliverytx.Repository) error {
		d, err := tx.GetDeliveryForUpdate(ctx, in.DeliveryID)
		if err != nil {
			return err
		}

		now := s.now()
		issue := domain.Issue{
			DeliveryID:  d.ID,
			Type:        in.Type,
			Severity:    in.Severity,
			Description: in.Description,
			Location:    in.Location,
			CreatedBy:   in.ReporterID,
			CreatedAt:   now,
		}
		if err := tx.InsertIssue(ctx, &issue); err != nil {
			return err
		}
		if err := tx.EnqueueNotification(ctx, domain.NewNotification(d.ID, domain.EventIssueReported, map[string]any{
			"issue_id":    issue.ID,
			"delivery_id": d.ID,
			"type":        string(issue.Type),
			"severity":    string(issue.Severity),
			"description": issue.Description,
			"reporter_id": in.ReporterID,
		}, now)); err != nil {
			return err
		}

		result.Issue = issue
		if domain.Escalates(in.Severity, s.rules.EscalationSeverity) && d.Status.IsInProgress() {
			a, err := tx.DriverAssignment(ctx, d.ID, in.ReporterID)
			if err != nil {
				return err
			}
			if a != nil && !a.Status.CanProgressDelivery() {
				a = nil
			}
			from := d.Status
			note := fmt.Sprintf("auto-delayed: %s %s issue #%d", in.Severity, in.Type, issue.ID)
			if _, err := s.applyStatus(ctx, tx, statusChange{
				delivery:   d,
				assignment: a,
				target:     domain.StatusDelayed,
				actorID:    in.ReporterID,
				location:   in.Location,
				note:       note,
			}); err != nil {
				return err
			}
			if err := tx.EnqueueNotification(ctx, domain.NewNotification(d.ID, domain.EventDeliveryDelayed, map[string]any{
				"delivery_id":     d.ID,
				"delivery_number": d.Number,
				"delayed_from":    string(from),
				"issue_id":        issue.ID,
				"severity":        string(in.Severity),
				"reason":          note,
			}, now)); err != nil {
				return err
			}
			result.Delayed = true
		}
		result.Delivery = *d
		return nil
	})
	if err != nil {
		return IssueResult{}, err
	}

	s.logger.Info("issue reported",
		logx.String("event", "issue_reported"),
		logx.Int64("delivery_id", in.DeliveryID),
		logx.Int64("issue_id", result.Issue.ID),
		logx.String("severity", string(in.Severity)),
		logx.Bool("delayed", result.Delayed),
	)
	if result.Delayed {
		s.countTransition(domain.StatusDelayed, "escalated")
	}
	return result, nil
}
