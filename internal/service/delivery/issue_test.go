package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/apperr"
	"mobile-home-delivery/internal/domain"
)

func TestReportIssue_Escalation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   domain.DeliveryStatus
		severity domain.Severity
		delayed  bool
	}{
		{"critical in transit delays", domain.StatusInTransit, domain.SeverityCritical, true},
		{"high at site delays", domain.StatusDeliveryInProgress, domain.SeverityHigh, true},
		{"medium in transit only records", domain.StatusInTransit, domain.SeverityMedium, false},
		{"critical before pickup only records", domain.StatusScheduled, domain.SeverityCritical, false},
		{"critical after delivery only records", domain.StatusDelivered, domain.SeverityCritical, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newMemStore()
			id := store.addDelivery(tt.status)
			aID := store.addAssignment(id, driverID, domain.AssignmentInProgress)
			s, rec, _ := newTestService(t, store)

			res, err := s.ReportIssue(context.Background(), IssueInput{
				DeliveryID: id, ReporterID: driverID,
				Type: domain.IssueDamage, Severity: tt.severity,
				Description: "axle cracked",
			})
			require.NoError(t, err)
			assert.Equal(t, tt.delayed, res.Delayed)
			assert.NotZero(t, res.Issue.ID)
			assert.Len(t, store.state.issues, 1)
			assert.Len(t, rec.ByEvent("issue_reported"), 1)

			d := store.delivery(id)
			if !tt.delayed {
				assert.Equal(t, tt.status, d.Status)
				assert.Equal(t, []domain.EventType{domain.EventIssueReported}, store.events())
				return
			}
			assert.Equal(t, domain.StatusDelayed, d.Status)
			require.NotNil(t, d.DelayedFrom)
			assert.Equal(t, tt.status, *d.DelayedFrom)
			require.Len(t, store.state.history, 1)
			assert.Contains(t, store.state.history[0].Note, "damage")
			assert.Contains(t, store.events(), domain.EventDeliveryDelayed)
			assert.Contains(t, store.events(), domain.EventStatusChanged)
			assert.Equal(t, fixedNow, store.assignment(aID).PhaseTimes[domain.StatusDelayed])
		})
	}
}

func TestReportIssue_CustomThreshold(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	id := store.addDelivery(domain.StatusInTransit)
	s := NewService(store, Rules{EscalationSeverity: domain.SeverityCritical}, 0, nil, nil)

	res, err := s.ReportIssue(context.Background(), IssueInput{
		DeliveryID: id, ReporterID: driverID,
		Type: domain.IssueWeather, Severity: domain.SeverityHigh, Description: "wind advisory",
	})
	require.NoError(t, err)
	assert.False(t, res.Delayed)
}

func TestReportIssue_Invalid(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestService(t, newMemStore())
	cases := []IssueInput{
		{DeliveryID: 1, ReporterID: 1, Type: "alien", Severity: domain.SeverityLow, Description: "x"},
		{DeliveryID: 1, ReporterID: 1, Type: domain.IssueOther, Severity: "apocalyptic", Description: "x"},
		{DeliveryID: 1, ReporterID: 1, Type: domain.IssueOther, Severity: domain.SeverityLow, Description: "   "},
		{DeliveryID: 0, ReporterID: 1, Type: domain.IssueOther, Severity: domain.SeverityLow, Description: "x"},
	}
	for _, in := range cases {
		_, err := s.ReportIssue(context.Background(), in)
		assert.ErrorIs(t, err, apperr.ErrInvalid)
	}
}

func TestResume(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	id := store.addDelivery(domain.StatusDeliveryInProgress)
	store.addAssignment(id, driverID, domain.AssignmentInProgress)
	s, _, _ := newTestService(t, store)
	ctx := context.Background()

	_, err := s.Resume(ctx, id, 1, "")
	assert.Equal(t, domain.ReasonInvalidTransition, rejectReason(t, err).Reason)

	_, err = s.ReportIssue(ctx, IssueInput{
		DeliveryID: id, ReporterID: driverID,
		Type: domain.IssuePermit, Severity: domain.SeverityCritical, Description: "gate locked",
	})
	require.NoError(t, err)

	res, err := s.Resume(ctx, id, 1, "gate opened")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeliveryInProgress, res.Delivery.Status)
	assert.Nil(t, res.Delivery.DelayedFrom)
	assert.Equal(t, domain.StatusDelayed, res.Entry.FromStatus)
}

func TestReportIssue_EscalationSkipsFinishedAssignment(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	id := store.addDelivery(domain.StatusInTransit)
	finished := store.addAssignment(id, driverID, domain.AssignmentCompleted)
	s, _, _ := newTestService(t, store)

	res, err := s.ReportIssue(context.Background(), IssueInput{
		DeliveryID: id, ReporterID: driverID,
		Type: domain.IssueMechanical, Severity: domain.SeverityCritical, Description: "axle cracked",
	})
	require.NoError(t, err)
	assert.True(t, res.Delayed)
	assert.Equal(t, domain.StatusDelayed, store.delivery(id).Status)
	assert.NotContains(t, store.assignment(finished).PhaseTimes, domain.StatusDelayed)
}
