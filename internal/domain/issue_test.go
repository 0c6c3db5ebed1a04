package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mobile-home-delivery/internal/domain"
)

func TestEscalates(t *testing.T) {
	t.Parallel()

	require.False(t, domain.Escalates(domain.SeverityMedium, domain.SeverityHigh))
	require.True(t, domain.Escalates(domain.SeverityHigh, domain.SeverityHigh))
	require.True(t, domain.Escalates(domain.SeverityCritical, domain.SeverityHigh))
	require.False(t, domain.Escalates(domain.SeverityHigh, domain.SeverityCritical))
	require.False(t, domain.Escalates("unknown", domain.SeverityLow))
}

func TestIssueType_Valid(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"mechanical", "route", "weather", "customer", "permit", "damage", "other"} {
		require.True(t, domain.IssueType(v).Valid(), v)
	}
	for _, v := range []string{"alien", "delay", "access_problem", "equipment_failure", "customer_issue", ""} {
		require.False(t, domain.IssueType(v).Valid(), v)
	}
}

func TestDelivery_EffectiveStatus(t *testing.T) {
	t.Parallel()

	from := domain.StatusInTransit
	d := domain.Delivery{Status: domain.StatusDelayed, DelayedFrom: &from}
	require.Equal(t, domain.StatusInTransit, d.EffectiveStatus())

	d = domain.Delivery{Status: domain.StatusScheduled}
	require.Equal(t, domain.StatusScheduled, d.EffectiveStatus())
}

func TestLocation_MeetsAccuracy(t *testing.T) {
	t.Parallel()
	require.True(t, domain.Location{Accuracy: 12}.MeetsAccuracy(50))
	require.False(t, domain.Location{Accuracy: 80}.MeetsAccuracy(50))
	require.False(t, domain.Location{}.MeetsAccuracy(50))
}
