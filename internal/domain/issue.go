package domain

import "time"

type (
	// IssueType classifies a reported problem.
	IssueType string
	// Severity ranks a reported problem.
	Severity string
)

// List of issue types
const (
	IssueMechanical IssueType = "mechanical"
	IssueRoute      IssueType = "route"
	IssueWeather    IssueType = "weather"
	IssueCustomer   IssueType = "customer"
	IssuePermit     IssueType = "permit"
	IssueDamage     IssueType = "damage"
	IssueOther      IssueType = "other"
)

// List of severities, lowest first
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid checks if the IssueType is valid
func (t IssueType) Valid() bool {
	switch t {
	case IssueMechanical, IssueRoute, IssueWeather, IssueCustomer,
		IssuePermit, IssueDamage, IssueOther:
		return true
	default:
		return false
	}
}

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Valid checks if the Severity is valid
func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Escalates reports whether an issue of severity s forces a delay under threshold.
func Escalates(s, threshold Severity) bool {
	if !s.Valid() || !threshold.Valid() {
		return false
	}
	return s.Rank() >= threshold.Rank()
}

// Issue is a problem reported against a delivery.
type Issue struct {
	ID          int64
	DeliveryID  int64
	Type        IssueType
	Severity    Severity
	Description string
	Location    *Location
	CreatedBy   int64
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Resolved reports whether the issue has been closed.
func (i Issue) Resolved() bool {
	return i.ResolvedAt != nil
}
