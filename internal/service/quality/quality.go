// Package quality scores a delivery's readiness from its photos, GPS,
// mileage, signature and open issues.
package quality

import (
	"fmt"
	"math"
	"slices"

	"mobile-home-delivery/internal/domain"
)

// Severity of a failed check.
type Severity string

// List of check severities
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// List of check names
const (
	CheckRequiredPhotos = "required_photos"
	CheckGPSAccuracy    = "gps_accuracy"
	CheckMileage        = "mileage"
	CheckSignature      = "signature"
	CheckIssues         = "issues"
)

// Result is the outcome of one check.
type Result struct {
	Check    string
	Passed   bool
	Severity Severity
	Message  string
	Current  int
	Required int
	Missing  []domain.PhotoCategory
}

// Report is a full validation run.
type Report struct {
	DeliveryID int64
	Phase      domain.DeliveryStatus
	Results    []Result
	Score      int
	Ready      bool
}

// Failed returns the checks that did not pass.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// Snapshot is everything Evaluate looks at.
type Snapshot struct {
	Delivery    domain.Delivery
	Photos      []domain.PhotoCategory
	LatestPoint *domain.GPSPoint
	Assignments []domain.Assignment
	Issues      []domain.Issue
	MaxAccuracy float64
}

// Evaluate runs every applicable check. It is deterministic for a given snapshot.
func Evaluate(s Snapshot) Report {
	if s.MaxAccuracy <= 0 {
		s.MaxAccuracy = domain.MaxTransitionAccuracy
	}
	phase := s.Delivery.EffectiveStatus()

	results := []Result{
		checkPhotos(phase, s.Photos),
		checkGPS(s.LatestPoint, s.MaxAccuracy),
		checkMileage(s.Assignments),
	}
	if slices.Contains(domain.RequiredCategories(phase), domain.PhotoSignature) {
		results = append(results, checkSignature(s.Photos))
	}
	results = append(results, checkIssues(s.Issues))

	passed := 0
	ready := true
	for _, r := range results {
		if r.Passed {
			passed++
			continue
		}
		if r.Severity == SeverityError {
			ready = false
		}
	}
	return Report{
		DeliveryID: s.Delivery.ID,
		Phase:      phase,
		Results:    results,
		Score:      int(math.Round(100 * float64(passed) / float64(len(results)))),
		Ready:      ready,
	}
}

func checkPhotos(phase domain.DeliveryStatus, present []domain.PhotoCategory) Result {
	required := domain.RequiredCategories(phase)
	missing := domain.MissingCategories(required, present)
	r := Result{
		Check:    CheckRequiredPhotos,
		Passed:   len(missing) == 0,
		Severity: SeverityError,
		Current:  len(required) - len(missing),
		Required: len(required),
		Missing:  missing,
	}
	if r.Passed {
		r.Message = fmt.Sprintf("all %d required photos present", r.Required)
	} else {
		r.Message = fmt.Sprintf("%d of %d required photos present", r.Current, r.Required)
	}
	return r
}

func checkGPS(p *domain.GPSPoint, limit float64) Result {
	r := Result{Check: CheckGPSAccuracy, Severity: SeverityError}
	switch {
	case p == nil:
		r.Message = "no GPS fix recorded"
	case !p.Location().MeetsAccuracy(limit):
		r.Message = fmt.Sprintf("latest fix accuracy %.0fm exceeds %.0fm", p.Accuracy, limit)
	default:
		r.Passed = true
		r.Message = fmt.Sprintf("latest fix accuracy %.0fm", p.Accuracy)
	}
	return r
}

func checkMileage(as []domain.Assignment) Result {
	r := Result{Check: CheckMileage, Severity: SeverityWarning, Message: "starting mileage not recorded"}
	for _, a := range as {
		if a.Status == domain.AssignmentDeclined || a.StartingMileage == nil {
			continue
		}
		r.Passed = true
		r.Message = fmt.Sprintf("starting mileage %.1f", *a.StartingMileage)
		break
	}
	return r
}

func checkSignature(present []domain.PhotoCategory) Result {
	r := Result{Check: CheckSignature, Severity: SeverityError, Required: 1}
	if slices.Contains(present, domain.PhotoSignature) {
		r.Passed = true
		r.Current = 1
		r.Message = "customer signature captured"
		return r
	}
	r.Missing = []domain.PhotoCategory{domain.PhotoSignature}
	r.Message = "customer signature missing"
	return r
}

func checkIssues(issues []domain.Issue) Result {
	var critical, open int
	for _, i := range issues {
		if i.Resolved() {
			continue
		}
		open++
		if i.Severity == domain.SeverityCritical {
			critical++
		}
	}
	switch {
	case critical > 0:
		return Result{Check: CheckIssues, Severity: SeverityError,
			Message: fmt.Sprintf("%d unresolved critical issue(s)", critical)}
	case open > 0:
		return Result{Check: CheckIssues, Passed: true, Severity: SeverityWarning,
			Message: fmt.Sprintf("%d unresolved issue(s)", open)}
	default:
		return Result{Check: CheckIssues, Passed: true, Severity: SeverityInfo, Message: "no open issues"}
	}
}
