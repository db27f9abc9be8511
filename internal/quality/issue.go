// Package quality validates normalized listings, scores batches, and
// resolves conflicts between records describing the same property.
package quality

import "time"

// Severity is the ordinal classification of a data quality issue.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IssueKind classifies what is wrong with a field.
type IssueKind string

const (
	MissingRequiredField IssueKind = "missing_required_field"
	InvalidFormat        IssueKind = "invalid_format"
	SuspiciousValue      IssueKind = "suspicious_value"
	DuplicateDetected    IssueKind = "duplicate_detected"
	GeocodingFailed      IssueKind = "geocoding_failed"
	StaleData            IssueKind = "stale_data"
)

// Issue is one field-level data quality finding. Issues are recomputed on
// every validation pass and never persisted as authoritative state.
type Issue struct {
	ListingKey   string    `json:"listing_key"`
	Kind         IssueKind `json:"kind"`
	Severity     Severity  `json:"severity"`
	Field        string    `json:"field"`
	Description  string    `json:"description"`
	SuggestedFix string    `json:"suggested_fix,omitempty"`
	DetectedAt   time.Time `json:"detected_at"`
}

// Report summarizes a batch validation pass.
type Report struct {
	Total        int       `json:"total"`
	ValidCount   int       `json:"valid_count"`
	Issues       []Issue   `json:"issues"`
	OverallScore float64   `json:"overall_score"`
	ValidatedAt  time.Time `json:"validated_at"`
}

// CountBySeverity groups the report's issues by severity.
func (r *Report) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 4)
	for _, issue := range r.Issues {
		counts[issue.Severity]++
	}
	return counts
}

// CountByKind groups the report's issues by kind.
func (r *Report) CountByKind() map[IssueKind]int {
	counts := make(map[IssueKind]int)
	for _, issue := range r.Issues {
		counts[issue.Kind]++
	}
	return counts
}
