// Package ingest orchestrates a full sync run: fan-out fetch across
// source adapters, normalization, validation, deduplication, and
// persistence.
package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/propfolio/catalog-cli/internal/quality"
)

// SyncReport summarizes one sync run. Per-source failures are recorded
// here rather than failing the run; a run only errors when every source
// fails or the store is unreachable.
type SyncReport struct {
	RunID     uuid.UUID     `json:"run_id"`
	Location  string        `json:"location"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// FetchedBySource counts raw records per source. Failed sources
	// appear in SourceErrors instead.
	FetchedBySource map[string]int    `json:"fetched_by_source"`
	SourceErrors    map[string]string `json:"source_errors,omitempty"`

	Normalized int `json:"normalized"`
	Skipped    int `json:"skipped"`

	QualityScore     float64                  `json:"quality_score"`
	IssuesBySeverity map[quality.Severity]int `json:"issues_by_severity,omitempty"`

	Matches  int `json:"matches"`
	Clusters int `json:"clusters"`
	Unique   int `json:"unique"`

	Saved      int `json:"saved"`
	SaveErrors int `json:"save_errors"`
}
