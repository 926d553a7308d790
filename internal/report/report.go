// Package report turns a violation set into a deterministic, diffable
// report. There is exactly one structured form; the human-readable text
// is derived from it, so the two can never drift.
package report

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// Summary aggregates a report for quick reading and gating.
type Summary struct {
	Total          int                        `json:"total"`
	BySeverity     map[core.Severity]int      `json:"by_severity,omitempty"`
	ByKind         map[core.ViolationKind]int `json:"by_kind,omitempty"`
	DetectorErrors int                        `json:"detector_errors"`
}

// Report is the structured output of one detection pass. Violations are
// ordered severity desc, then detection time asc, then handle id asc;
// identical inputs always produce byte-identical serialized output, so
// reports are safe to hash for CI caching.
type Report struct {
	RunID          string               `json:"run_id"`
	GeneratedAt    time.Time            `json:"generated_at"`
	Summary        Summary              `json:"summary"`
	Violations     []core.Violation     `json:"violations"`
	DetectorErrors []core.DetectorError `json:"detector_errors,omitempty"`
}

// Generate builds a report from a violation set. Pure: the input is not
// mutated and repeated calls yield identical reports.
func Generate(set core.ViolationSet) Report {
	violations := make([]core.Violation, len(set.Violations))
	copy(violations, set.Violations)
	sort.SliceStable(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if !a.DetectedAt.Equal(b.DetectedAt) {
			return a.DetectedAt.Before(b.DetectedAt)
		}
		return a.HandleID < b.HandleID
	})

	detectorErrors := make([]core.DetectorError, len(set.DetectorErrors))
	copy(detectorErrors, set.DetectorErrors)
	sort.SliceStable(detectorErrors, func(i, j int) bool {
		return detectorErrors[i].Detector < detectorErrors[j].Detector
	})

	summary := Summary{
		Total:          len(violations),
		DetectorErrors: len(detectorErrors),
	}
	if len(violations) > 0 {
		summary.BySeverity = make(map[core.Severity]int)
		summary.ByKind = make(map[core.ViolationKind]int)
		for _, v := range violations {
			summary.BySeverity[v.Severity]++
			summary.ByKind[v.Kind]++
		}
	}

	return Report{
		RunID:          set.RunID,
		GeneratedAt:    set.FinishedAt,
		Summary:        summary,
		Violations:     violations,
		DetectorErrors: detectorErrors,
	}
}

// JSON serializes the report. Go's encoder writes map keys in sorted
// order, so the output is byte-stable for a given report.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Empty reports whether the report carries no findings at all.
func (r Report) Empty() bool {
	return len(r.Violations) == 0 && len(r.DetectorErrors) == 0
}
