package core

import (
	"fmt"
	"time"
)

// Severity grades a policy breach and drives CI gate behavior.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
	SeverityFatal Severity = "fatal"
)

// Rank orders severities for sorting, highest first. Unknown severities
// rank below warn so malformed data never outranks real findings.
func (s Severity) Rank() int {
	switch s {
	case SeverityFatal:
		return 3
	case SeverityError:
		return 2
	case SeverityWarn:
		return 1
	}
	return 0
}

// Valid reports whether s is one of the fixed severity levels.
func (s Severity) Valid() bool {
	return s == SeverityWarn || s == SeverityError || s == SeverityFatal
}

// ParseSeverity parses a textual severity as found in policy files.
func ParseSeverity(v string) (Severity, error) {
	switch Severity(v) {
	case SeverityWarn:
		return SeverityWarn, nil
	case SeverityError:
		return SeverityError, nil
	case SeverityFatal:
		return SeverityFatal, nil
	}
	return "", ErrValidation(CodeUnknownSeverity, fmt.Sprintf("unknown severity %q", v))
}

// ViolationKind classifies what a detector found.
type ViolationKind string

const (
	ViolationAgeExceeded   ViolationKind = "age_exceeded"
	ViolationCountExceeded ViolationKind = "count_exceeded"
	ViolationDoubleRelease ViolationKind = "double_release"
	ViolationOrphaned      ViolationKind = "orphaned"
)

// PolicySnapshot freezes the policy values in effect at detection time so
// reports stay auditable after a policy reload.
type PolicySnapshot struct {
	ResourceType  ResourceType  `json:"resource_type"`
	MaxConcurrent int           `json:"max_concurrent"`
	MaxAge        time.Duration `json:"max_age"`
	Severity      Severity      `json:"severity"`
}

// Violation is one policy breach attributed to a handle. The HandleID is
// a reference; the ledger remains sole owner of the handle record.
type Violation struct {
	HandleID     HandleID       `json:"handle_id"`
	ResourceType ResourceType   `json:"resource_type"`
	Owner        string         `json:"owner,omitempty"`
	Kind         ViolationKind  `json:"kind"`
	Severity     Severity       `json:"severity"`
	Policy       PolicySnapshot `json:"policy_snapshot"`
	DetectedAt   time.Time      `json:"detected_at"`
	Detail       string         `json:"detail,omitempty"`
}

// DetectorError records a detector that failed during a run. It is an
// operational finding about the detection pipeline itself, kept separate
// from resource violations so one broken detector cannot be mistaken for
// a clean resource state.
type DetectorError struct {
	Detector   string    `json:"detector"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (e DetectorError) Error() string {
	return fmt.Sprintf("detector %s failed: %s", e.Detector, e.Message)
}

// ViolationSet is the outcome of one full detection pass.
type ViolationSet struct {
	RunID          string          `json:"run_id"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
	Violations     []Violation     `json:"violations"`
	DetectorErrors []DetectorError `json:"detector_errors,omitempty"`
}

// MaxSeverity returns the highest severity present, or "" when empty.
func (vs ViolationSet) MaxSeverity() Severity {
	var max Severity
	for _, v := range vs.Violations {
		if v.Severity.Rank() > max.Rank() {
			max = v.Severity
		}
	}
	return max
}

// CountBySeverity tallies violations per severity level.
func (vs ViolationSet) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, v := range vs.Violations {
		counts[v.Severity]++
	}
	return counts
}

// Empty reports whether the set holds no violations and no detector errors.
func (vs ViolationSet) Empty() bool {
	return len(vs.Violations) == 0 && len(vs.DetectorErrors) == 0
}
