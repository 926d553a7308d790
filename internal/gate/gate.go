// Package gate implements the one-shot CI evaluation: snapshot, detect,
// report, verdict. Single synchronous call, no background scheduling, so
// a pipeline step gets the same answer for the same ledger state.
package gate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/detect"
	"github.com/hugo-lorenzo-mato/leakgate/internal/ledger"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
)

// Status is the gate verdict.
type Status string

const (
	// StatusPass means no violations at all.
	StatusPass Status = "pass"
	// StatusWarned means warn-only violations: the gate passes but the
	// report is attached for visibility.
	StatusWarned Status = "warned"
	// StatusFail means at least one error or fatal violation.
	StatusFail Status = "fail"
)

// ExitCode maps the verdict to the process exit contract:
// 0 pass, 1 warn-only, 2 error/fatal.
func (s Status) ExitCode() int {
	switch s {
	case StatusPass:
		return 0
	case StatusWarned:
		return 1
	default:
		return 2
	}
}

// Passed reports whether the gate lets the pipeline through.
func (s Status) Passed() bool { return s != StatusFail }

// Result is the gate outcome.
type Result struct {
	Status Status        `json:"status"`
	Report report.Report `json:"report"`
	// Aborted is set when a fatal violation cut the run short, leaving
	// later detectors unevaluated.
	Aborted bool `json:"aborted,omitempty"`
}

// Evaluate runs the full pipeline once: ledger snapshot, detectors,
// report. Detectors run sequentially and a fatal violation aborts the
// remaining ones, bounding worst-case pipeline time. Detector errors are
// recorded in the report but do not fail the gate by themselves.
func Evaluate(ctx context.Context, l *ledger.Ledger, policies core.PolicyLookup, runner *detect.Runner) Result {
	started := time.Now()
	snap := l.Snapshot()

	violations, detectorErrors, aborted := runner.RunUntilFatal(ctx, snap, policies)

	set := core.ViolationSet{
		RunID:          uuid.NewString(),
		StartedAt:      started,
		FinishedAt:     time.Now(),
		Violations:     violations,
		DetectorErrors: detectorErrors,
	}

	return Result{
		Status:  statusFor(set),
		Report:  report.Generate(set),
		Aborted: aborted,
	}
}

func statusFor(set core.ViolationSet) Status {
	switch set.MaxSeverity() {
	case core.SeverityFatal, core.SeverityError:
		return StatusFail
	case core.SeverityWarn:
		return StatusWarned
	default:
		return StatusPass
	}
}
