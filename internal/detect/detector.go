// Package detect holds the built-in violation detectors and the runner
// that executes a registered set against one ledger snapshot. Detectors
// are stateless and independent; the runner isolates failures so one
// broken detector never blinds the run to the others.
package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
)

// DefaultParallelism bounds how many detectors evaluate concurrently.
const DefaultParallelism = 4

// Runner executes a set of detectors against a snapshot.
type Runner struct {
	detectors   []core.Detector
	logger      *logging.Logger
	parallelism int
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *logging.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// WithParallelism bounds concurrent detector evaluation.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// NewRunner creates a runner over the given detectors.
func NewRunner(detectors []core.Detector, opts ...RunnerOption) *Runner {
	r := &Runner{
		detectors:   detectors,
		logger:      logging.NewNop(),
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Detectors returns the registered detectors in registration order.
func (r *Runner) Detectors() []core.Detector {
	out := make([]core.Detector, len(r.detectors))
	copy(out, r.detectors)
	return out
}

// Run evaluates all detectors concurrently and concatenates results in
// registration order, keeping output deterministic regardless of
// scheduling. A detector failure or panic becomes a DetectorError; the
// remaining detectors still run.
func (r *Runner) Run(ctx context.Context, snap core.SnapshotView, policies core.PolicyLookup) ([]core.Violation, []core.DetectorError) {
	results := make([][]core.Violation, len(r.detectors))
	failures := make([]*core.DetectorError, len(r.detectors))

	g := new(errgroup.Group)
	g.SetLimit(r.parallelism)
	var mu sync.Mutex

	for i, d := range r.detectors {
		g.Go(func() error {
			violations, err := r.evaluate(ctx, d, snap, policies)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[i] = &core.DetectorError{
					Detector:   d.Name(),
					Message:    err.Error(),
					OccurredAt: time.Now(),
				}
				return nil
			}
			results[i] = violations
			return nil
		})
	}
	_ = g.Wait()

	return flatten(results, failures)
}

// RunUntilFatal evaluates detectors sequentially in registration order
// and stops at the first FATAL violation, leaving the remaining
// detectors unevaluated. The CI gate uses this to bound worst-case
// pipeline time; the sequential order makes the abort point reproducible.
func (r *Runner) RunUntilFatal(ctx context.Context, snap core.SnapshotView, policies core.PolicyLookup) (violations []core.Violation, errs []core.DetectorError, aborted bool) {
	for _, d := range r.detectors {
		found, err := r.evaluate(ctx, d, snap, policies)
		if err != nil {
			errs = append(errs, core.DetectorError{
				Detector:   d.Name(),
				Message:    err.Error(),
				OccurredAt: time.Now(),
			})
			continue
		}
		violations = append(violations, found...)
		for _, v := range found {
			if v.Severity == core.SeverityFatal {
				return violations, errs, true
			}
		}
	}
	return violations, errs, false
}

// evaluate runs one detector with panic isolation.
func (r *Runner) evaluate(ctx context.Context, d core.Detector, snap core.SnapshotView, policies core.PolicyLookup) (violations []core.Violation, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			violations = nil
			err = core.ErrDetector(d.Name(), fmt.Errorf("panic: %v", rec))
			r.logger.WithDetector(d.Name()).Error("detector panicked", "panic", rec)
		}
	}()

	violations, err = d.Evaluate(ctx, snap, policies)
	if err != nil {
		r.logger.WithDetector(d.Name()).Error("detector failed", "error", err)
		return nil, core.ErrDetector(d.Name(), err)
	}
	return violations, nil
}

func flatten(results [][]core.Violation, failures []*core.DetectorError) ([]core.Violation, []core.DetectorError) {
	var violations []core.Violation
	var errs []core.DetectorError
	for i := range results {
		violations = append(violations, results[i]...)
		if failures[i] != nil {
			errs = append(errs, *failures[i])
		}
	}
	return violations, errs
}

// Builtin returns the built-in detector set wired with the given owner
// registry. A nil registry disables orphan detection.
func Builtin(owners core.OwnerRegistry) []core.Detector {
	detectors := []core.Detector{
		NewAgeDetector(),
		NewCountDetector(),
		NewDoubleReleaseDetector(),
	}
	if owners != nil {
		detectors = append(detectors, NewOrphanDetector(owners))
	}
	return detectors
}
