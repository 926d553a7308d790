package detect

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// AgeDetector flags open handles held past their policy's max age. Ages
// are measured against the snapshot time, not wall clock, so repeated
// evaluation of the same snapshot yields identical results.
type AgeDetector struct{}

// NewAgeDetector creates the age detector.
func NewAgeDetector() *AgeDetector { return &AgeDetector{} }

func (d *AgeDetector) Name() string { return "age" }

func (d *AgeDetector) Evaluate(ctx context.Context, snap core.SnapshotView, policies core.PolicyLookup) ([]core.Violation, error) {
	now := snap.TakenAt()
	var violations []core.Violation

	for _, rt := range snap.OpenTypes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pol := policies.Lookup(rt)
		for _, h := range snap.OpenByType(rt) {
			age := now.Sub(h.AcquiredAt)
			if age <= pol.MaxAge {
				continue
			}
			violations = append(violations, core.Violation{
				HandleID:     h.ID,
				ResourceType: rt,
				Owner:        h.Owner,
				Kind:         core.ViolationAgeExceeded,
				Severity:     pol.Severity,
				Policy:       pol,
				DetectedAt:   now,
				Detail:       fmt.Sprintf("open for %s, max age %s", age.Round(0), pol.MaxAge),
			})
		}
	}
	return violations, nil
}
