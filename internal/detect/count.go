package detect

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// CountDetector flags resource types whose open-handle count exceeds the
// policy cap. One violation per type, attributed to the oldest open
// handle (smallest id), which keeps reports stable across repeated runs.
type CountDetector struct{}

// NewCountDetector creates the count detector.
func NewCountDetector() *CountDetector { return &CountDetector{} }

func (d *CountDetector) Name() string { return "count" }

func (d *CountDetector) Evaluate(ctx context.Context, snap core.SnapshotView, policies core.PolicyLookup) ([]core.Violation, error) {
	var violations []core.Violation

	for _, rt := range snap.OpenTypes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pol := policies.Lookup(rt)
		if pol.MaxConcurrent <= 0 {
			continue
		}
		open := snap.OpenByType(rt)
		if len(open) <= pol.MaxConcurrent {
			continue
		}
		// OpenByType is ordered by id, so the first entry is the oldest.
		oldest := open[0]
		violations = append(violations, core.Violation{
			HandleID:     oldest.ID,
			ResourceType: rt,
			Owner:        oldest.Owner,
			Kind:         core.ViolationCountExceeded,
			Severity:     pol.Severity,
			Policy:       pol,
			DetectedAt:   snap.TakenAt(),
			Detail:       fmt.Sprintf("%d open handles, max %d", len(open), pol.MaxConcurrent),
		})
	}
	return violations, nil
}
