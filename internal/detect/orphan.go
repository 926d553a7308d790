package detect

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// OrphanDetector flags open handles whose owner is no longer a registered
// live subsystem, regardless of age. The registry is supplied externally;
// with persistence enabled this is what catches handles left behind by a
// crashed process after restart.
type OrphanDetector struct {
	owners core.OwnerRegistry
}

// NewOrphanDetector creates the orphan detector.
func NewOrphanDetector(owners core.OwnerRegistry) *OrphanDetector {
	return &OrphanDetector{owners: owners}
}

func (d *OrphanDetector) Name() string { return "orphan" }

func (d *OrphanDetector) Evaluate(ctx context.Context, snap core.SnapshotView, policies core.PolicyLookup) ([]core.Violation, error) {
	var violations []core.Violation

	for _, rt := range snap.OpenTypes() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pol := policies.Lookup(rt)
		for _, h := range snap.OpenByType(rt) {
			if d.owners.Live(h.Owner) {
				continue
			}
			violations = append(violations, core.Violation{
				HandleID:     h.ID,
				ResourceType: rt,
				Owner:        h.Owner,
				Kind:         core.ViolationOrphaned,
				Severity:     pol.Severity,
				Policy:       pol,
				DetectedAt:   snap.TakenAt(),
				Detail:       fmt.Sprintf("owner %q is not live", h.Owner),
			})
		}
	}
	return violations, nil
}

// StaticOwnerRegistry is a fixed set of live owners, useful for tests and
// for deployments that declare their subsystems up front.
type StaticOwnerRegistry map[string]bool

// Live reports whether the owner is registered.
func (r StaticOwnerRegistry) Live(owner string) bool { return r[owner] }
