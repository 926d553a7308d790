package detect

import (
	"context"
	"fmt"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// DoubleReleaseDetector turns rejected release events into violations.
// Unlike the other detectors it is not a pure function of ledger state:
// the condition is an event, captured by the ledger on a side channel
// and drained into the snapshot it is evaluated with.
type DoubleReleaseDetector struct{}

// NewDoubleReleaseDetector creates the double-release detector.
func NewDoubleReleaseDetector() *DoubleReleaseDetector { return &DoubleReleaseDetector{} }

func (d *DoubleReleaseDetector) Name() string { return "double_release" }

func (d *DoubleReleaseDetector) Evaluate(ctx context.Context, snap core.SnapshotView, policies core.PolicyLookup) ([]core.Violation, error) {
	var violations []core.Violation

	for _, rej := range snap.RejectedReleases() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			rt     core.ResourceType
			owner  = rej.Owner
			detail string
		)
		if h, ok := snap.Handle(rej.HandleID); ok {
			rt = h.Type
			owner = h.Owner
		}
		switch rej.Code {
		case core.CodeUnknownHandle:
			detail = "release of unknown handle"
		default:
			detail = fmt.Sprintf("second release rejected at %s", rej.RejectedAt.Format("15:04:05.000"))
		}

		pol := policies.Lookup(rt)
		violations = append(violations, core.Violation{
			HandleID:     rej.HandleID,
			ResourceType: rt,
			Owner:        owner,
			Kind:         core.ViolationDoubleRelease,
			Severity:     pol.Severity,
			Policy:       pol,
			DetectedAt:   rej.RejectedAt,
			Detail:       detail,
		})
	}
	return violations, nil
}
