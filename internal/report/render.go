package report

import (
	"fmt"
	"strings"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// Text renders the flattened human-readable form. Derived entirely from
// the structured report, in its order.
func (r Report) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Leak audit report %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	b.WriteString("\n")

	if r.Empty() {
		b.WriteString("No violations detected.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%d violation(s)", r.Summary.Total)
	if len(r.Summary.BySeverity) > 0 {
		parts := make([]string, 0, 3)
		for _, sev := range []core.Severity{core.SeverityFatal, core.SeverityError, core.SeverityWarn} {
			if n := r.Summary.BySeverity[sev]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, sev))
			}
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n\n")

	for _, v := range r.Violations {
		fmt.Fprintf(&b, "  [%s] %s handle=%d type=%s", strings.ToUpper(string(v.Severity)), v.Kind, v.HandleID, v.ResourceType)
		if v.Owner != "" {
			fmt.Fprintf(&b, " owner=%s", v.Owner)
		}
		if v.Detail != "" {
			fmt.Fprintf(&b, " (%s)", v.Detail)
		}
		b.WriteString("\n")
	}

	if len(r.DetectorErrors) > 0 {
		b.WriteString("\nDetector errors:\n")
		for _, e := range r.DetectorErrors {
			fmt.Fprintf(&b, "  %s: %s\n", e.Detector, e.Message)
		}
	}

	return b.String()
}
