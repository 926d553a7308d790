// Package policy loads and serves the declarative leak/exhaustion policies
// the detectors evaluate against. A store is immutable after load; reloads
// build a new store and swap it atomically, so concurrent readers always
// see a complete policy set.
package policy

import (
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// Policy bounds one resource type. MaxConcurrent of 0 means unbounded;
// MaxAge is the open-handle age past which a handle counts as leaked.
type Policy struct {
	ResourceType  core.ResourceType
	MaxConcurrent int
	MaxAge        time.Duration
	Severity      core.Severity
}

// Snapshot freezes the policy values for attachment to a violation.
func (p Policy) Snapshot() core.PolicySnapshot {
	return core.PolicySnapshot{
		ResourceType:  p.ResourceType,
		MaxConcurrent: p.MaxConcurrent,
		MaxAge:        p.MaxAge,
		Severity:      p.Severity,
	}
}

// DefaultMaxAge bounds handle age for resource types without an explicit
// policy entry.
const DefaultMaxAge = 10 * time.Minute

// Default returns the fallback policy for a resource type with no explicit
// entry: bounded age, unbounded concurrency, warn severity.
func Default(rt core.ResourceType) Policy {
	return Policy{
		ResourceType:  rt,
		MaxConcurrent: 0,
		MaxAge:        DefaultMaxAge,
		Severity:      core.SeverityWarn,
	}
}
