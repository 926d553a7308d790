package policy

import (
	"sort"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// Store holds the active policy per resource type. Immutable after
// construction: Lookup is safe for concurrent use without locking.
type Store struct {
	policies map[core.ResourceType]Policy
	fallback func(core.ResourceType) Policy
}

// NewStore builds a store from explicit policies. Later entries for the
// same resource type are rejected at load time, so the map holds exactly
// one policy per type.
func NewStore(policies []Policy) *Store {
	m := make(map[core.ResourceType]Policy, len(policies))
	for _, p := range policies {
		m[p.ResourceType] = p
	}
	return &Store{policies: m, fallback: Default}
}

// Lookup resolves the policy for a resource type. Never fails: types
// without an explicit entry resolve to the default policy.
func (s *Store) Lookup(rt core.ResourceType) core.PolicySnapshot {
	if p, ok := s.policies[rt]; ok {
		return p.Snapshot()
	}
	return s.fallback(rt).Snapshot()
}

// Policy returns the explicit policy for a type and whether one exists.
func (s *Store) Policy(rt core.ResourceType) (Policy, bool) {
	p, ok := s.policies[rt]
	return p, ok
}

// Policies returns the explicit policies ordered by resource type.
func (s *Store) Policies() []Policy {
	out := make([]Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResourceType < out[j].ResourceType
	})
	return out
}

// Len returns the number of explicit policies.
func (s *Store) Len() int { return len(s.policies) }
