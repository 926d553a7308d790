package core

import (
	"context"
	"time"
)

// =============================================================================
// Snapshot Port
// =============================================================================

// SnapshotView is a point-in-time, read-only view of the ledger. Writers
// after the snapshot call never affect the returned view; detectors rely
// on this for scan correctness.
type SnapshotView interface {
	// TakenAt returns when the snapshot was taken.
	TakenAt() time.Time

	// Handles returns all records in the view, ordered by id.
	Handles() []ResourceHandle

	// Handle returns the record for one id, if present in the view.
	Handle(id HandleID) (ResourceHandle, bool)

	// OpenByType returns the open handles of one type, ordered by id.
	OpenByType(rt ResourceType) []ResourceHandle

	// OpenTypes returns the resource types with at least one open handle.
	OpenTypes() []ResourceType

	// CountOpen returns the number of open handles of one type.
	CountOpen(rt ResourceType) int

	// RejectedReleases returns the rejected release events captured since
	// the previous snapshot drained them.
	RejectedReleases() []RejectedRelease
}

// =============================================================================
// Detection Ports
// =============================================================================

// PolicyLookup resolves the policy in effect for a resource type. Lookup
// never fails: unknown types resolve to the default policy.
type PolicyLookup interface {
	Lookup(rt ResourceType) PolicySnapshot
}

// Detector evaluates one class of violation against a snapshot. Detectors
// are stateless, independent, and must be bounded by snapshot size; a
// detector never performs I/O.
type Detector interface {
	// Name returns the stable detector identifier (e.g. "age", "count").
	Name() string

	// Evaluate scans the snapshot against the active policies and returns
	// the violations found. Failures are isolated by the runner.
	Evaluate(ctx context.Context, snap SnapshotView, policies PolicyLookup) ([]Violation, error)
}

// OwnerRegistry answers whether a logical owner subsystem is still live.
// Supplied externally; the orphan detector flags handles whose owner is
// no longer registered.
type OwnerRegistry interface {
	Live(owner string) bool
}

// =============================================================================
// Output Ports
// =============================================================================

// AlertSink receives each published violation set. Sinks must tolerate
// being called from the watchdog goroutine and return promptly.
type AlertSink interface {
	Publish(ctx context.Context, set ViolationSet) error
}

// =============================================================================
// Persistence Port
// =============================================================================

// LedgerStore is the optional backing store behind the ledger. When
// configured, the ledger writes lifecycle records through and reloads
// them at startup, which is what makes orphan detection work across
// process restarts.
type LedgerStore interface {
	// SaveHandle inserts or updates one handle record.
	SaveHandle(ctx context.Context, h ResourceHandle) error

	// LoadHandles returns all persisted records ordered by id.
	LoadHandles(ctx context.Context) ([]ResourceHandle, error)

	// Close releases the store.
	Close() error
}
