package core

import "time"

// HandleID identifies one tracked resource instance. IDs are assigned
// monotonically by the ledger at acquisition and never reused.
type HandleID int64

// ResourceHandle is one tracked resource instance. AcquiredAt is set once
// at acquisition; ReleasedAt is set exactly once on release and is never
// earlier than AcquiredAt.
type ResourceHandle struct {
	ID         HandleID     `json:"id"`
	Type       ResourceType `json:"resource_type"`
	Owner      string       `json:"owner"`
	AcquiredAt time.Time    `json:"acquired_at"`
	ReleasedAt *time.Time   `json:"released_at,omitempty"`
	Context    string       `json:"context,omitempty"`
}

// Open reports whether the handle has not been released.
func (h ResourceHandle) Open() bool {
	return h.ReleasedAt == nil
}

// Age returns how long the handle has been (or was) held as of now.
func (h ResourceHandle) Age(now time.Time) time.Duration {
	if h.ReleasedAt != nil {
		return h.ReleasedAt.Sub(h.AcquiredAt)
	}
	return now.Sub(h.AcquiredAt)
}

// RejectedRelease records a release call the ledger refused: either a
// double release or a release of an id it has never issued. The ledger
// captures these as data on a side channel; the double-release detector
// turns them into violations.
type RejectedRelease struct {
	HandleID   HandleID  `json:"handle_id"`
	Code       string    `json:"code"` // CodeDoubleRelease or CodeUnknownHandle
	Owner      string    `json:"owner,omitempty"`
	RejectedAt time.Time `json:"rejected_at"`
}
