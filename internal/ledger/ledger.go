// Package ledger implements the concurrency-safe store of resource-handle
// lifecycle records. Writes are sharded by resource type so unrelated
// acquisitions never contend; snapshots are bounded copies taken under
// per-shard read locks, so detectors scan a frozen view while writers
// keep going.
package ledger

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
)

// DefaultRejectedCapacity bounds the rejected-release side channel. Under
// a pathological double-release storm the oldest events are dropped and
// counted rather than growing without bound.
const DefaultRejectedCapacity = 1024

type shard struct {
	mu      sync.RWMutex
	handles map[core.HandleID]*core.ResourceHandle
	open    int
}

// Ledger owns all ResourceHandle records for the process lifetime.
// Construct with New, inject where needed, Close on shutdown. Tests build
// isolated ledgers per case; there is no package-level instance.
type Ledger struct {
	nextID atomic.Int64
	closed atomic.Bool

	shardsMu sync.RWMutex
	shards   map[core.ResourceType]*shard

	indexMu sync.RWMutex
	byID    map[core.HandleID]core.ResourceType
	byOwner map[string]map[core.HandleID]struct{}

	rejectedMu      sync.Mutex
	rejected        []core.RejectedRelease
	rejectedDropped int64
	rejectedCap     int

	store  core.LedgerStore
	logger *logging.Logger
	now    func() time.Time
}

// Option configures the ledger.
type Option func(*Ledger)

// WithStore attaches a persistence backend. Lifecycle records are written
// through; on restart, Restore reloads them so orphan detection can see
// handles that outlived their process.
func WithStore(store core.LedgerStore) Option {
	return func(l *Ledger) { l.store = store }
}

// WithLogger sets the ledger logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithRejectedCapacity bounds the rejected-release side channel.
func WithRejectedCapacity(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.rejectedCap = n
		}
	}
}

// New creates an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		shards:      make(map[core.ResourceType]*shard),
		byID:        make(map[core.HandleID]core.ResourceType),
		byOwner:     make(map[string]map[core.HandleID]struct{}),
		rejectedCap: DefaultRejectedCapacity,
		logger:      logging.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore reloads persisted records into an empty ledger. Call once right
// after New when a store is configured, before any Acquire.
func (l *Ledger) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	handles, err := l.store.LoadHandles(ctx)
	if err != nil {
		return core.ErrState(core.CodeStateCorrupted, "restoring ledger").WithCause(err)
	}

	var maxID core.HandleID
	for _, h := range handles {
		rec := h
		s := l.shardFor(rec.Type)
		s.mu.Lock()
		s.handles[rec.ID] = &rec
		if rec.Open() {
			s.open++
		}
		s.mu.Unlock()

		l.indexMu.Lock()
		l.byID[rec.ID] = rec.Type
		if rec.Open() {
			l.indexOwnerLocked(rec.Owner, rec.ID)
		}
		l.indexMu.Unlock()

		if rec.ID > maxID {
			maxID = rec.ID
		}
	}
	l.nextID.Store(int64(maxID))
	l.logger.Info("ledger restored", "handles", len(handles))
	return nil
}

// Acquire inserts a new open handle and returns its id. Fails only with
// LEDGER_EXHAUSTED (id space, practically unreachable) or LEDGER_CLOSED.
func (l *Ledger) Acquire(ctx context.Context, rt core.ResourceType, owner, label string) (core.HandleID, error) {
	if l.closed.Load() {
		return 0, core.ErrState(core.CodeLedgerClosed, "ledger is closed")
	}

	next := l.nextID.Add(1)
	if next <= 0 {
		return 0, core.ErrLedgerExhausted()
	}
	id := core.HandleID(next)

	h := &core.ResourceHandle{
		ID:         id,
		Type:       rt,
		Owner:      owner,
		AcquiredAt: l.now(),
		Context:    label,
	}

	s := l.shardFor(rt)
	s.mu.Lock()
	s.handles[id] = h
	s.open++
	s.mu.Unlock()

	l.indexMu.Lock()
	l.byID[id] = rt
	l.indexOwnerLocked(owner, id)
	l.indexMu.Unlock()

	l.persist(ctx, *h)
	return id, nil
}

// Release marks a handle released. A second release of the same id and a
// release of an unknown id both return typed failures as data, never
// panic; the rejection is also recorded on the side channel for the
// double-release detector.
func (l *Ledger) Release(ctx context.Context, id core.HandleID) error {
	l.indexMu.RLock()
	rt, known := l.byID[id]
	l.indexMu.RUnlock()

	if !known {
		l.recordRejected(core.RejectedRelease{
			HandleID:   id,
			Code:       core.CodeUnknownHandle,
			RejectedAt: l.now(),
		})
		return core.ErrUnknownHandle(id)
	}

	s := l.shardFor(rt)
	s.mu.Lock()
	h := s.handles[id]
	if h.ReleasedAt != nil {
		owner := h.Owner
		s.mu.Unlock()
		l.recordRejected(core.RejectedRelease{
			HandleID:   id,
			Code:       core.CodeDoubleRelease,
			Owner:      owner,
			RejectedAt: l.now(),
		})
		return core.ErrDoubleRelease(id)
	}
	released := l.now()
	if released.Before(h.AcquiredAt) {
		released = h.AcquiredAt
	}
	h.ReleasedAt = &released
	s.open--
	rec := *h
	s.mu.Unlock()

	l.indexMu.Lock()
	l.unindexOwnerLocked(rec.Owner, id)
	l.indexMu.Unlock()

	l.persist(ctx, rec)
	return nil
}

// CountOpen returns the number of open handles of one type without taking
// a full snapshot, for fast-path admission checks.
func (l *Ledger) CountOpen(rt core.ResourceType) int {
	l.shardsMu.RLock()
	s, ok := l.shards[rt]
	l.shardsMu.RUnlock()
	if !ok {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.open
}

// CountOpenByOwner returns the number of open handles held by one owner.
func (l *Ledger) CountOpenByOwner(owner string) int {
	l.indexMu.RLock()
	defer l.indexMu.RUnlock()
	return len(l.byOwner[owner])
}

// OldestOpen returns the open handle of one type with the smallest id,
// or false when none is open. Ids are assigned monotonically, so smallest
// id means earliest acquisition.
func (l *Ledger) OldestOpen(rt core.ResourceType) (core.ResourceHandle, bool) {
	l.shardsMu.RLock()
	s, ok := l.shards[rt]
	l.shardsMu.RUnlock()
	if !ok {
		return core.ResourceHandle{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var oldest *core.ResourceHandle
	for _, h := range s.handles {
		if !h.Open() {
			continue
		}
		if oldest == nil || h.ID < oldest.ID {
			oldest = h
		}
	}
	if oldest == nil {
		return core.ResourceHandle{}, false
	}
	return *oldest, true
}

// Snapshot returns a point-in-time, read-only view of all records and
// drains the rejected-release side channel into it. Writers block only
// for the per-shard copy, never for the detector scan that follows.
func (l *Ledger) Snapshot() core.SnapshotView {
	l.shardsMu.RLock()
	shards := make([]*shard, 0, len(l.shards))
	for _, s := range l.shards {
		shards = append(shards, s)
	}
	l.shardsMu.RUnlock()

	handles := make([]core.ResourceHandle, 0, 64)
	for _, s := range shards {
		s.mu.RLock()
		for _, h := range s.handles {
			rec := *h
			if h.ReleasedAt != nil {
				t := *h.ReleasedAt
				rec.ReleasedAt = &t
			}
			handles = append(handles, rec)
		}
		s.mu.RUnlock()
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })

	return newSnapshot(l.now(), handles, l.drainRejected())
}

// OpenCounts returns the open-handle count per resource type, taken from
// the shard indices. Unlike Snapshot it never touches the rejected-release
// side channel, so status reads between detection passes cannot consume
// events the detectors are owed.
func (l *Ledger) OpenCounts() map[core.ResourceType]int {
	l.shardsMu.RLock()
	defer l.shardsMu.RUnlock()

	counts := make(map[core.ResourceType]int, len(l.shards))
	for rt, s := range l.shards {
		s.mu.RLock()
		if s.open > 0 {
			counts[rt] = s.open
		}
		s.mu.RUnlock()
	}
	return counts
}

// RejectedDropped returns how many rejected-release events were dropped
// because the side channel was full.
func (l *Ledger) RejectedDropped() int64 {
	l.rejectedMu.Lock()
	defer l.rejectedMu.Unlock()
	return l.rejectedDropped
}

// Close marks the ledger closed and releases the backing store if any.
// Acquire fails after Close; reads remain valid.
func (l *Ledger) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	if l.store != nil {
		return l.store.Close()
	}
	return nil
}

func (l *Ledger) shardFor(rt core.ResourceType) *shard {
	l.shardsMu.RLock()
	s, ok := l.shards[rt]
	l.shardsMu.RUnlock()
	if ok {
		return s
	}

	l.shardsMu.Lock()
	defer l.shardsMu.Unlock()
	if s, ok = l.shards[rt]; ok {
		return s
	}
	s = &shard{handles: make(map[core.HandleID]*core.ResourceHandle)}
	l.shards[rt] = s
	return s
}

func (l *Ledger) indexOwnerLocked(owner string, id core.HandleID) {
	set, ok := l.byOwner[owner]
	if !ok {
		set = make(map[core.HandleID]struct{})
		l.byOwner[owner] = set
	}
	set[id] = struct{}{}
}

func (l *Ledger) unindexOwnerLocked(owner string, id core.HandleID) {
	if set, ok := l.byOwner[owner]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(l.byOwner, owner)
		}
	}
}

func (l *Ledger) recordRejected(r core.RejectedRelease) {
	l.rejectedMu.Lock()
	defer l.rejectedMu.Unlock()
	if len(l.rejected) >= l.rejectedCap {
		l.rejected = l.rejected[1:]
		l.rejectedDropped++
	}
	l.rejected = append(l.rejected, r)
}

func (l *Ledger) drainRejected() []core.RejectedRelease {
	l.rejectedMu.Lock()
	defer l.rejectedMu.Unlock()
	out := l.rejected
	l.rejected = nil
	return out
}

func (l *Ledger) persist(ctx context.Context, h core.ResourceHandle) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveHandle(ctx, h); err != nil {
		l.logger.Error("persisting handle record", "handle_id", int64(h.ID), "error", err)
	}
}
