package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

func TestAcquireRelease_Lifecycle(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	id, err := l.Acquire(ctx, core.ResourceFile, "messaging", "send_cycle")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first id 1, got %d", id)
	}
	if l.CountOpen(core.ResourceFile) != 1 {
		t.Fatalf("expected one open file handle")
	}
	if l.CountOpenByOwner("messaging") != 1 {
		t.Fatalf("expected one open handle for owner")
	}

	if err := l.Release(ctx, id); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if l.CountOpen(core.ResourceFile) != 0 {
		t.Fatalf("expected no open file handles after release")
	}
	if l.CountOpenByOwner("messaging") != 0 {
		t.Fatalf("expected no open handles for owner after release")
	}
}

func TestRelease_DoubleReleaseIsDataNotPanic(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	id, _ := l.Acquire(ctx, core.ResourceThread, "pool", "")
	if err := l.Release(ctx, id); err != nil {
		t.Fatalf("first release failed: %v", err)
	}

	err := l.Release(ctx, id)
	if !core.IsCode(err, core.CodeDoubleRelease) {
		t.Fatalf("expected DOUBLE_RELEASE, got %v", err)
	}

	// Exactly one success: the record still carries the original release time.
	snap := l.Snapshot()
	handles := snap.Handles()
	if len(handles) != 1 || handles[0].Open() {
		t.Fatalf("expected one released handle, got %+v", handles)
	}

	rejected := snap.RejectedReleases()
	if len(rejected) != 1 || rejected[0].Code != core.CodeDoubleRelease || rejected[0].HandleID != id {
		t.Fatalf("expected one double-release event, got %+v", rejected)
	}
}

func TestRelease_SecondReleaseDoesNotMoveTimestamp(t *testing.T) {
	t.Parallel()
	now := time.Now()
	clock := now
	var mu sync.Mutex
	l := New(WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}))
	defer l.Close()
	ctx := context.Background()

	id, _ := l.Acquire(ctx, core.ResourceSocket, "net", "")
	mu.Lock()
	clock = now.Add(time.Second)
	mu.Unlock()
	if err := l.Release(ctx, id); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	mu.Lock()
	clock = now.Add(time.Hour)
	mu.Unlock()
	_ = l.Release(ctx, id)

	h := l.Snapshot().Handles()[0]
	if !h.ReleasedAt.Equal(now.Add(time.Second)) {
		t.Fatalf("expected release timestamp unchanged, got %v", h.ReleasedAt)
	}
	if h.ReleasedAt.Before(h.AcquiredAt) {
		t.Fatalf("released_at before acquired_at")
	}
}

func TestRelease_UnknownHandle(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()

	err := l.Release(context.Background(), 999)
	if !core.IsCode(err, core.CodeUnknownHandle) {
		t.Fatalf("expected UNKNOWN_HANDLE, got %v", err)
	}

	rejected := l.Snapshot().RejectedReleases()
	if len(rejected) != 1 || rejected[0].Code != core.CodeUnknownHandle {
		t.Fatalf("expected one unknown-handle event, got %+v", rejected)
	}
}

func TestSnapshot_Isolation(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	id, _ := l.Acquire(ctx, core.ResourceFile, "a", "")
	snap := l.Snapshot()

	// Writers after the snapshot must not affect the view.
	_ = l.Release(ctx, id)
	if _, err := l.Acquire(ctx, core.ResourceFile, "b", ""); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if got := snap.CountOpen(core.ResourceFile); got != 1 {
		t.Fatalf("snapshot open count changed after writes: %d", got)
	}
	handles := snap.Handles()
	if len(handles) != 1 || !handles[0].Open() {
		t.Fatalf("snapshot records changed after writes: %+v", handles)
	}
}

func TestSnapshot_DrainsRejectedOnce(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	id, _ := l.Acquire(ctx, core.ResourceThread, "pool", "")
	_ = l.Release(ctx, id)
	_ = l.Release(ctx, id)

	first := l.Snapshot()
	if len(first.RejectedReleases()) != 1 {
		t.Fatalf("expected rejected event in first snapshot")
	}

	second := l.Snapshot()
	if len(second.RejectedReleases()) != 0 {
		t.Fatalf("expected side channel drained by first snapshot")
	}
}

func TestOpenCounts_DoesNotDrainRejected(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	id, _ := l.Acquire(ctx, core.ResourceFile, "indexer", "")
	_ = l.Release(ctx, id)
	_ = l.Release(ctx, id)
	if _, err := l.Acquire(ctx, core.ResourceSocket, "client", ""); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	counts := l.OpenCounts()
	if counts[core.ResourceSocket] != 1 {
		t.Fatalf("OpenCounts()[socket] = %d, want 1", counts[core.ResourceSocket])
	}
	if _, ok := counts[core.ResourceFile]; ok {
		t.Fatalf("released type should not appear in open counts")
	}

	// The rejected event is still there for the next detection snapshot.
	if got := len(l.Snapshot().RejectedReleases()); got != 1 {
		t.Fatalf("expected rejected event to survive OpenCounts, got %d", got)
	}
}

func TestRejected_CapacityBound(t *testing.T) {
	t.Parallel()
	l := New(WithRejectedCapacity(2))
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = l.Release(ctx, core.HandleID(1000+i))
	}

	if got := len(l.Snapshot().RejectedReleases()); got != 2 {
		t.Fatalf("expected side channel capped at 2, got %d", got)
	}
	if l.RejectedDropped() != 3 {
		t.Fatalf("expected 3 dropped events, got %d", l.RejectedDropped())
	}
}

func TestOldestOpen_SmallestID(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	first, _ := l.Acquire(ctx, core.ResourceThread, "pool", "")
	_, _ = l.Acquire(ctx, core.ResourceThread, "pool", "")
	third, _ := l.Acquire(ctx, core.ResourceThread, "pool", "")

	h, ok := l.OldestOpen(core.ResourceThread)
	if !ok || h.ID != first {
		t.Fatalf("expected oldest open to be handle %d, got %+v ok=%v", first, h, ok)
	}

	_ = l.Release(ctx, first)
	h, ok = l.OldestOpen(core.ResourceThread)
	if !ok || h.ID != first+1 {
		t.Fatalf("expected oldest open to advance, got %+v", h)
	}

	_ = l.Release(ctx, first+1)
	_ = l.Release(ctx, third)
	if _, ok := l.OldestOpen(core.ResourceThread); ok {
		t.Fatalf("expected no oldest open when all released")
	}
	if _, ok := l.OldestOpen(core.ResourceSocket); ok {
		t.Fatalf("expected no oldest open for untouched type")
	}
}

func TestClose_AcquireFails(t *testing.T) {
	t.Parallel()
	l := New()
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := l.Acquire(context.Background(), core.ResourceFile, "a", ""); !core.IsCode(err, core.CodeLedgerClosed) {
		t.Fatalf("expected LEDGER_CLOSED, got %v", err)
	}
	// Close is idempotent.
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestConcurrent_CountMatchesOpenHandles(t *testing.T) {
	t.Parallel()
	l := New()
	defer l.Close()
	ctx := context.Background()

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			owner := fmt.Sprintf("worker-%d", w)
			for i := 0; i < perWorker; i++ {
				id, err := l.Acquire(ctx, core.ResourceSocket, owner, "")
				if err != nil {
					t.Errorf("Acquire() error = %v", err)
					return
				}
				if i%2 == 0 {
					if err := l.Release(ctx, id); err != nil {
						t.Errorf("Release() error = %v", err)
						return
					}
				}
			}
		}(w)
	}

	// Snapshot concurrently with the writers; every view must be
	// internally consistent.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			snap := l.Snapshot()
			open := 0
			for _, h := range snap.Handles() {
				if h.Open() {
					open++
				}
			}
			if open != snap.CountOpen(core.ResourceSocket) {
				t.Errorf("snapshot inconsistent: %d open handles vs count %d",
					open, snap.CountOpen(core.ResourceSocket))
				return
			}
		}
	}()

	wg.Wait()
	<-done

	// Half of each worker's handles stay open.
	want := workers * perWorker / 2
	if got := l.CountOpen(core.ResourceSocket); got != want {
		t.Fatalf("CountOpen = %d, want %d", got, want)
	}

	snap := l.Snapshot()
	open := 0
	for _, h := range snap.Handles() {
		if h.Open() {
			open++
		}
	}
	if open != want {
		t.Fatalf("snapshot open handles = %d, want %d", open, want)
	}
}

// fakeStore records writes for persistence tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[core.HandleID]core.ResourceHandle
	closed  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[core.HandleID]core.ResourceHandle)}
}

func (s *fakeStore) SaveHandle(_ context.Context, h core.ResourceHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[h.ID] = h
	return nil
}

func (s *fakeStore) LoadHandles(_ context.Context) ([]core.ResourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ResourceHandle, 0, len(s.records))
	for _, h := range s.records {
		out = append(out, h)
	}
	return out, nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestPersistence_WriteThroughAndRestore(t *testing.T) {
	t.Parallel()
	store := newFakeStore()
	ctx := context.Background()

	l := New(WithStore(store))
	openID, _ := l.Acquire(ctx, core.ResourceSQLiteConn, "db", "pool")
	closedID, _ := l.Acquire(ctx, core.ResourceSQLiteConn, "db", "pool")
	_ = l.Release(ctx, closedID)

	// Simulate restart: a fresh ledger restores from the same store.
	restored := New(WithStore(store))
	if err := restored.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	if restored.CountOpen(core.ResourceSQLiteConn) != 1 {
		t.Fatalf("expected one open handle after restore, got %d",
			restored.CountOpen(core.ResourceSQLiteConn))
	}
	h, ok := restored.OldestOpen(core.ResourceSQLiteConn)
	if !ok || h.ID != openID {
		t.Fatalf("expected open handle %d after restore, got %+v", openID, h)
	}

	// Ids continue after the highest persisted id.
	next, err := restored.Acquire(ctx, core.ResourceSQLiteConn, "db", "")
	if err != nil {
		t.Fatalf("Acquire() after restore error = %v", err)
	}
	if next <= closedID {
		t.Fatalf("expected id beyond restored range, got %d", next)
	}

	if err := restored.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !store.closed {
		t.Fatalf("expected Close to close the store")
	}
}
