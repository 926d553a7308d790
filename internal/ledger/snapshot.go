package ledger

import (
	"sort"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// snapshot is the immutable view handed to detectors. All slices are
// copies taken at snapshot time; nothing here aliases live ledger state.
type snapshot struct {
	takenAt  time.Time
	handles  []core.ResourceHandle
	byID     map[core.HandleID]int
	byType   map[core.ResourceType][]core.ResourceHandle
	rejected []core.RejectedRelease
}

func newSnapshot(takenAt time.Time, handles []core.ResourceHandle, rejected []core.RejectedRelease) *snapshot {
	byID := make(map[core.HandleID]int, len(handles))
	byType := make(map[core.ResourceType][]core.ResourceHandle)
	for i, h := range handles {
		byID[h.ID] = i
		if h.Open() {
			byType[h.Type] = append(byType[h.Type], h)
		}
	}
	return &snapshot{
		takenAt:  takenAt,
		handles:  handles,
		byID:     byID,
		byType:   byType,
		rejected: rejected,
	}
}

func (s *snapshot) TakenAt() time.Time { return s.takenAt }

func (s *snapshot) Handles() []core.ResourceHandle {
	out := make([]core.ResourceHandle, len(s.handles))
	copy(out, s.handles)
	return out
}

func (s *snapshot) Handle(id core.HandleID) (core.ResourceHandle, bool) {
	i, ok := s.byID[id]
	if !ok {
		return core.ResourceHandle{}, false
	}
	return s.handles[i], true
}

func (s *snapshot) OpenByType(rt core.ResourceType) []core.ResourceHandle {
	open := s.byType[rt]
	out := make([]core.ResourceHandle, len(open))
	copy(out, open)
	return out
}

func (s *snapshot) OpenTypes() []core.ResourceType {
	types := make([]core.ResourceType, 0, len(s.byType))
	for rt := range s.byType {
		types = append(types, rt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (s *snapshot) CountOpen(rt core.ResourceType) int {
	return len(s.byType[rt])
}

func (s *snapshot) RejectedReleases() []core.RejectedRelease {
	out := make([]core.RejectedRelease, len(s.rejected))
	copy(out, s.rejected)
	return out
}
