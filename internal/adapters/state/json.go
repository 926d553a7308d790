package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/fsutil"
)

// JSONLedgerStore implements core.LedgerStore with a single JSON file.
// Every save rewrites the file atomically, so a crash mid-write leaves
// the previous complete state behind.
type JSONLedgerStore struct {
	path    string
	mu      sync.Mutex
	records map[core.HandleID]core.ResourceHandle
	loaded  bool
}

// ledgerEnvelope wraps records with metadata.
type ledgerEnvelope struct {
	Version   int                   `json:"version"`
	UpdatedAt time.Time             `json:"updated_at"`
	Handles   []core.ResourceHandle `json:"handles"`
}

// NewJSONLedgerStore creates a JSON-file ledger store.
func NewJSONLedgerStore(path string) *JSONLedgerStore {
	return &JSONLedgerStore{
		path:    path,
		records: make(map[core.HandleID]core.ResourceHandle),
	}
}

// SaveHandle inserts or updates one record and rewrites the file.
func (s *JSONLedgerStore) SaveHandle(_ context.Context, h core.ResourceHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	s.records[h.ID] = h
	return s.flushLocked()
}

// LoadHandles returns all persisted records ordered by id.
func (s *JSONLedgerStore) LoadHandles(_ context.Context) ([]core.ResourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	out := make([]core.ResourceHandle, 0, len(s.records))
	for _, h := range s.records {
		out = append(out, h)
	}
	sortHandles(out)
	return out, nil
}

// Close flushes any in-memory state.
func (s *JSONLedgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil
	}
	return s.flushLocked()
}

func (s *JSONLedgerStore) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}
	data, err := fsutil.ReadFileScoped(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("reading ledger file %s", s.path)).WithCause(err)
	}

	var env ledgerEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("parsing ledger file %s", s.path)).WithCause(err)
	}
	for _, h := range env.Handles {
		s.records[h.ID] = h
	}
	s.loaded = true
	return nil
}

func (s *JSONLedgerStore) flushLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	handles := make([]core.ResourceHandle, 0, len(s.records))
	for _, h := range s.records {
		handles = append(handles, h)
	}
	sortHandles(handles)

	env := ledgerEnvelope{
		Version:   1,
		UpdatedAt: time.Now(),
		Handles:   handles,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger state: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("writing ledger file %s", s.path)).WithCause(err)
	}
	return nil
}

func sortHandles(handles []core.ResourceHandle) {
	sort.Slice(handles, func(i, j int) bool { return handles[i].ID < handles[j].ID })
}
