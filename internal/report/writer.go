package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/leakgate/internal/fsutil"
)

// Writer persists the last generated report so the report command (and
// the status API) can serve it after the producing run has exited.
// Writes are atomic: readers see either the previous report or the new
// one, never a torn file.
type Writer struct {
	mu   sync.Mutex
	path string
}

// NewWriter creates a writer rooted at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the backing file path.
func (w *Writer) Path() string { return w.path }

// Write persists the report.
func (w *Writer) Write(r Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o750); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := r.JSON()
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := renameio.WriteFile(w.path, data, 0o600); err != nil {
		return fmt.Errorf("writing report file: %w", err)
	}
	return nil
}

// Load reads back the last persisted report.
func (w *Writer) Load() (Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var r Report
	data, err := fsutil.ReadFileScoped(w.path)
	if err != nil {
		return r, fmt.Errorf("reading report file: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parsing report file %s: %w", w.path, err)
	}
	return r, nil
}

// Exists reports whether a persisted report is present.
func (w *Writer) Exists() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := os.Stat(w.path)
	return err == nil
}
