package policy

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/hugo-lorenzo-mato/leakgate/internal/logging"
)

// Reloader serves the current policy store and swaps in a fresh one when
// the backing file changes. A failed reload keeps the previous store; the
// watchdog never observes a half-loaded policy set.
type Reloader struct {
	path    string
	current atomic.Pointer[Store]
	logger  *logging.Logger
}

// NewReloader loads the initial store from path. The initial load is
// strict: a broken policy file at startup is fatal, matching load-time
// error semantics.
func NewReloader(path string, logger *logging.Logger) (*Reloader, error) {
	store, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Reloader{path: path, logger: logger.WithComponent("policy")}
	r.current.Store(store)
	return r, nil
}

// Store returns the active policy store.
func (r *Reloader) Store() *Store {
	return r.current.Load()
}

// Watch blocks until ctx is done, reloading the policy file on change.
// Editors and config management tools often replace files by rename, so
// the watch is on the parent directory filtered to the target name.
func (r *Reloader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(r.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn("policy watcher error", "error", err)
		}
	}
}

func (r *Reloader) reload() {
	store, err := LoadFile(r.path)
	if err != nil {
		r.logger.Error("policy reload failed, keeping previous store", "path", r.path, "error", err)
		return
	}
	r.current.Store(store)
	r.logger.Info("policy store reloaded", "path", r.path, "policies", store.Len())
}
