package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
)

// Backend names accepted by the factory.
const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendNone   = "none"
)

// NewLedgerStore creates a LedgerStore for the configured backend. The
// "none" backend returns nil: the ledger runs purely in memory and orphan
// detection only covers the current process.
func NewLedgerStore(backend, path string) (core.LedgerStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendNone, "":
		return nil, nil
	case BackendSQLite:
		if !strings.HasSuffix(path, ".db") {
			path = strings.TrimSuffix(path, filepath.Ext(path)) + ".db"
		}
		return NewSQLiteLedgerStore(path)
	case BackendJSON:
		return NewJSONLedgerStore(path), nil
	default:
		return nil, core.ErrConfig(fmt.Sprintf("unknown state backend %q", backend))
	}
}
