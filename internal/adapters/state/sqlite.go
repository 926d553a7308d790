// Package state provides the optional persistence backends behind the
// ledger's LedgerStore port. SQLite is the durable default; the JSON
// backend suits tests and throwaway environments. Persistence is what
// makes orphan detection work across process restarts.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS handles (
	id            INTEGER PRIMARY KEY,
	resource_type TEXT    NOT NULL,
	owner         TEXT    NOT NULL,
	acquired_at   INTEGER NOT NULL,
	released_at   INTEGER,
	context       TEXT    NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_handles_type_open
	ON handles (resource_type) WHERE released_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_handles_owner_open
	ON handles (owner) WHERE released_at IS NULL;

INSERT OR IGNORE INTO schema_migrations (version) VALUES (1);
`

// SQLiteLedgerStore implements core.LedgerStore with SQLite storage.
type SQLiteLedgerStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
}

// NewSQLiteLedgerStore opens (or creates) the ledger database.
func NewSQLiteLedgerStore(dbPath string) (*SQLiteLedgerStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	// WAL mode keeps instrumented writers from blocking watchdog reads.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteLedgerStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteLedgerStore) migrate() error {
	if _, err := s.db.Exec(sqliteSchema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// SaveHandle inserts or updates one handle record.
func (s *SQLiteLedgerStore) SaveHandle(ctx context.Context, h core.ResourceHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var releasedAt *int64
	if h.ReleasedAt != nil {
		v := h.ReleasedAt.UnixNano()
		releasedAt = &v
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO handles (id, resource_type, owner, acquired_at, released_at, context)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET released_at = excluded.released_at`,
		int64(h.ID), string(h.Type), h.Owner, h.AcquiredAt.UnixNano(), releasedAt, h.Context)
	if err != nil {
		return core.ErrState(core.CodeStateCorrupted,
			fmt.Sprintf("saving handle %d", h.ID)).WithCause(err)
	}
	return nil
}

// LoadHandles returns all persisted records ordered by id.
func (s *SQLiteLedgerStore) LoadHandles(ctx context.Context) ([]core.ResourceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_type, owner, acquired_at, released_at, context
		FROM handles ORDER BY id`)
	if err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "loading handles").WithCause(err)
	}
	defer rows.Close()

	var out []core.ResourceHandle
	for rows.Next() {
		var (
			id          int64
			rt          string
			owner       string
			acquiredAt  int64
			releasedAt  sql.NullInt64
			handleLabel string
		)
		if err := rows.Scan(&id, &rt, &owner, &acquiredAt, &releasedAt, &handleLabel); err != nil {
			return nil, core.ErrState(core.CodeStateCorrupted, "scanning handle row").WithCause(err)
		}
		h := core.ResourceHandle{
			ID:         core.HandleID(id),
			Type:       core.ResourceType(rt),
			Owner:      owner,
			AcquiredAt: time.Unix(0, acquiredAt),
			Context:    handleLabel,
		}
		if releasedAt.Valid {
			t := time.Unix(0, releasedAt.Int64)
			h.ReleasedAt = &t
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrState(core.CodeStateCorrupted, "iterating handle rows").WithCause(err)
	}
	return out, nil
}

// PruneReleased removes released records older than the cutoff, keeping
// the database bounded on long-lived deployments.
func (s *SQLiteLedgerStore) PruneReleased(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM handles WHERE released_at IS NOT NULL AND released_at < ?`,
		cutoff.UnixNano())
	if err != nil {
		return 0, core.ErrState(core.CodeStateCorrupted, "pruning released handles").WithCause(err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteLedgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
