// Package store implements the relational task store behind the TreeStore
// contract. SQLite (via modernc.org/sqlite, no cgo) is the default engine;
// postgres (via lib/pq) covers server deployments. Every multi-row
// mutation runs inside a single transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/tasktree/pkg/types"
)

// DBFileName is the SQLite database file created under the data directory.
const DBFileName = "tasks.db"

// Backend implements types.TreeStore over database/sql.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	tasks    *tasksTable
}

// Compile-time interface check.
var _ types.TreeStore = (*Backend)(nil)

// NewBackend creates an unattached backend. Call Attach with a validated
// Config before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the database for the configured driver and creates the tasks
// table when it does not exist yet. The sqlite driver creates the data
// directory as needed. Returns ErrAlreadyAttached when called twice.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	var db *sql.DB
	switch config.Driver {
	case types.DriverSQLite:
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		sqliteDB, err := sql.Open("sqlite", filepath.Join(dataDir, DBFileName))
		if err != nil {
			return fmt.Errorf("opening sqlite database: %w", err)
		}
		// modernc sqlite allows one writer; a single connection avoids
		// SQLITE_BUSY between overlapping transactions.
		sqliteDB.SetMaxOpenConns(1)
		db = sqliteDB
	case types.DriverPostgres:
		pgDB, err := sql.Open("postgres", config.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("opening postgres database: %w", err)
		}
		db = pgDB
	}

	for _, ddl := range schemaDDL[config.Driver] {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.tasks = &tasksTable{backend: b}
	b.attached = true
	return nil
}

// Detach closes the database. Detaching an unattached backend is a no-op;
// any operation after Detach returns ErrStoreDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	b.db = nil
	b.tasks = nil
	b.attached = false
	return nil
}

// Ping verifies the backing connection.
func (b *Backend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.db.PingContext(ctx)
}

// rebind translates ? placeholders into the $n form when the postgres
// driver is active. Statements are written once with ? and rebound at
// execution time.
func (b *Backend) rebind(query string) string {
	if b.config.Driver != types.DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// InsertTask persists a new task, linking any carried child references in
// the same transaction.
func (b *Backend) InsertTask(ctx context.Context, task *types.Task) (*types.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.tasks.insert(ctx, task)
}

// GetTask returns the hydrated task for id.
func (b *Backend) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.tasks.get(ctx, id)
}

// GetRootTasks returns every task not referenced as a child, hydrated.
func (b *Backend) GetRootTasks(ctx context.Context) ([]*types.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	return b.tasks.getRoots(ctx)
}

// DeleteTaskRecursive removes the subtree rooted at id.
func (b *Backend) DeleteTaskRecursive(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.tasks.deleteRecursive(ctx, id)
}

// ToggleTask flips the done flag for id, cascading on activation.
func (b *Backend) ToggleTask(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.tasks.toggle(ctx, id)
}

// UpdateChilds rewrites the child list for id and fixes up parent
// references on both sides of the change.
func (b *Backend) UpdateChilds(ctx context.Context, id int64, childIDs []int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.tasks.updateChilds(ctx, id, childIDs)
}

// UpdateTask writes the full row for the task.
func (b *Backend) UpdateTask(ctx context.Context, task *types.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}
	return b.tasks.update(ctx, task)
}
