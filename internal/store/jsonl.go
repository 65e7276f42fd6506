package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mesh-intelligence/tasktree/pkg/types"
)

// taskRecord is the JSONL form of one row. Unlike the API shape it carries
// the raw parent and childs references, so a snapshot round-trips the table
// exactly.
type taskRecord struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      bool    `json:"status"`
	Updated     string  `json:"updated,omitempty"`
	Parent      *int64  `json:"parent,omitempty"`
	Childs      []int64 `json:"childs,omitempty"`
}

// ExportJSONL writes every task row to path, one JSON object per line,
// ordered by id. The file is written with the temp-file, fsync, rename
// pattern so a crash never leaves a torn snapshot behind.
func (b *Backend) ExportJSONL(ctx context.Context, path string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	rows, err := b.db.QueryContext(ctx, "SELECT "+taskColumns+" FROM tasks ORDER BY id")
	if err != nil {
		return fmt.Errorf("fetching tasks: %w", err)
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return fmt.Errorf("scanning task row: %w", err)
		}
		rec := taskRecord{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Parent:      t.ParentID,
			Childs:      t.ChildIDs,
		}
		if t.Updated != nil {
			rec.Updated = t.Updated.Format(time.RFC3339)
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding task %d: %w", t.ID, err)
		}
		records = append(records, data)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating tasks: %w", err)
	}

	return writeJSONL(path, records)
}

// ImportJSONL loads task rows from path, preserving ids. Rows already
// present under an imported id are replaced; malformed lines and records
// without an id or title are skipped. The whole load runs in one
// transaction.
func (b *Backend) ImportJSONL(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return types.ErrStoreDetached
	}

	records, err := readJSONL(path)
	if err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, raw := range records {
		var rec taskRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if rec.ID == 0 || rec.Title == "" {
			continue
		}

		childs, err := childsValue(rec.Childs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			b.rebind("DELETE FROM tasks WHERE id = ?"), rec.ID); err != nil {
			return fmt.Errorf("replacing task %d: %w", rec.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			b.rebind("INSERT INTO tasks (id, title, description, status, updated, parent, childs) VALUES (?, ?, ?, ?, ?, ?, ?)"),
			rec.ID, rec.Title, nullableText(rec.Description), rec.Status,
			nullableText(rec.Updated), parentValue(rec.Parent), childs); err != nil {
			return fmt.Errorf("inserting task %d: %w", rec.ID, err)
		}
	}

	// Explicit ids bypass the serial sequence on postgres; advance it past
	// the imported rows so the next insert does not collide.
	if b.config.Driver == types.DriverPostgres {
		if _, err := tx.ExecContext(ctx,
			"SELECT setval(pg_get_serial_sequence('tasks', 'id'), (SELECT COALESCE(MAX(id), 1) FROM tasks))"); err != nil {
			return fmt.Errorf("advancing id sequence: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}
	return nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line
// as a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
