package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/tasktree/pkg/types"
)

// taskColumns is the select list shared by every task query.
const taskColumns = "id, title, description, status, updated, parent, childs"

// querier is satisfied by *sql.DB and *sql.Tx so the traversal helpers can
// run standalone or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner abstracts over *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// tasksTable holds all SQL for the tasks table. The backend owns locking
// and the attached check; these methods assume both are already handled.
type tasksTable struct {
	backend *Backend
}

// scanTask reads one row into a flat Task.
func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var description, updated, childs sql.NullString
	var parent sql.NullInt64
	if err := row.Scan(&t.ID, &t.Title, &description, &t.Status, &updated, &parent, &childs); err != nil {
		return nil, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if updated.Valid {
		ts, err := time.Parse(time.RFC3339, updated.String)
		if err != nil {
			return nil, fmt.Errorf("parsing updated timestamp: %w", err)
		}
		t.Updated = &ts
	}
	if parent.Valid {
		pid := parent.Int64
		t.ParentID = &pid
	}
	if childs.Valid && childs.String != "" {
		if err := json.Unmarshal([]byte(childs.String), &t.ChildIDs); err != nil {
			return nil, fmt.Errorf("parsing childs of task %d: %w", t.ID, err)
		}
	}
	return &t, nil
}

// nullableText returns s as a NULL-able column value, NULL when empty.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// childsValue encodes the child id list for storage, NULL when empty.
func childsValue(ids []int64) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encoding childs: %w", err)
	}
	return string(data), nil
}

// parentValue returns the parent reference as a NULL-able column value.
func parentValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// getFlat reads a single row without expanding references.
func (tt *tasksTable) getFlat(ctx context.Context, q querier, id int64) (*types.Task, error) {
	row := q.QueryRowContext(ctx,
		tt.backend.rebind("SELECT "+taskColumns+" FROM tasks WHERE id = ?"), id)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return t, nil
}

// hydrate builds the task tree around id. One visited set spans the whole
// traversal, children and parents alike: an id reached a second time is
// treated as absent, so a stored graph that already loops still yields a
// finite tree. Dangling child references are skipped the same way.
func (tt *tasksTable) hydrate(ctx context.Context, q querier, id int64, visited map[int64]bool) (*types.Task, error) {
	if visited[id] {
		return nil, nil
	}
	visited[id] = true

	t, err := tt.getFlat(ctx, q, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Childs is non-nil on every hydrated task so it serializes as [].
	t.Childs = make([]*types.Task, 0, len(t.ChildIDs))
	for _, childID := range t.ChildIDs {
		child, err := tt.hydrate(ctx, q, childID, visited)
		if err != nil {
			return nil, err
		}
		if child != nil {
			t.Childs = append(t.Childs, child)
		}
	}

	if t.ParentID != nil {
		parent, err := tt.hydrate(ctx, q, *t.ParentID, visited)
		if err != nil {
			return nil, err
		}
		t.Parent = parent
	}
	return t, nil
}

// get returns the hydrated task for id, or ErrNotFound.
func (tt *tasksTable) get(ctx context.Context, id int64) (*types.Task, error) {
	t, err := tt.hydrate(ctx, tt.backend.db, id, make(map[int64]bool))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, types.ErrNotFound
	}
	return t, nil
}

// getRoots returns every task whose id appears in no child list, each
// hydrated with a fresh visited set. Root status is decided by list
// membership, not the parent column, so the result follows what the rows
// actually claim even when the two disagree.
func (tt *tasksTable) getRoots(ctx context.Context) ([]*types.Task, error) {
	rows, err := tt.backend.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}
	defer rows.Close()

	var all []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	referenced := make(map[int64]bool)
	for _, t := range all {
		for _, childID := range t.ChildIDs {
			referenced[childID] = true
		}
	}

	// Empty slice, not nil, so the result serializes as [].
	roots := make([]*types.Task, 0)
	for _, t := range all {
		if referenced[t.ID] {
			continue
		}
		root, err := tt.hydrate(ctx, tt.backend.db, t.ID, make(map[int64]bool))
		if err != nil {
			return nil, err
		}
		if root != nil {
			roots = append(roots, root)
		}
	}
	return roots, nil
}

// insert persists a new task. A carried child list is linked through the
// child-list rewrite inside the same transaction, so a rejected rewrite
// rolls the freshly inserted row back with it.
func (tt *tasksTable) insert(ctx context.Context, task *types.Task) (*types.Task, error) {
	if task.Title == "" {
		return nil, types.ErrTitleEmpty
	}

	tx, err := tt.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	const insertSQL = "INSERT INTO tasks (title, description, status, updated, parent, childs) VALUES (?, ?, ?, ?, ?, ?)"
	args := []any{task.Title, nullableText(task.Description), task.Status, now, parentValue(task.ParentID), nil}

	var id int64
	if tt.backend.config.Driver == types.DriverPostgres {
		row := tx.QueryRowContext(ctx, tt.backend.rebind(insertSQL+" RETURNING id"), args...)
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrStorageFailure
			}
			return nil, fmt.Errorf("inserting task: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, insertSQL, args...)
		if err != nil {
			return nil, fmt.Errorf("inserting task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("reading inserted id: %w", err)
		}
	}

	if len(task.ChildIDs) > 0 {
		if err := tt.updateChildsTx(ctx, tx, id, task.ChildIDs); err != nil {
			return nil, err
		}
	}

	created, err := tt.getFlat(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing insert: %w", err)
	}
	// Flat result, but childs still serializes as [].
	created.Childs = make([]*types.Task, 0)
	return created, nil
}

// deleteRecursive removes the subtree rooted at id inside one transaction,
// children before parents. A missing id is a no-op.
func (tt *tasksTable) deleteRecursive(ctx context.Context, id int64) error {
	tx, err := tt.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tt.deleteSubtree(ctx, tx, id, make(map[int64]bool)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

func (tt *tasksTable) deleteSubtree(ctx context.Context, tx *sql.Tx, id int64, visited map[int64]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true

	t, err := tt.getFlat(ctx, tx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, childID := range t.ChildIDs {
		if err := tt.deleteSubtree(ctx, tx, childID, visited); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		tt.backend.rebind("DELETE FROM tasks WHERE id = ?"), id); err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return nil
}

// toggle flips the done flag. Activation forces every descendant done,
// re-reading each child list as the walk descends; deactivation touches
// only the task itself. A missing id is a no-op.
func (tt *tasksTable) toggle(ctx context.Context, id int64) error {
	tx, err := tt.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := tt.getFlat(ctx, tx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	done := !t.Status
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		tt.backend.rebind("UPDATE tasks SET status = ?, updated = ? WHERE id = ?"),
		done, now, id); err != nil {
		return fmt.Errorf("toggling task %d: %w", id, err)
	}

	if done {
		visited := map[int64]bool{id: true}
		for _, childID := range t.ChildIDs {
			if err := tt.forceDone(ctx, tx, childID, visited); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing toggle: %w", err)
	}
	return nil
}

// forceDone marks id and every descendant done, skipping ids already seen
// and ids that no longer exist.
func (tt *tasksTable) forceDone(ctx context.Context, tx *sql.Tx, id int64, visited map[int64]bool) error {
	if visited[id] {
		return nil
	}
	visited[id] = true

	t, err := tt.getFlat(ctx, tx, id)
	if errors.Is(err, types.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx,
		tt.backend.rebind("UPDATE tasks SET status = ?, updated = ? WHERE id = ?"),
		true, now, id); err != nil {
		return fmt.Errorf("marking task %d done: %w", id, err)
	}

	for _, childID := range t.ChildIDs {
		if err := tt.forceDone(ctx, tx, childID, visited); err != nil {
			return err
		}
	}
	return nil
}

// updateChilds validates and applies a full child-list rewrite in one
// transaction.
func (tt *tasksTable) updateChilds(ctx context.Context, id int64, childIDs []int64) error {
	tx, err := tt.backend.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tt.updateChildsTx(ctx, tx, id, childIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing child rewrite: %w", err)
	}
	return nil
}

// updateChildsTx replaces the child list of id and re-establishes the
// parent back-references on both sides of the diff. This is the only place
// a parent link is ever written, so list and back-reference stay in step.
// Validation runs before the first write: the task may not list itself, and
// no candidate child may already sit on the task's ancestor chain.
func (tt *tasksTable) updateChildsTx(ctx context.Context, tx *sql.Tx, id int64, childIDs []int64) error {
	for _, childID := range childIDs {
		if childID == id {
			return fmt.Errorf("task %d cannot be its own child: %w", id, types.ErrCycleDetected)
		}
	}

	t, err := tt.getFlat(ctx, tx, id)
	if err != nil {
		return err
	}

	for _, childID := range childIDs {
		ancestor, err := tt.isAncestor(ctx, tx, childID, id)
		if err != nil {
			return err
		}
		if ancestor {
			return fmt.Errorf("task %d is an ancestor of task %d: %w", childID, id, types.ErrCycleDetected)
		}
	}

	oldSet := make(map[int64]bool, len(t.ChildIDs))
	for _, childID := range t.ChildIDs {
		oldSet[childID] = true
	}
	newSet := make(map[int64]bool, len(childIDs))
	for _, childID := range childIDs {
		newSet[childID] = true
	}

	now := time.Now().UTC().Format(time.RFC3339)
	childs, err := childsValue(childIDs)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		tt.backend.rebind("UPDATE tasks SET childs = ?, updated = ? WHERE id = ?"),
		childs, now, id); err != nil {
		return fmt.Errorf("rewriting childs of task %d: %w", id, err)
	}

	for _, childID := range childIDs {
		if oldSet[childID] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			tt.backend.rebind("UPDATE tasks SET parent = ?, updated = ? WHERE id = ?"),
			id, now, childID); err != nil {
			return fmt.Errorf("setting parent of task %d: %w", childID, err)
		}
	}
	for _, childID := range t.ChildIDs {
		if newSet[childID] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			tt.backend.rebind("UPDATE tasks SET parent = NULL, updated = ? WHERE id = ?"),
			now, childID); err != nil {
			return fmt.Errorf("clearing parent of task %d: %w", childID, err)
		}
	}
	return nil
}

// isAncestor walks targetID's parent chain looking for candidateID. The
// walk reads one flat row per hop. A repeated id means the chain already
// loops; the walk answers true then, refusing to stack a new link on
// corrupted data. A broken chain ends the walk with false.
func (tt *tasksTable) isAncestor(ctx context.Context, q querier, candidateID, targetID int64) (bool, error) {
	seen := map[int64]bool{targetID: true}
	current := targetID
	for {
		t, err := tt.getFlat(ctx, q, current)
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if t.ParentID == nil {
			return false, nil
		}
		next := *t.ParentID
		if next == candidateID {
			return true, nil
		}
		if seen[next] {
			return true, nil
		}
		seen[next] = true
		current = next
	}
}

// update writes the full row for the task and refreshes the updated
// timestamp on the passed value. Structural changes must have gone through
// updateChilds first; this write performs no link validation.
func (tt *tasksTable) update(ctx context.Context, task *types.Task) error {
	// Truncated so the in-memory value matches the stored RFC 3339 text.
	now := time.Now().UTC().Truncate(time.Second)
	childs, err := childsValue(task.ChildIDs)
	if err != nil {
		return err
	}

	res, err := tt.backend.db.ExecContext(ctx,
		tt.backend.rebind("UPDATE tasks SET title = ?, description = ?, status = ?, updated = ?, parent = ?, childs = ? WHERE id = ?"),
		task.Title, nullableText(task.Description), task.Status,
		now.Format(time.RFC3339), parentValue(task.ParentID), childs, task.ID)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", task.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading update result: %w", err)
	}
	if affected == 0 {
		return types.ErrNotFound
	}
	task.Updated = &now
	return nil
}
