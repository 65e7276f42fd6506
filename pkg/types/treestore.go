package types

import (
	"context"
	"errors"
)

// TreeStore is the storage contract for the task tree.
//
// Implementations own every cycle-sensitive traversal and mutation: callers
// always receive finite trees, even when the stored rows already reference
// each other in a loop, and no operation may persist a link that makes a
// task its own ancestor.
type TreeStore interface {
	// InsertTask persists a new task and assigns it a fresh id. Title is
	// required. When the task carries child references the child-list
	// rewrite runs inside the same transaction, so a rejected rewrite
	// leaves no row behind. Returns the created task in flat form.
	InsertTask(ctx context.Context, task *Task) (*Task, error)

	// GetTask returns the task with the given id, fully hydrated: child
	// references expanded recursively into Task values and the parent
	// chain expanded upward. Returns ErrNotFound when the id does not
	// exist.
	GetTask(ctx context.Context, id int64) (*Task, error)

	// GetRootTasks returns every task whose id is not referenced in any
	// other task's child list, each fully hydrated. The result is empty,
	// not nil, when the store holds no tasks.
	GetRootTasks(ctx context.Context) ([]*Task, error)

	// DeleteTaskRecursive removes the task and every descendant, children
	// before parents, in one transaction. Deleting an id that does not
	// exist is a no-op.
	DeleteTaskRecursive(ctx context.Context, id int64) error

	// ToggleTask flips the task's done flag. Turning the flag on forces
	// every descendant on as well; turning it off leaves descendants
	// untouched. Toggling an id that does not exist is a no-op.
	ToggleTask(ctx context.Context, id int64) error

	// UpdateChilds replaces the task's child list and re-establishes the
	// parent back-references on every added and removed child. Validation
	// runs before any write; a rewrite that would make a task its own
	// ancestor fails with ErrCycleDetected and changes nothing.
	UpdateChilds(ctx context.Context, id int64, childIDs []int64) error

	// UpdateTask writes the full row for the task and refreshes its
	// updated timestamp in place. No structural validation happens here;
	// link changes must go through UpdateChilds first. Returns
	// ErrNotFound when the id does not exist.
	UpdateTask(ctx context.Context, task *Task) error

	// Ping verifies the backing connection is usable.
	Ping(ctx context.Context) error
}

// Tree operation errors.
var (
	ErrNotFound       = errors.New("task not found")
	ErrCycleDetected  = errors.New("cycle detected")
	ErrInvalidRequest = errors.New("invalid request")
	ErrTitleEmpty     = errors.New("title must not be empty")
	ErrStorageFailure = errors.New("storage returned no row")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)
