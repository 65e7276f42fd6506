package types

import "time"

// Task is a single node in the task tree.
//
// ParentID and ChildIDs carry the integer references exactly as persisted
// on the row; they are loaded on every read. Parent and Childs are the
// expanded forms filled in when a task is hydrated, and stay empty on flat
// reads. A hydrated task is a disposable snapshot of the tree: mutating it
// changes nothing in storage until the task is explicitly written back.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      bool       `json:"status"`
	Updated     *time.Time `json:"updated,omitempty"`

	ParentID *int64  `json:"-"`
	ChildIDs []int64 `json:"-"`

	Parent *Task   `json:"parent,omitempty"`
	Childs []*Task `json:"childs"`
}

// IsRoot reports whether the task carries no parent reference.
func (t *Task) IsRoot() bool {
	return t.ParentID == nil
}

// HasChild reports whether id appears among the task's direct child
// references.
func (t *Task) HasChild(id int64) bool {
	for _, cid := range t.ChildIDs {
		if cid == id {
			return true
		}
	}
	return false
}

// Child returns the hydrated child with the given id, or nil when the id is
// not among the expanded children.
func (t *Task) Child(id int64) *Task {
	for _, c := range t.Childs {
		if c.ID == id {
			return c
		}
	}
	return nil
}
