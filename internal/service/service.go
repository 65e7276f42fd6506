// Package service orchestrates the tree store behind each API use case and
// decides which failures surface as not-found versus invalid-request.
package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mesh-intelligence/tasktree/internal/cache"
	"github.com/mesh-intelligence/tasktree/pkg/types"
)

const rootsKey = "roots"

func taskKey(id int64) string {
	return "task:" + strconv.FormatInt(id, 10)
}

// Service answers the task API use cases over an injected TreeStore.
//
// When a cache is configured, hydrated reads go through it cache-aside with
// singleflight collapsing concurrent misses, and every mutation flushes it.
// Cache failures only degrade reads to the store; they never fail a
// request.
type Service struct {
	store types.TreeStore
	cache *cache.Cache
	sf    singleflight.Group
	log   zerolog.Logger
}

// New creates a Service. cache may be nil to disable read caching.
func New(store types.TreeStore, c *cache.Cache, log zerolog.Logger) *Service {
	return &Service{store: store, cache: c, log: log}
}

// CreateParams carries the fields accepted on task creation.
type CreateParams struct {
	Title       string
	Description string
	Status      bool
	ParentID    *int64
}

// Create inserts a new task, linking it under the parent when one is given.
// A parent id that resolves to nothing fails with ErrNotFound before
// anything is written.
func (s *Service) Create(ctx context.Context, p CreateParams) (*types.Task, error) {
	var parent *types.Task
	if p.ParentID != nil {
		var err error
		parent, err = s.store.GetTask(ctx, *p.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving parent %d: %w", *p.ParentID, err)
		}
	}

	created, err := s.store.InsertTask(ctx, &types.Task{
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		ParentID:    p.ParentID,
	})
	if err != nil {
		return nil, err
	}

	if parent != nil {
		childIDs := append(append([]int64{}, parent.ChildIDs...), created.ID)
		if err := s.store.UpdateChilds(ctx, parent.ID, childIDs); err != nil {
			return nil, fmt.Errorf("linking task %d under %d: %w", created.ID, parent.ID, err)
		}
	}

	s.invalidate(ctx)
	s.log.Info().Int64("task_id", created.ID).Msg("task created")
	return created, nil
}

// Get returns the hydrated task for id.
func (s *Service) Get(ctx context.Context, id int64) (*types.Task, error) {
	if s.cache == nil {
		return s.store.GetTask(ctx, id)
	}

	key := taskKey(id)
	var cached types.Task
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn().Err(err).Int64("task_id", id).Msg("cache read failed")
	}
	if found {
		return &cached, nil
	}

	v, err, _ := s.sf.Do(key, func() (any, error) {
		t, err := s.store.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, t); err != nil {
			s.log.Warn().Err(err).Int64("task_id", id).Msg("cache write failed")
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.Task), nil
}

// Roots returns every root task, hydrated.
func (s *Service) Roots(ctx context.Context) ([]*types.Task, error) {
	if s.cache == nil {
		return s.store.GetRootTasks(ctx)
	}

	var cached []*types.Task
	found, err := s.cache.Get(ctx, rootsKey, &cached)
	if err != nil {
		s.log.Warn().Err(err).Msg("cache read failed")
	}
	if found {
		return cached, nil
	}

	v, err, _ := s.sf.Do(rootsKey, func() (any, error) {
		roots, err := s.store.GetRootTasks(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, rootsKey, roots); err != nil {
			s.log.Warn().Err(err).Msg("cache write failed")
		}
		return roots, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*types.Task), nil
}

// Delete removes the task and its whole subtree, returning the tree as it
// stood just before deletion. An absent id fails with ErrNotFound.
func (s *Service) Delete(ctx context.Context, id int64) (*types.Task, error) {
	snapshot, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteTaskRecursive(ctx, id); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int64("task_id", id).Msg("task deleted")
	return snapshot, nil
}

// Toggle flips the task's done flag, cascading per store semantics, and
// returns the freshly hydrated tree. An absent id fails with ErrNotFound.
func (s *Service) Toggle(ctx context.Context, id int64) (*types.Task, error) {
	if _, err := s.store.GetTask(ctx, id); err != nil {
		return nil, err
	}

	if err := s.store.ToggleTask(ctx, id); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return s.store.GetTask(ctx, id)
}

// ChangeParent moves the task under a new parent, or to the root when
// parentID is nil. Self-parenting and moves into the task's own subtree are
// rejected with ErrInvalidRequest; an absent task or parent fails with
// ErrNotFound. Validation completes before the first write.
func (s *Service) ChangeParent(ctx context.Context, id int64, parentID *int64) (*types.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		if *parentID == id {
			return nil, fmt.Errorf("task %d cannot be its own parent: %w", id, types.ErrInvalidRequest)
		}
		if isDescendant(t, *parentID) {
			return nil, fmt.Errorf("task %d is inside the subtree of task %d: %w", *parentID, id, types.ErrInvalidRequest)
		}
		if _, err := s.store.GetTask(ctx, *parentID); err != nil {
			return nil, fmt.Errorf("resolving parent %d: %w", *parentID, err)
		}
	}

	if t.ParentID != nil {
		oldParent, err := s.store.GetTask(ctx, *t.ParentID)
		if err != nil {
			return nil, fmt.Errorf("resolving old parent %d: %w", *t.ParentID, err)
		}
		remaining := make([]int64, 0, len(oldParent.ChildIDs))
		for _, childID := range oldParent.ChildIDs {
			if childID != id {
				remaining = append(remaining, childID)
			}
		}
		if err := s.store.UpdateChilds(ctx, oldParent.ID, remaining); err != nil {
			return nil, fmt.Errorf("unlinking task %d from %d: %w", id, oldParent.ID, err)
		}
	}

	if parentID != nil {
		// Re-fetched after the unlink: when old and new parent coincide the
		// child list has just changed under us.
		newParent, err := s.store.GetTask(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("resolving parent %d: %w", *parentID, err)
		}
		childIDs := append(append([]int64{}, newParent.ChildIDs...), id)
		if err := s.store.UpdateChilds(ctx, newParent.ID, childIDs); err != nil {
			return nil, fmt.Errorf("linking task %d under %d: %w", id, newParent.ID, err)
		}
	}

	t.ParentID = parentID
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.log.Info().Int64("task_id", id).Msg("task re-parented")
	return s.store.GetTask(ctx, id)
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// isDescendant reports whether id appears anywhere in the hydrated subtree
// below t. Hydrated trees are finite even over corrupted rows, so the walk
// always terminates.
func isDescendant(t *types.Task, id int64) bool {
	for _, child := range t.Childs {
		if child.ID == id || isDescendant(child, id) {
			return true
		}
	}
	return false
}

// invalidate flushes the whole cache namespace after a mutation.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("cache invalidation failed")
	}
}
