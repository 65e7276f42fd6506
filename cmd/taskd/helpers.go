package main

import (
	"fmt"

	"github.com/mesh-intelligence/tasktree/internal/store"
)

// attachStore creates a backend for the effective config and attaches it,
// creating the schema on first use. The caller owns the Detach.
func attachStore() (*store.Backend, error) {
	backend := store.NewBackend()
	if err := backend.Attach(cfg); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}
	return backend, nil
}
