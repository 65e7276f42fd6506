// Package types defines the Task entity, the TreeStore storage contract,
// and the configuration and error values shared across the tasktree
// system.
//
// Storage backends implement TreeStore; the service and HTTP layers depend
// only on this package and never on a concrete backend.
package types
