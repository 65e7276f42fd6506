// Package tasktree carries project-wide metadata.
package tasktree

// Version is the taskd release version.
const Version = "0.1.0"
