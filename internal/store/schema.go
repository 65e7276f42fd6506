package store

import "github.com/mesh-intelligence/tasktree/pkg/types"

// Tasks table DDL per driver. CREATE TABLE IF NOT EXISTS keeps Attach
// idempotent against an existing database.
//
// childs holds a JSON-encoded integer array (NULL when the task has no
// children); updated holds an RFC 3339 timestamp. Both are TEXT so the two
// dialects stay interchangeable.
const createTasksSQLite = `CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT,
	status INTEGER NOT NULL DEFAULT 0,
	updated TEXT,
	parent INTEGER,
	childs TEXT
)`

const createTasksPostgres = `CREATE TABLE IF NOT EXISTS tasks (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	status BOOLEAN NOT NULL DEFAULT FALSE,
	updated TEXT,
	parent INTEGER,
	childs TEXT
)`

const createTasksParentIndex = `CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks (parent)`

// schemaDDL maps each driver to its statements in execution order.
var schemaDDL = map[string][]string{
	types.DriverSQLite:   {createTasksSQLite, createTasksParentIndex},
	types.DriverPostgres: {createTasksPostgres, createTasksParentIndex},
}
