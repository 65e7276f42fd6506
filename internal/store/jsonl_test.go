package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := setupBackend(t)

	root := createTask(t, src, "root")
	child := createChild(t, src, "child", root.ID)
	require.NoError(t, src.ToggleTask(ctx, child.ID))

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, src.ExportJSONL(ctx, path))

	dst := setupBackend(t)
	require.NoError(t, dst.ImportJSONL(ctx, path))

	gotRoot, err := dst.GetTask(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", gotRoot.Title)
	require.Len(t, gotRoot.Childs, 1)
	assert.Equal(t, child.ID, gotRoot.Childs[0].ID)
	assert.True(t, gotRoot.Childs[0].Status)

	gotChild, err := dst.GetTask(ctx, child.ID)
	require.NoError(t, err)
	require.NotNil(t, gotChild.ParentID)
	assert.Equal(t, root.ID, *gotChild.ParentID)
}

func TestImportReplacesExistingRows(t *testing.T) {
	ctx := context.Background()
	src := setupBackend(t)
	task := createTask(t, src, "exported title")

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, src.ExportJSONL(ctx, path))

	// Drift the row after the snapshot, then load it back.
	task.Title = "drifted"
	require.NoError(t, src.UpdateTask(ctx, task))
	require.NoError(t, src.ImportJSONL(ctx, path))

	got, err := src.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "exported title", got.Title)
}

func TestImportSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	content := `{"id":1,"title":"good","status":false}
this line is not json
{"id":0,"title":"missing id"}
{"title":"missing id too"}
{"id":2,"title":"also good","status":true,"parent":1}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, b.ImportJSONL(ctx, path))

	roots, err := b.GetRootTasks(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 2, "only the two well-formed records should load")

	got, err := b.GetTask(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "also good", got.Title)
	assert.True(t, got.Status)
}

func TestExportWritesOrderedLines(t *testing.T) {
	ctx := context.Background()
	b := setupBackend(t)

	createTask(t, b, "first")
	createTask(t, b, "second")

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, b.ExportJSONL(ctx, path))

	records, err := readJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, string(records[0]), `"title":"first"`)
	assert.Contains(t, string(records[1]), `"title":"second"`)
}
