// Integration test for the JSONL snapshot cycle: export a live tree,
// import it into a fresh database, and verify structure and state
// survive through the HTTP surface.
package integration

import (
	"context"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLRoundtrip_TreeSurvives(t *testing.T) {
	source := startAPI(t)

	// Build a small forest: one nested tree, one activated loner.
	root := source.mustCreate("project", nil)
	mid := source.mustCreate("phase one", &root.ID)
	leaf := source.mustCreate("first step", &mid.ID)
	loner := source.mustCreate("standalone", nil)

	status, body := source.do(http.MethodPost, "/tasks/"+strconv.FormatInt(loner.ID, 10)+"/toggle", nil)
	require.Equal(t, http.StatusOK, status, "toggle: %s", body)

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, source.backend.ExportJSONL(context.Background(), path))

	// Import into a completely separate instance.
	target := startAPI(t)
	require.NoError(t, target.backend.ImportJSONL(context.Background(), path))

	roots := target.mustRoots()
	require.Len(t, roots, 2)

	got := target.mustGet(root.ID)
	gotMid := childByID(got, mid.ID)
	require.NotNil(t, gotMid, "nesting survives the roundtrip")
	require.NotNil(t, childByID(gotMid, leaf.ID))

	gotLoner := target.mustGet(loner.ID)
	assert.True(t, gotLoner.Status, "status survives the roundtrip")
	assert.Equal(t, "standalone", gotLoner.Title)
}

func TestJSONLRoundtrip_ImportReplacesExisting(t *testing.T) {
	source := startAPI(t)
	source.mustCreate("keeper", nil)

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, source.backend.ExportJSONL(context.Background(), path))

	target := startAPI(t)
	target.mustCreate("doomed", nil)

	require.NoError(t, target.backend.ImportJSONL(context.Background(), path))

	roots := target.mustRoots()
	require.Len(t, roots, 1)
	assert.Equal(t, "keeper", roots[0].Title)
}

func TestJSONLRoundtrip_NewInsertsAfterImport(t *testing.T) {
	source := startAPI(t)
	a := source.mustCreate("first", nil)
	b := source.mustCreate("second", nil)

	path := filepath.Join(t.TempDir(), "tasks.jsonl")
	require.NoError(t, source.backend.ExportJSONL(context.Background(), path))

	target := startAPI(t)
	require.NoError(t, target.backend.ImportJSONL(context.Background(), path))

	// Fresh inserts must not collide with imported ids.
	fresh := target.mustCreate("third", nil)
	assert.NotEqual(t, a.ID, fresh.ID)
	assert.NotEqual(t, b.ID, fresh.ID)

	roots := target.mustRoots()
	assert.Len(t, roots, 3)
}
