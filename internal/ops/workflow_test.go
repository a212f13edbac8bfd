package ops

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/muse/internal/creation"
	"github.com/hpungsan/muse/internal/db"
	"github.com/hpungsan/muse/internal/errors"
)

// TestFullWorkflow exercises the result lifecycle:
// append → regenerate poem → regenerate portrait → list → export → import into a fresh store
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	store := NewResultStore(database, nil)

	id, err := NewResultID()
	require.NoError(t, err)

	// 1. Append
	first := &creation.Result{
		ID:             id,
		Poem:           "first poem",
		PortraitURL:    "https://img/first.png",
		PortraitStyle:  creation.StyleLinkedIn,
		Name:           "Ada",
		Designation:    "Engineer",
		Company:        "Acme",
		ReferenceCount: 1,
		CreatedAt:      seedTime().Unix(),
		UpdatedAt:      seedTime().Unix(),
	}
	require.NoError(t, store.Append(ctx, first))

	// 2. Regenerate poem: portrait survives
	poem := "second poem"
	afterPoem, err := store.UpdateByID(ctx, id, creation.Patch{Poem: &poem})
	require.NoError(t, err)
	require.Equal(t, "https://img/first.png", afterPoem.PortraitURL)

	// 3. Regenerate portrait: poem survives
	url := "https://img/second.png"
	style := creation.StyleRockstar
	afterPortrait, err := store.UpdateByID(ctx, id, creation.Patch{PortraitURL: &url, PortraitStyle: &style})
	require.NoError(t, err)
	require.Equal(t, "second poem", afterPortrait.Poem)
	require.Equal(t, creation.StyleRockstar, afterPortrait.PortraitStyle)
	require.Equal(t, first.CreatedAt, afterPortrait.CreatedAt)

	// 4. List
	listOut, err := List(ctx, database, ListInput{})
	require.NoError(t, err)
	require.Len(t, listOut.Items, 1)
	require.Equal(t, id, listOut.Items[0].ID)

	// 5. Export
	dir := t.TempDir()
	cfg := exportConfig(dir)
	exportOut, err := Export(ctx, database, cfg, ExportInput{Path: filepath.Join(dir, "all.jsonl")})
	require.NoError(t, err)
	require.Equal(t, 1, exportOut.Count)

	// 6. Import into a fresh store
	fresh := openTestDB(t)
	importOut, err := Import(ctx, fresh, cfg, ImportInput{Path: exportOut.Path})
	require.NoError(t, err)
	require.Equal(t, 1, importOut.Imported)

	restored, err := db.GetByID(ctx, fresh, id)
	require.NoError(t, err)
	require.Equal(t, *afterPortrait, *restored)

	// 7. Updating an unknown id fails loudly
	_, err = store.UpdateByID(ctx, "01UNKNOWN", creation.Patch{Poem: &poem})
	var museErr *errors.MuseError
	require.ErrorAs(t, err, &museErr)
	require.Equal(t, errors.ErrNotFound, museErr.Code)
}
