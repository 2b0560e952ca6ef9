package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverdb/pkg/catalog"
	"riverdb/pkg/page"
	"riverdb/pkg/record"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	restore := page.SetSizeForTest(256)
	t.Cleanup(restore)

	dir := t.TempDir()
	return New(dir, WithPoolSize(32), WithCatalogOptions(catalog.WithIndexNodeSize(4, 4)))
}

func TestCreateDatabaseTwiceErrors(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateDatabase("shop")
	require.NoError(t, err)

	_, err = e.CreateDatabase("shop")
	assert.Error(t, err)
}

func TestOpenUnknownDatabaseErrors(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Open("nope")
	assert.Error(t, err)
}

func TestDatabaseSurvivesCloseAndReopen(t *testing.T) {
	e := newTestEngine(t)
	db, err := e.CreateDatabase("shop")
	require.NoError(t, err)

	schema, err := record.NewSchema(record.NewInt32Column("id", 0, false, true))
	require.NoError(t, err)
	ti, err := db.Catalog.CreateTable("items", schema)
	require.NoError(t, err)
	row := record.NewRow(record.NewInt32Field(1))
	ok, err := ti.Heap.InsertTuple(row)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, e.CloseAll())

	e2 := New(e.dir, WithPoolSize(32), WithCatalogOptions(catalog.WithIndexNodeSize(4, 4)))
	db2, err := e2.Open("shop")
	require.NoError(t, err)
	ti2, err := db2.Catalog.GetTable("items")
	require.NoError(t, err)
	ids, err := ti2.Heap.FetchAllIds()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	require.NoError(t, e2.CloseAll())
}

func TestDropDatabaseRemovesFile(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateDatabase("shop")
	require.NoError(t, err)

	require.NoError(t, e.DropDatabase("shop"))
	_, statErr := os.Stat(e.path("shop"))
	assert.True(t, os.IsNotExist(statErr))

	_, err = e.Open("shop")
	assert.Error(t, err)
}
