package catalog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverdb/pkg/buffer"
	"riverdb/pkg/dberr"
	"riverdb/pkg/diskmgr"
	"riverdb/pkg/page"
	"riverdb/pkg/record"
)

func newTestCatalog(t *testing.T, poolSize int) (*Manager, *buffer.Pool, string) {
	m, pool, _, path := newTestCatalogWithDisk(t, poolSize)
	return m, pool, path
}

func newTestCatalogWithDisk(t *testing.T, poolSize int) (*Manager, *buffer.Pool, *diskmgr.Manager, string) {
	t.Helper()
	restore := page.SetSizeForTest(256)
	t.Cleanup(restore)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	dm, err := diskmgr.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	pool := buffer.New(poolSize, dm)
	m, err := Open(pool, true, WithIndexNodeSize(4, 4))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, pool, dm, path
}

func testSchema(t *testing.T) *record.Schema {
	t.Helper()
	schema, err := record.NewSchema(
		record.NewInt32Column("id", 0, false, true),
		record.NewCharColumn("name", 16, 1, false, false),
	)
	require.NoError(t, err)
	return schema
}

func TestCreateAndGetTable(t *testing.T) {
	m, _, _ := newTestCatalog(t, 32)
	schema := testSchema(t)

	ti, err := m.CreateTable("people", schema)
	require.NoError(t, err)
	assert.Equal(t, "people", ti.Name)

	got, err := m.GetTable("people")
	require.NoError(t, err)
	assert.Equal(t, ti.ID, got.ID)

	_, err = m.CreateTable("people", schema)
	assert.Error(t, err)

	_, err = m.GetTable("nope")
	assert.Error(t, err)
}

func TestCreateIndexValidatesUniqueColumn(t *testing.T) {
	m, _, _ := newTestCatalog(t, 32)
	schema := testSchema(t)
	_, err := m.CreateTable("people", schema)
	require.NoError(t, err)

	_, err = m.CreateIndex("people", "by_name", []string{"name"})
	assert.Error(t, err)

	_, err = m.CreateIndex("people", "by_id", []string{"id"})
	require.NoError(t, err)
}

func TestCreateIndexPopulatesFromExistingRows(t *testing.T) {
	m, _, _ := newTestCatalog(t, 32)
	schema := testSchema(t)
	ti, err := m.CreateTable("people", schema)
	require.NoError(t, err)

	for i := int32(0); i < 10; i++ {
		row := record.NewRow(record.NewInt32Field(i), record.NewCharField("name"))
		ok, err := ti.Heap.InsertTuple(row)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ii, err := m.CreateIndex("people", "by_id", []string{"id"})
	require.NoError(t, err)

	key, err := EncodeKey(record.NewRow(record.NewInt32Field(5), record.NewCharField("name")), ii.KeyColumnIndices)
	require.NoError(t, err)
	_, found, err := ii.Tree.GetValue(key)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestDropTableRemovesIndexes(t *testing.T) {
	m, _, _ := newTestCatalog(t, 32)
	schema := testSchema(t)
	_, err := m.CreateTable("people", schema)
	require.NoError(t, err)
	_, err = m.CreateIndex("people", "by_id", []string{"id"})
	require.NoError(t, err)

	require.NoError(t, m.DropTable("people"))

	_, err = m.GetTable("people")
	assert.Error(t, err)

	_, err = m.CreateTable("people", schema)
	require.NoError(t, err)
	_, err = m.getIndexLocked(0, "by_id")
	assert.Error(t, err)
}

func TestRemoveIndexesOnTableIsIdempotent(t *testing.T) {
	m, _, _ := newTestCatalog(t, 32)
	schema := testSchema(t)
	ti, err := m.CreateTable("people", schema)
	require.NoError(t, err)
	_, err = m.CreateIndex("people", "by_id", []string{"id"})
	require.NoError(t, err)

	require.NoError(t, m.RemoveIndexesOnTable(ti.ID))
	require.NoError(t, m.RemoveIndexesOnTable(ti.ID))
	assert.Empty(t, m.GetTableIndexes(ti.ID))
}

func TestIndexBackedLookup(t *testing.T) {
	m, _, _ := newTestCatalog(t, 32)
	schema, err := record.NewSchema(
		record.NewInt32Column("a", 0, false, true),
		record.NewCharColumn("b", 8, 1, false, false),
	)
	require.NoError(t, err)
	ti, err := m.CreateTable("t", schema)
	require.NoError(t, err)

	for _, row := range []*record.Row{
		record.NewRow(record.NewInt32Field(1), record.NewCharField("x")),
		record.NewRow(record.NewInt32Field(2), record.NewCharField("y")),
		record.NewRow(record.NewInt32Field(3), record.NewCharField("z")),
	} {
		ok, err := ti.Heap.InsertTuple(row)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ix, err := m.CreateIndex("t", "ix", []string{"a"})
	require.NoError(t, err)

	readRow := func(v []byte) *record.Row {
		row := record.NewRow()
		row.ID = DecodeRowID(v)
		require.NoError(t, ti.Heap.GetTuple(row))
		return row
	}

	key2, err := EncodeKey(record.NewRow(record.NewInt32Field(2), record.NewCharField("")), ix.KeyColumnIndices)
	require.NoError(t, err)
	v, found, err := ix.Tree.GetValue(key2)
	require.NoError(t, err)
	require.True(t, found)
	row := readRow(v)
	assert.Equal(t, int32(2), row.Fields[0].I32)
	assert.Equal(t, "y", row.Fields[1].Str)

	values, err := ix.Tree.RangeScan(key2, false, true)
	require.NoError(t, err)
	require.Len(t, values, 2)
	got := make([]string, len(values))
	for i, v := range values {
		got[i] = readRow(v).Fields[1].Str
	}
	assert.Equal(t, []string{"y", "z"}, got)
}

func TestDropCascadeFreesMetaPages(t *testing.T) {
	m, _, dm, _ := newTestCatalogWithDisk(t, 32)
	schema, err := record.NewSchema(
		record.NewInt32Column("id", 0, false, true),
		record.NewCharColumn("tag", 4, 1, false, true),
	)
	require.NoError(t, err)
	ti, err := m.CreateTable("people", schema)
	require.NoError(t, err)
	ix1, err := m.CreateIndex("people", "by_id", []string{"id"})
	require.NoError(t, err)
	ix2, err := m.CreateIndex("people", "by_tag", []string{"tag"})
	require.NoError(t, err)

	tableMetaPageID := ti.metaPageID
	ix1MetaPageID := ix1.metaPageID
	ix2MetaPageID := ix2.metaPageID

	require.NoError(t, m.DropTable("people"))

	freeTable, err := dm.IsFree(tableMetaPageID)
	require.NoError(t, err)
	assert.True(t, freeTable)

	freeIx1, err := dm.IsFree(ix1MetaPageID)
	require.NoError(t, err)
	assert.True(t, freeIx1)

	freeIx2, err := dm.IsFree(ix2MetaPageID)
	require.NoError(t, err)
	assert.True(t, freeIx2)

	_, err = m.GetIndex("people", "by_id")
	assert.True(t, dberr.Is(err, dberr.IndexNotFound))
	_, err = m.GetIndex("people", "by_tag")
	assert.True(t, dberr.Is(err, dberr.IndexNotFound))
}

func TestCatalogSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "durable.db")
	restore := page.SetSizeForTest(256)
	t.Cleanup(restore)

	dm, err := diskmgr.Open(path)
	require.NoError(t, err)
	pool := buffer.New(32, dm)
	m, err := Open(pool, true, WithIndexNodeSize(4, 4))
	require.NoError(t, err)

	schema := testSchema(t)
	ti, err := m.CreateTable("people", schema)
	require.NoError(t, err)
	for i := int32(0); i < 10; i++ {
		row := record.NewRow(record.NewInt32Field(i), record.NewCharField("name"))
		_, err := ti.Heap.InsertTuple(row)
		require.NoError(t, err)
	}
	_, err = m.CreateIndex("people", "by_id", []string{"id"})
	require.NoError(t, err)

	require.NoError(t, m.FlushAll())
	m.Close()
	require.NoError(t, dm.Close())

	dm2, err := diskmgr.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm2.Close() })
	pool2 := buffer.New(32, dm2)
	m2, err := Open(pool2, false, WithIndexNodeSize(4, 4))
	require.NoError(t, err)
	t.Cleanup(m2.Close)

	ti2, err := m2.GetTable("people")
	require.NoError(t, err)
	ids, err := ti2.Heap.FetchAllIds()
	require.NoError(t, err)
	assert.Len(t, ids, 10)

	ii2, err := m2.GetIndex("people", "by_id")
	require.NoError(t, err)
	key, err := EncodeKey(record.NewRow(record.NewInt32Field(3), record.NewCharField("name")), ii2.KeyColumnIndices)
	require.NoError(t, err)
	_, found, err := ii2.Tree.GetValue(key)
	require.NoError(t, err)
	assert.True(t, found)
}
