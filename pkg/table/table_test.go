package table

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverdb/pkg/buffer"
	"riverdb/pkg/diskmgr"
	"riverdb/pkg/page"
	"riverdb/pkg/record"
)

func newTestHeap(t *testing.T, poolSize int) (*Heap, *buffer.Pool, *record.Schema) {
	t.Helper()
	restore := page.SetSizeForTest(256)
	t.Cleanup(restore)

	dir := t.TempDir()
	dm, err := diskmgr.Open(filepath.Join(dir, "heap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	pool := buffer.New(poolSize, dm)
	schema, err := record.NewSchema(
		record.NewInt32Column("id", 0, false, true),
		record.NewCharColumn("name", 16, 1, false, false),
		record.NewFloat32Column("score", 2, true, false),
	)
	require.NoError(t, err)

	h, err := NewHeap(pool, schema)
	require.NoError(t, err)
	return h, pool, schema
}

func sampleRow(id int32, name string) *record.Row {
	return record.NewRow(
		record.NewInt32Field(id),
		record.NewCharField(name),
		record.NewFloat32Field(float32(id)*1.5),
	)
}

func TestPageInsertGetDelete(t *testing.T) {
	restore := page.SetSizeForTest(128)
	defer restore()
	buf := page.New()
	InitPage(buf, page.Invalid, page.Invalid)

	slot, err := InsertTuple(buf, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), slot)

	got, err := GetTuple(buf, slot)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	require.NoError(t, ApplyDelete(buf, slot))
	_, err = GetTuple(buf, slot)
	assert.Error(t, err)

	// Tombstoned slot is reused by the next insert.
	slot2, err := InsertTuple(buf, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, slot, slot2)
}

func TestPageMarkAndRollbackDelete(t *testing.T) {
	restore := page.SetSizeForTest(128)
	defer restore()
	buf := page.New()
	InitPage(buf, page.Invalid, page.Invalid)

	slot, err := InsertTuple(buf, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, MarkDelete(buf, slot))
	assert.False(t, IsLive(buf, slot))

	require.NoError(t, RollbackDelete(buf, slot))
	assert.True(t, IsLive(buf, slot))

	got, err := GetTuple(buf, slot)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
}

func TestPageUpdateInPlaceVsFallback(t *testing.T) {
	restore := page.SetSizeForTest(128)
	defer restore()
	buf := page.New()
	InitPage(buf, page.Invalid, page.Invalid)

	slot, err := InsertTuple(buf, []byte("abcdef"))
	require.NoError(t, err)

	ok, err := UpdateTuple(buf, slot, []byte("xyz"))
	require.NoError(t, err)
	assert.True(t, ok)
	got, _ := GetTuple(buf, slot)
	assert.Equal(t, []byte("xyz"), got)

	ok, err = UpdateTuple(buf, slot, []byte("this is far too long to fit"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHeapInsertGetRoundTrip(t *testing.T) {
	h, pool, _ := newTestHeap(t, 8)

	row := sampleRow(1, "alice")
	ok, err := h.InsertTuple(row)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, row.ID.PageID.IsValid())

	fetched := record.NewRow()
	fetched.ID = row.ID
	require.NoError(t, h.GetTuple(fetched))
	require.Len(t, fetched.Fields, 3)
	assert.True(t, fetched.Fields[0].Equal(record.NewInt32Field(1)))
	assert.True(t, fetched.Fields[1].Equal(record.NewCharField("alice")))
	assert.True(t, pool.CheckAllUnpinned())
}

func TestHeapEmptiestFitAllocatesNewPageWhenFull(t *testing.T) {
	h, pool, _ := newTestHeap(t, 16)

	var firstPageRows int
	firstPage := h.firstPageID
	for i := int32(0); i < 50; i++ {
		row := sampleRow(i, "row-name-padding")
		ok, err := h.InsertTuple(row)
		require.NoError(t, err)
		require.True(t, ok)
		if row.ID.PageID == firstPage {
			firstPageRows++
		}
	}

	// The page chain must have grown past a single page, and the most
	// recently allocated page becomes the new head.
	assert.NotEqual(t, firstPage, h.firstPageID)
	assert.True(t, pool.CheckAllUnpinned())
}

func TestHeapApplyDeleteFreesSlotForReuse(t *testing.T) {
	h, _, _ := newTestHeap(t, 8)

	row := sampleRow(1, "bob")
	ok, err := h.InsertTuple(row)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.ApplyDelete(row.ID))

	fetched := record.NewRow()
	fetched.ID = row.ID
	err = h.GetTuple(fetched)
	assert.Error(t, err)

	row2 := sampleRow(2, "carol")
	ok, err = h.InsertTuple(row2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, row.ID.Slot, row2.ID.Slot)
}

func TestHeapMarkAndRollbackDelete(t *testing.T) {
	h, _, _ := newTestHeap(t, 8)

	row := sampleRow(3, "dave")
	ok, err := h.InsertTuple(row)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, h.MarkDelete(row.ID))
	fetched := record.NewRow()
	fetched.ID = row.ID
	assert.Error(t, h.GetTuple(fetched))

	require.NoError(t, h.RollbackDelete(row.ID))
	fetched2 := record.NewRow()
	fetched2.ID = row.ID
	require.NoError(t, h.GetTuple(fetched2))
	assert.True(t, fetched2.Fields[0].Equal(record.NewInt32Field(3)))
}

func TestHeapUpdateTupleInPlaceAndFallback(t *testing.T) {
	h, _, _ := newTestHeap(t, 8)

	row := sampleRow(4, "short")
	ok, err := h.InsertTuple(row)
	require.NoError(t, err)
	require.True(t, ok)

	updated := sampleRow(4, "tiny")
	fit, err := h.UpdateTuple(updated, row.ID)
	require.NoError(t, err)
	assert.True(t, fit)

	longer := sampleRow(4, "a longer name")
	fit, err = h.UpdateTuple(longer, row.ID)
	require.NoError(t, err)
	assert.False(t, fit)
}

func TestHeapFetchAllIdsAndFetchId(t *testing.T) {
	h, _, _ := newTestHeap(t, 8)

	for i := int32(0); i < 6; i++ {
		_, err := h.InsertTuple(sampleRow(i, "n"))
		require.NoError(t, err)
	}

	all, err := h.FetchAllIds()
	require.NoError(t, err)
	assert.Len(t, all, 6)

	matches, err := h.FetchId(0, record.NewInt32Field(3), Equal)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	lower, err := h.FetchId(0, record.NewInt32Field(3), Less)
	require.NoError(t, err)
	assert.Len(t, lower, 3)
}

func TestHeapFreeHeapClearsChain(t *testing.T) {
	h, pool, _ := newTestHeap(t, 8)

	for i := int32(0); i < 10; i++ {
		_, err := h.InsertTuple(sampleRow(i, "n"))
		require.NoError(t, err)
	}

	require.NoError(t, h.FreeHeap())
	assert.False(t, h.firstPageID.IsValid())
	assert.Empty(t, h.entries)
	assert.True(t, pool.CheckAllUnpinned())
}

func TestHeapBatchInsertIsIdempotent(t *testing.T) {
	h, _, _ := newTestHeap(t, 8)

	rows := []*record.Row{sampleRow(1, "a"), sampleRow(2, "b"), sampleRow(3, "c")}
	require.NoError(t, h.BatchInsert(rows))
	for _, r := range rows {
		assert.True(t, r.ID.PageID.IsValid())
	}

	// Re-running with already-inserted rows is a no-op, not an error.
	require.NoError(t, h.BatchInsert(rows))

	all, err := h.FetchAllIds()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestOpenHeapRebuildsFreeSpaceIndex(t *testing.T) {
	h, pool, schema := newTestHeap(t, 16)
	for i := int32(0); i < 20; i++ {
		_, err := h.InsertTuple(sampleRow(i, "row-padding"))
		require.NoError(t, err)
	}
	first := h.firstPageID

	reopened, err := OpenHeap(pool, schema, first)
	require.NoError(t, err)
	assert.Equal(t, len(h.entries), len(reopened.entries))

	ids, err := reopened.FetchAllIds()
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

type recordingLocker struct {
	locked, unlocked int
}

func (r *recordingLocker) LockPage(uint64, page.ID, bool) error { r.locked++; return nil }
func (r *recordingLocker) UnlockPage(uint64, page.ID)           { r.unlocked++ }

func TestLockManagerHookBracketsMutation(t *testing.T) {
	restore := page.SetSizeForTest(256)
	t.Cleanup(restore)

	dir := t.TempDir()
	dm, err := diskmgr.Open(filepath.Join(dir, "heap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	pool := buffer.New(16, dm)
	schema, err := record.NewSchema(record.NewInt32Column("id", 0, false, true))
	require.NoError(t, err)

	locker := &recordingLocker{}
	h, err := NewHeap(pool, schema, WithLockManager(locker))
	require.NoError(t, err)

	row := record.NewRow(record.NewInt32Field(1))
	_, err = h.InsertTuple(row)
	require.NoError(t, err)

	row2 := record.NewRow(record.NewInt32Field(2))
	_, err = h.UpdateTuple(row2, row.ID)
	require.NoError(t, err)

	require.NoError(t, h.ApplyDelete(row.ID))

	assert.Equal(t, locker.locked, locker.unlocked)
	assert.Greater(t, locker.locked, 0)
}
