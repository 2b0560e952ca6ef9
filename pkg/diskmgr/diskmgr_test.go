package diskmgr

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverdb/pkg/page"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	restore := page.SetSizeForTest(256)
	t.Cleanup(restore)

	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestAllocateDeallocateReuse(t *testing.T) {
	m := openTestManager(t)
	bb := bitmapBits()

	ids := make([]page.ID, 0, bb+1)
	for i := 0; i < bb+1; i++ {
		id, err := m.Allocate()
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// ids are dense, starting at 0, in allocation order
	for i, id := range ids {
		assert.Equal(t, page.ID(i), id)
	}

	// deallocate one in the middle of the first extent, reallocate
	require.NoError(t, m.Deallocate(page.ID(5)))
	free, err := m.IsFree(page.ID(5))
	require.NoError(t, err)
	assert.True(t, free)

	reused, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, page.ID(5), reused)
}

func TestDeallocateIsIdempotent(t *testing.T) {
	m := openTestManager(t)
	id, err := m.Allocate()
	require.NoError(t, err)

	require.NoError(t, m.Deallocate(id))
	require.NoError(t, m.Deallocate(id)) // second call is a no-op, not an error
}

func TestReadPastEOFZeroFills(t *testing.T) {
	m := openTestManager(t)
	id, err := m.Allocate()
	require.NoError(t, err)

	buf := page.New()
	require.NoError(t, m.ReadPage(id, buf))
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	m := openTestManager(t)
	id, err := m.Allocate()
	require.NoError(t, err)

	buf := page.New()
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	require.NoError(t, m.WritePage(id, buf))

	out := page.New()
	require.NoError(t, m.ReadPage(id, out))
	assert.Equal(t, []byte(buf), []byte(out))
}

func TestAllocateCreatesNewExtentWhenFull(t *testing.T) {
	m := openTestManager(t)
	bb := bitmapBits()

	for i := 0; i < bb; i++ {
		_, err := m.Allocate()
		require.NoError(t, err)
	}
	assert.Len(t, m.extentUsedCount, 1)

	next, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, page.ID(bb), next)
	assert.Len(t, m.extentUsedCount, 2)
}

// TestBitmapAllocatorScenario mirrors the spec's end-to-end scenario:
// allocate 4097 pages in order, free page 100, and confirm the next
// two allocations are 100 then 4097.
func TestBitmapAllocatorScenario(t *testing.T) {
	dir := t.TempDir()
	m, err := Open(filepath.Join(dir, "scenario.db"))
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 4097; i++ {
		id, err := m.Allocate()
		require.NoError(t, err)
		assert.Equal(t, page.ID(i), id)
	}

	require.NoError(t, m.Deallocate(page.ID(100)))

	id, err := m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, page.ID(100), id)

	id, err = m.Allocate()
	require.NoError(t, err)
	assert.Equal(t, page.ID(4097), id)
}

func TestReopenPreservesAllocationState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	restore := page.SetSizeForTest(256)
	defer restore()

	m, err := Open(path)
	require.NoError(t, err)
	id, err := m.Allocate()
	require.NoError(t, err)
	require.NoError(t, m.Deallocate(page.ID(0)))
	_ = id
	require.NoError(t, m.Close())

	m2, err := Open(path)
	require.NoError(t, err)
	defer m2.Close()

	free, err := m2.IsFree(page.ID(0))
	require.NoError(t, err)
	assert.True(t, free)
}
