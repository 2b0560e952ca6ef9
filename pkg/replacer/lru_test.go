package replacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVictimOrderIsBackOfUnpinOrder(t *testing.T) {
	r := New()
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3) // front=3,2,1=back

	assert.Equal(t, 3, r.Size())

	v, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = r.Victim()
	assert.False(t, ok)
}

func TestPinRemovesFromCandidacy(t *testing.T) {
	r := New()
	r.Unpin(1)
	r.Unpin(2)
	r.Pin(1)

	assert.Equal(t, 1, r.Size())
	v, ok := r.Victim()
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestPinOnUntrackedFrameIsNoop(t *testing.T) {
	r := New()
	r.Pin(42)
	assert.Equal(t, 0, r.Size())
}

func TestReUnpinLeavesPositionUnchanged(t *testing.T) {
	r := New()
	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(1) // already tracked; position unchanged

	v, _ := r.Victim()
	assert.Equal(t, 1, v)
}
