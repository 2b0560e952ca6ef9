// Package page defines the fixed-size byte buffer every on-disk
// structure (catalog meta, bitmap, table page, B+ tree node) is
// serialized into, plus the low-level codec for reading and writing
// fixed-width fields and length-prefixed strings at fixed offsets.
package page

import (
	"encoding/binary"
	"math"

	"riverdb/pkg/dberr"
)

// Size is the fixed page size used throughout the engine. Tests may
// shrink it with SetSizeForTest to exercise split/merge paths without
// inserting thousands of rows.
var Size = 4096

// SetSizeForTest overrides Size and returns a restore function meant
// to be passed to t.Cleanup.
func SetSizeForTest(n int) func() {
	old := Size
	Size = n
	return func() { Size = old }
}

// ID identifies a page within a single backing file. Logical ids are
// dense non-negative integers allocated by the disk manager's extent
// bitmaps. Invalid is the sentinel used for "no page" (e.g. an absent
// parent, an absent next-leaf link, an empty tree's root).
type ID int32

const Invalid ID = -1

// IsValid reports whether id refers to a real page.
func (id ID) IsValid() bool { return id >= 0 }

// Buf is a page-sized byte slice with bounds-checked accessors. All
// multi-byte fields are little-endian; there is no implicit padding.
type Buf []byte

// New allocates a zeroed page-sized buffer.
func New() Buf { return make(Buf, Size) }

func (b Buf) checkBounds(off, n int) error {
	if off < 0 || n < 0 || off+n > len(b) {
		return dberr.Newf(dberr.IOFailure, "page offset %d len %d out of bounds (page size %d)", off, n, len(b))
	}
	return nil
}

func (b Buf) PutUint32(off int, v uint32) error {
	if err := b.checkBounds(off, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[off:], v)
	return nil
}

func (b Buf) GetUint32(off int) (uint32, error) {
	if err := b.checkBounds(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[off:]), nil
}

func (b Buf) PutInt32(off int, v int32) error {
	return b.PutUint32(off, uint32(v))
}

func (b Buf) GetInt32(off int) (int32, error) {
	v, err := b.GetUint32(off)
	return int32(v), err
}

func (b Buf) PutUint64(off int, v uint64) error {
	if err := b.checkBounds(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b[off:], v)
	return nil
}

func (b Buf) GetUint64(off int) (uint64, error) {
	if err := b.checkBounds(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[off:]), nil
}

func (b Buf) PutInt64(off int, v int64) error {
	return b.PutUint64(off, uint64(v))
}

func (b Buf) GetInt64(off int) (int64, error) {
	v, err := b.GetUint64(off)
	return int64(v), err
}

func (b Buf) PutFloat32(off int, v float32) error {
	return b.PutUint32(off, math.Float32bits(v))
}

func (b Buf) GetFloat32(off int) (float32, error) {
	v, err := b.GetUint32(off)
	return math.Float32frombits(v), err
}

func (b Buf) PutUint16(off int, v uint16) error {
	if err := b.checkBounds(off, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b[off:], v)
	return nil
}

func (b Buf) GetUint16(off int) (uint16, error) {
	if err := b.checkBounds(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[off:]), nil
}

func (b Buf) PutUint8(off int, v uint8) error {
	if err := b.checkBounds(off, 1); err != nil {
		return err
	}
	b[off] = v
	return nil
}

func (b Buf) GetUint8(off int) (uint8, error) {
	if err := b.checkBounds(off, 1); err != nil {
		return 0, err
	}
	return b[off], nil
}

func (b Buf) PutBool(off int, v bool) error {
	if v {
		return b.PutUint8(off, 1)
	}
	return b.PutUint8(off, 0)
}

func (b Buf) GetBool(off int) (bool, error) {
	v, err := b.GetUint8(off)
	return v != 0, err
}

// PutBytes copies raw bytes at off, with no length prefix.
func (b Buf) PutBytes(off int, data []byte) error {
	if err := b.checkBounds(off, len(data)); err != nil {
		return err
	}
	copy(b[off:], data)
	return nil
}

// GetBytes reads n raw bytes at off, with no length prefix.
func (b Buf) GetBytes(off, n int) ([]byte, error) {
	if err := b.checkBounds(off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b[off:off+n])
	return out, nil
}

// PutString writes a u32 length prefix followed by the raw bytes of s,
// returning the offset immediately past what was written.
func (b Buf) PutString(off int, s string) (int, error) {
	if err := b.PutUint32(off, uint32(len(s))); err != nil {
		return off, err
	}
	if err := b.PutBytes(off+4, []byte(s)); err != nil {
		return off, err
	}
	return off + 4 + len(s), nil
}

// GetString reads a u32-length-prefixed string at off, returning the
// decoded string and the offset immediately past it.
func (b Buf) GetString(off int) (string, int, error) {
	n, err := b.GetUint32(off)
	if err != nil {
		return "", off, err
	}
	data, err := b.GetBytes(off+4, int(n))
	if err != nil {
		return "", off, err
	}
	return string(data), off + 4 + int(n), nil
}
