// Package table implements the heap-tuple storage layer described in
// spec §4.4: a slotted TablePage layout and a TableHeap that chains
// pages into a doubly linked list ordered by remaining free space.
//
// Grounded on the teacher's storage_engine/access/heapfile_manager
// (heap_page.go's header-layout comment block and slot-directory
// convention, heap_page_helpers.go's FreeSpace/slot accessors) with the
// slot direction generalized per spec §4.4/§3: slots grow forward from
// the header, tuple bytes grow backward from the page end, and a
// negated slot length marks a pending (rollback-able) delete rather
// than the teacher's unsigned tombstone-only scheme.
package table

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

const (
	offPrevPageID       = 0  // int32
	offNextPageID       = 4  // int32
	offFreeSpacePointer = 8  // uint32
	offTupleCount       = 12 // uint32

	// HeaderSize is the fixed table-page header size in bytes.
	HeaderSize = 16

	// SlotSize is the byte size of one slot entry: offset(4) + length(4).
	SlotSize = 8
)

// InitPage stamps a fresh, empty table-page header into buf.
func InitPage(buf page.Buf, prev, next page.ID) {
	for i := range buf {
		buf[i] = 0
	}
	_ = buf.PutInt32(offPrevPageID, int32(prev))
	_ = buf.PutInt32(offNextPageID, int32(next))
	_ = buf.PutUint32(offFreeSpacePointer, uint32(len(buf)))
	_ = buf.PutUint32(offTupleCount, 0)
}

func PrevPageID(buf page.Buf) page.ID {
	v, _ := buf.GetInt32(offPrevPageID)
	return page.ID(v)
}

func SetPrevPageID(buf page.Buf, id page.ID) {
	_ = buf.PutInt32(offPrevPageID, int32(id))
}

func NextPageID(buf page.Buf) page.ID {
	v, _ := buf.GetInt32(offNextPageID)
	return page.ID(v)
}

func SetNextPageID(buf page.Buf, id page.ID) {
	_ = buf.PutInt32(offNextPageID, int32(id))
}

func freeSpacePointer(buf page.Buf) uint32 {
	v, _ := buf.GetUint32(offFreeSpacePointer)
	return v
}

func setFreeSpacePointer(buf page.Buf, v uint32) {
	_ = buf.PutUint32(offFreeSpacePointer, v)
}

// TupleCount returns the number of slots ever allocated on this page,
// live or tombstoned; row ids stay stable across deletes because this
// count never shrinks.
func TupleCount(buf page.Buf) uint32 {
	v, _ := buf.GetUint32(offTupleCount)
	return v
}

func setTupleCount(buf page.Buf, v uint32) {
	_ = buf.PutUint32(offTupleCount, v)
}

// FreeSpace is the number of bytes available for a new tuple,
// including the slot entry it would consume:
//
//	free_space_pointer - header_size - tuple_count*slot_size
func FreeSpace(buf page.Buf) int {
	avail := int(freeSpacePointer(buf)) - HeaderSize - int(TupleCount(buf))*SlotSize
	if avail < 0 {
		return 0
	}
	return avail
}

func slotOffset(i uint32) int {
	return HeaderSize + int(i)*SlotSize
}

func readSlot(buf page.Buf, i uint32) (offset uint32, length int32) {
	base := slotOffset(i)
	offset, _ = buf.GetUint32(base)
	length, _ = buf.GetInt32(base + 4)
	return offset, length
}

func writeSlot(buf page.Buf, i uint32, offset uint32, length int32) {
	base := slotOffset(i)
	_ = buf.PutUint32(base, offset)
	_ = buf.PutInt32(base+4, length)
}

// InsertTuple writes data into the page, reusing the lowest-indexed
// tombstoned slot if one exists, else appending a new slot. Fails if
// there is not enough free space for data plus a slot entry.
func InsertTuple(buf page.Buf, data []byte) (slot uint32, err error) {
	need := len(data) + SlotSize
	if FreeSpace(buf) < need {
		return 0, dberr.Newf(dberr.TupleTooLarge, "table page: need %d bytes, only %d free", need, FreeSpace(buf))
	}

	count := TupleCount(buf)
	slot = count
	for i := uint32(0); i < count; i++ {
		if _, length := readSlot(buf, i); length == 0 {
			slot = i
			break
		}
	}

	newFSP := freeSpacePointer(buf) - uint32(len(data))
	copy(buf[newFSP:], data)
	setFreeSpacePointer(buf, newFSP)
	writeSlot(buf, slot, newFSP, int32(len(data)))

	if slot == count {
		setTupleCount(buf, count+1)
	}
	return slot, nil
}

// GetTuple returns a copy of the tuple bytes at slot. Errors on an
// out-of-range slot, a tombstone (length 0), or a pending delete
// (negative length).
func GetTuple(buf page.Buf, slot uint32) ([]byte, error) {
	if slot >= TupleCount(buf) {
		return nil, dberr.Newf(dberr.IOFailure, "table page: slot %d out of range (count=%d)", slot, TupleCount(buf))
	}
	offset, length := readSlot(buf, slot)
	if length <= 0 {
		return nil, dberr.Newf(dberr.IOFailure, "table page: slot %d has no live tuple", slot)
	}
	out := make([]byte, length)
	copy(out, buf[offset:offset+uint32(length)])
	return out, nil
}

// UpdateTuple overwrites the tuple at slot with newData if it fits
// within the slot's current tuple length, which then becomes
// len(newData); fitInPlace is false if the caller must fall back to
// delete+insert.
func UpdateTuple(buf page.Buf, slot uint32, newData []byte) (fitInPlace bool, err error) {
	if slot >= TupleCount(buf) {
		return false, dberr.Newf(dberr.IOFailure, "table page: slot %d out of range (count=%d)", slot, TupleCount(buf))
	}
	offset, length := readSlot(buf, slot)
	if length <= 0 {
		return false, dberr.Newf(dberr.IOFailure, "table page: slot %d has no live tuple", slot)
	}
	if int32(len(newData)) > length {
		return false, nil
	}
	copy(buf[offset:], newData)
	writeSlot(buf, slot, offset, int32(len(newData)))
	return true, nil
}

// ApplyDelete tombstones slot (length 0); the slot may be reused by a
// later InsertTuple, but the tuple bytes themselves are not reclaimed.
func ApplyDelete(buf page.Buf, slot uint32) error {
	if slot >= TupleCount(buf) {
		return dberr.Newf(dberr.IOFailure, "table page: slot %d out of range (count=%d)", slot, TupleCount(buf))
	}
	writeSlot(buf, slot, 0, 0)
	return nil
}

// MarkDelete negates slot's length, marking a pending delete that
// RollbackDelete can undo.
func MarkDelete(buf page.Buf, slot uint32) error {
	if slot >= TupleCount(buf) {
		return dberr.Newf(dberr.IOFailure, "table page: slot %d out of range (count=%d)", slot, TupleCount(buf))
	}
	offset, length := readSlot(buf, slot)
	if length <= 0 {
		return dberr.Newf(dberr.IOFailure, "table page: slot %d is not a live tuple", slot)
	}
	writeSlot(buf, slot, offset, -length)
	return nil
}

// RollbackDelete undoes a prior MarkDelete.
func RollbackDelete(buf page.Buf, slot uint32) error {
	if slot >= TupleCount(buf) {
		return dberr.Newf(dberr.IOFailure, "table page: slot %d out of range (count=%d)", slot, TupleCount(buf))
	}
	offset, length := readSlot(buf, slot)
	if length >= 0 {
		return dberr.Newf(dberr.IOFailure, "table page: slot %d has no pending delete to roll back", slot)
	}
	writeSlot(buf, slot, offset, -length)
	return nil
}

// IsLive reports whether slot holds an undeleted tuple.
func IsLive(buf page.Buf, slot uint32) bool {
	if slot >= TupleCount(buf) {
		return false
	}
	_, length := readSlot(buf, slot)
	return length > 0
}
