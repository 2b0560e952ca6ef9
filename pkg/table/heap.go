package table

import (
	"sort"

	"riverdb/pkg/buffer"
	"riverdb/pkg/dberr"
	"riverdb/pkg/lock"
	"riverdb/pkg/page"
	"riverdb/pkg/record"
)

// heapTxnID is the fixed transaction identity every heap mutation
// locks under. riverdb has no multi-statement transactions (spec §5
// non-goal), so every caller is logically "transaction zero."
const heapTxnID uint64 = 0

// entry is one bucket in the free-space-ordered page index: the
// "poor man's multimap" from spec §4.4, kept as a slice sorted
// ascending by free so the emptiest page is always the last element.
type entry struct {
	pageID page.ID
	free   int
}

// Heap is a collection of TablePages linked in a doubly linked list,
// plus an in-memory order over pages keyed by remaining free space.
// Per spec §9's open question, tuples are placed into the emptiest
// page that still fits.
type Heap struct {
	pool        *buffer.Pool
	schema      *record.Schema
	firstPageID page.ID
	entries     []entry
	locker      lock.Manager
}

// HeapOption configures a Heap at construction time.
type HeapOption func(*Heap)

// WithLockManager installs the page-lock hook spec §5 reserves for a
// future concurrent version; Heap's mutating operations bracket
// themselves with LockPage/UnlockPage when one is installed. Defaults
// to lock.NoOp{}.
func WithLockManager(m lock.Manager) HeapOption {
	return func(h *Heap) { h.locker = m }
}

// NewHeap allocates a fresh, empty heap with a single first page.
func NewHeap(pool *buffer.Pool, schema *record.Schema, opts ...HeapOption) (*Heap, error) {
	id, buf, err := pool.New()
	if err != nil {
		return nil, err
	}
	InitPage(buf, page.Invalid, page.Invalid)
	h := &Heap{pool: pool, schema: schema, firstPageID: id, locker: lock.NoOp{}}
	for _, opt := range opts {
		opt(h)
	}
	h.insertSorted(id, FreeSpace(buf))
	if err := pool.Unpin(id, true); err != nil {
		return nil, err
	}
	return h, nil
}

// OpenHeap rebuilds the in-memory free-space index by walking an
// existing page chain starting at firstPageID.
func OpenHeap(pool *buffer.Pool, schema *record.Schema, firstPageID page.ID, opts ...HeapOption) (*Heap, error) {
	h := &Heap{pool: pool, schema: schema, firstPageID: firstPageID, locker: lock.NoOp{}}
	for _, opt := range opts {
		opt(h)
	}
	id := firstPageID
	for id.IsValid() {
		buf, err := pool.Fetch(id)
		if err != nil {
			return nil, err
		}
		free := FreeSpace(buf)
		next := NextPageID(buf)
		h.insertSorted(id, free)
		if err := pool.Unpin(id, false); err != nil {
			return nil, err
		}
		id = next
	}
	return h, nil
}

// FirstPageID returns the head of the page chain, for catalog
// persistence.
func (h *Heap) FirstPageID() page.ID { return h.firstPageID }

func (h *Heap) indexOf(id page.ID) int {
	for i, e := range h.entries {
		if e.pageID == id {
			return i
		}
	}
	return -1
}

func (h *Heap) insertSorted(id page.ID, free int) {
	idx := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].free >= free })
	h.entries = append(h.entries, entry{})
	copy(h.entries[idx+1:], h.entries[idx:])
	h.entries[idx] = entry{pageID: id, free: free}
}

func (h *Heap) removeEntry(id page.ID) {
	idx := h.indexOf(id)
	if idx < 0 {
		return
	}
	h.entries = append(h.entries[:idx], h.entries[idx+1:]...)
}

func (h *Heap) updateEntry(id page.ID, free int) {
	h.removeEntry(id)
	h.insertSorted(id, free)
}

// bestFit returns the emptiest page with at least need bytes free.
func (h *Heap) bestFit(need int) (page.ID, bool) {
	if len(h.entries) == 0 {
		return page.Invalid, false
	}
	last := h.entries[len(h.entries)-1]
	if last.free >= need {
		return last.pageID, true
	}
	return page.Invalid, false
}

func serializeRow(schema *record.Schema, row *record.Row) ([]byte, error) {
	scratch := page.New()
	n, err := row.SerializeTo(schema, scratch, 0)
	if err != nil {
		return nil, err
	}
	return scratch[:n], nil
}

// InsertTuple serializes row against the heap's schema and places it
// into the emptiest page that fits, allocating a new first page if
// none does. row.ID is set to the assigned RowID on success.
func (h *Heap) InsertTuple(row *record.Row) (bool, error) {
	size, err := row.EncodedSize(h.schema)
	if err != nil {
		return false, err
	}
	if size+SlotSize >= page.Size {
		return false, nil
	}
	data, err := serializeRow(h.schema, row)
	if err != nil {
		return false, err
	}
	need := len(data) + SlotSize

	var pid page.ID
	var buf page.Buf
	if candidate, ok := h.bestFit(need); ok {
		pid = candidate
		if err := h.locker.LockPage(heapTxnID, pid, true); err != nil {
			return false, err
		}
		defer h.locker.UnlockPage(heapTxnID, pid)
		buf, err = h.pool.Fetch(pid)
		if err != nil {
			return false, err
		}
	} else {
		newID, newBuf, err := h.pool.New()
		if err != nil {
			return false, err
		}
		InitPage(newBuf, page.Invalid, h.firstPageID)
		if h.firstPageID.IsValid() {
			oldBuf, err := h.pool.Fetch(h.firstPageID)
			if err != nil {
				return false, err
			}
			SetPrevPageID(oldBuf, newID)
			if err := h.pool.Unpin(h.firstPageID, true); err != nil {
				return false, err
			}
		}
		h.firstPageID = newID
		h.insertSorted(newID, FreeSpace(newBuf))
		pid, buf = newID, newBuf
	}

	slot, err := InsertTuple(buf, data)
	if err != nil {
		_ = h.pool.Unpin(pid, false)
		return false, err
	}
	row.ID = record.RowID{PageID: pid, Slot: slot}
	h.updateEntry(pid, FreeSpace(buf))
	if err := h.pool.Unpin(pid, true); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateTuple overwrites the tuple at rid if row's new encoding fits
// in the slot's current tuple length. Returns false if the caller must
// fall back to ApplyDelete+InsertTuple.
func (h *Heap) UpdateTuple(row *record.Row, rid record.RowID) (bool, error) {
	data, err := serializeRow(h.schema, row)
	if err != nil {
		return false, err
	}
	if err := h.locker.LockPage(heapTxnID, rid.PageID, true); err != nil {
		return false, err
	}
	defer h.locker.UnlockPage(heapTxnID, rid.PageID)
	buf, err := h.pool.Fetch(rid.PageID)
	if err != nil {
		return false, err
	}
	ok, err := UpdateTuple(buf, rid.Slot, data)
	if err != nil {
		_ = h.pool.Unpin(rid.PageID, false)
		return false, err
	}
	h.updateEntry(rid.PageID, FreeSpace(buf))
	if err := h.pool.Unpin(rid.PageID, ok); err != nil {
		return false, err
	}
	if ok {
		row.ID = rid
	}
	return ok, nil
}

// ApplyDelete tombstones the tuple's slot, which a later InsertTuple
// may reuse; the tuple's bytes are not reclaimed.
func (h *Heap) ApplyDelete(rid record.RowID) error {
	if err := h.locker.LockPage(heapTxnID, rid.PageID, true); err != nil {
		return err
	}
	defer h.locker.UnlockPage(heapTxnID, rid.PageID)
	buf, err := h.pool.Fetch(rid.PageID)
	if err != nil {
		return err
	}
	if err := ApplyDelete(buf, rid.Slot); err != nil {
		_ = h.pool.Unpin(rid.PageID, false)
		return err
	}
	h.updateEntry(rid.PageID, FreeSpace(buf))
	return h.pool.Unpin(rid.PageID, true)
}

// MarkDelete cooperatively tombstones rid without discarding it;
// RollbackDelete can still undo it. Not exercised by the executor
// contract, kept for symmetry with the source design.
func (h *Heap) MarkDelete(rid record.RowID) error {
	buf, err := h.pool.Fetch(rid.PageID)
	if err != nil {
		return err
	}
	if err := MarkDelete(buf, rid.Slot); err != nil {
		_ = h.pool.Unpin(rid.PageID, false)
		return err
	}
	return h.pool.Unpin(rid.PageID, true)
}

// RollbackDelete undoes a prior MarkDelete.
func (h *Heap) RollbackDelete(rid record.RowID) error {
	buf, err := h.pool.Fetch(rid.PageID)
	if err != nil {
		return err
	}
	if err := RollbackDelete(buf, rid.Slot); err != nil {
		_ = h.pool.Unpin(rid.PageID, false)
		return err
	}
	return h.pool.Unpin(rid.PageID, true)
}

// GetTuple populates row.Fields by decoding the tuple at row.ID.
func (h *Heap) GetTuple(row *record.Row) error {
	buf, err := h.pool.Fetch(row.ID.PageID)
	if err != nil {
		return err
	}
	data, err := GetTuple(buf, row.ID.Slot)
	if err != nil {
		_ = h.pool.Unpin(row.ID.PageID, false)
		return err
	}
	decoded, _, err := record.DeserializeRowFrom(h.schema, page.Buf(data), 0)
	if err != nil {
		_ = h.pool.Unpin(row.ID.PageID, false)
		return err
	}
	row.Fields = decoded.Fields
	return h.pool.Unpin(row.ID.PageID, false)
}

// FetchAllIds scans every page in the chain and returns the RowIds of
// every live tuple.
func (h *Heap) FetchAllIds() ([]record.RowID, error) {
	var ids []record.RowID
	id := h.firstPageID
	for id.IsValid() {
		buf, err := h.pool.Fetch(id)
		if err != nil {
			return nil, err
		}
		next := NextPageID(buf)
		count := TupleCount(buf)
		for s := uint32(0); s < count; s++ {
			if IsLive(buf, s) {
				ids = append(ids, record.RowID{PageID: id, Slot: s})
			}
		}
		if err := h.pool.Unpin(id, false); err != nil {
			return nil, err
		}
		id = next
	}
	return ids, nil
}

// Predicate compares a decoded candidate field's ordering against the
// search key (per record.Field.Compare's <0/0/>0 convention) and
// decides whether to keep the row.
type Predicate func(cmp int) bool

var (
	Equal          Predicate = func(cmp int) bool { return cmp == 0 }
	Less           Predicate = func(cmp int) bool { return cmp < 0 }
	Greater        Predicate = func(cmp int) bool { return cmp > 0 }
	LessOrEqual    Predicate = func(cmp int) bool { return cmp <= 0 }
	GreaterOrEqual Predicate = func(cmp int) bool { return cmp >= 0 }
)

// FetchId scans every page in the chain and returns the RowIds of
// live tuples whose field at columnIndex satisfies pred against key.
func (h *Heap) FetchId(columnIndex int, key record.Field, pred Predicate) ([]record.RowID, error) {
	if columnIndex < 0 || columnIndex >= h.schema.ColumnCount() {
		return nil, dberr.Newf(dberr.ColumnNameNotExist, "table heap: column index %d out of range", columnIndex)
	}

	var ids []record.RowID
	id := h.firstPageID
	for id.IsValid() {
		buf, err := h.pool.Fetch(id)
		if err != nil {
			return nil, err
		}
		next := NextPageID(buf)
		count := TupleCount(buf)
		for s := uint32(0); s < count; s++ {
			if !IsLive(buf, s) {
				continue
			}
			data, err := GetTuple(buf, s)
			if err != nil {
				_ = h.pool.Unpin(id, false)
				return nil, err
			}
			row, _, err := record.DeserializeRowFrom(h.schema, page.Buf(data), 0)
			if err != nil {
				_ = h.pool.Unpin(id, false)
				return nil, err
			}
			candidate := row.Fields[columnIndex]
			if candidate.Null {
				continue
			}
			cmp, err := candidate.Compare(key)
			if err != nil {
				_ = h.pool.Unpin(id, false)
				return nil, err
			}
			if pred(cmp) {
				ids = append(ids, record.RowID{PageID: id, Slot: s})
			}
		}
		if err := h.pool.Unpin(id, false); err != nil {
			return nil, err
		}
		id = next
	}
	return ids, nil
}

// BatchInsert inserts every row not already carrying a valid RowID.
// Idempotent: re-running it after a partial failure only inserts the
// rows still missing one.
func (h *Heap) BatchInsert(rows []*record.Row) error {
	for _, row := range rows {
		if row.ID.PageID.IsValid() {
			continue
		}
		ok, err := h.InsertTuple(row)
		if err != nil {
			return err
		}
		if !ok {
			return dberr.New(dberr.TupleTooLarge, "table heap: batch insert: row does not fit any page")
		}
	}
	return nil
}

// FreeHeap deletes every page in the list from the buffer pool, clears
// the free-space index, and invalidates the first page id.
func (h *Heap) FreeHeap() error {
	id := h.firstPageID
	for id.IsValid() {
		buf, err := h.pool.Fetch(id)
		if err != nil {
			return err
		}
		next := NextPageID(buf)
		if err := h.pool.Unpin(id, false); err != nil {
			return err
		}
		if err := h.pool.Delete(id); err != nil {
			return err
		}
		id = next
	}
	h.entries = nil
	h.firstPageID = page.Invalid
	return nil
}
