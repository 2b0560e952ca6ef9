// Package buffer implements the fixed-size frame cache described in
// spec §4.3: a page table of resident pages, a free list, an LRU
// replacer for eviction candidates, and write-back-before-reuse
// discipline for dirty victims.
//
// Grounded on the teacher's storage_engine/bufferpool.BufferPool
// (page-table + LRU-list shape, addPage/evictLRU split) and
// jobala-petro's buffer.BufferpoolManager (free-list-first allocation,
// frame pin/dirty fields). The teacher's sync.Cond block-until-available
// and per-frame sync.RWMutex are dropped: spec §5 mandates
// single-threaded cooperative execution with no suspension points, so
// Fetch/New return dberr.PoolExhausted immediately instead of blocking.
package buffer

import (
	"log/slog"

	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
	"riverdb/pkg/replacer"
	"riverdb/pkg/wal"
)

// Disk is the minimal interface the pool needs from the disk manager.
// Satisfied by *diskmgr.Manager; kept as an interface so tests can
// swap in an in-memory fake.
type Disk interface {
	Allocate() (page.ID, error)
	Deallocate(page.ID) error
	ReadPage(page.ID, page.Buf) error
	WritePage(page.ID, page.Buf) error
}

// frame is one in-memory slot of the pool.
type frame struct {
	pageID   page.ID
	data     page.Buf
	pinCount int
	dirty    bool
}

// Pool is the fixed-size buffer pool. Not safe for concurrent use —
// per spec §5 the engine is single-threaded cooperative.
type Pool struct {
	disk      Disk
	frames    []*frame
	pageTable map[page.ID]int // logical page id -> frame index
	freeList  []int
	replacer  *replacer.LRU
	wal       wal.Manager
}

// New creates a pool of the given frame capacity over disk.
func New(capacity int, disk Disk) *Pool {
	frames := make([]*frame, capacity)
	free := make([]int, capacity)
	for i := 0; i < capacity; i++ {
		frames[i] = &frame{pageID: page.Invalid, data: page.New()}
		free[i] = i
	}
	return &Pool{
		disk:      disk,
		frames:    frames,
		pageTable: make(map[page.ID]int),
		freeList:  free,
		replacer:  replacer.New(),
		wal:       wal.NoOp{},
	}
}

// SetWALManager installs the log manager the pool would consult
// before writing back a dirty victim in a crash-safe build. Mirrors
// the teacher's BufferPool.SetWALManager; riverdb's NoOp default never
// changes the eviction path's behavior.
func (p *Pool) SetWALManager(w wal.Manager) {
	p.wal = w
}

// Size returns the fixed pool capacity.
func (p *Pool) Size() int { return len(p.frames) }

// grabFrame obtains a frame index to (re)use: prefers the free list,
// falls back to evicting via the replacer, writing back a dirty
// victim before reuse.
func (p *Pool) grabFrame() (int, error) {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, nil
	}

	idx, ok := p.replacer.Victim()
	if !ok {
		return 0, dberr.New(dberr.PoolExhausted, "buffer pool: no unpinned frame available to evict")
	}

	f := p.frames[idx]
	if f.pageID.IsValid() {
		if f.dirty {
			if err := p.disk.WritePage(f.pageID, f.data); err != nil {
				return 0, dberr.Wrap(dberr.IOFailure, err, "writing back dirty victim during eviction")
			}
			slog.Debug("buffer evict flush", "page_id", f.pageID, "frame", idx, "flushed_lsn", p.wal.GetFlushedLSN())
		}
		delete(p.pageTable, f.pageID)
	}
	return idx, nil
}

// Fetch pins and returns the page with the given id, loading it from
// disk if it is not already resident.
func (p *Pool) Fetch(id page.ID) (page.Buf, error) {
	if idx, ok := p.pageTable[id]; ok {
		f := p.frames[idx]
		f.pinCount++
		p.replacer.Pin(idx)
		return f.data, nil
	}

	idx, err := p.grabFrame()
	if err != nil {
		return nil, err
	}

	f := p.frames[idx]
	if err := p.disk.ReadPage(id, f.data); err != nil {
		p.freeList = append(p.freeList, idx)
		return nil, dberr.Wrap(dberr.IOFailure, err, "fetching page from disk")
	}
	f.pageID = id
	f.pinCount = 1
	f.dirty = false
	p.pageTable[id] = idx
	slog.Debug("buffer fetch miss", "page_id", id, "frame", idx)
	return f.data, nil
}

// New allocates a fresh logical page id from disk, pins a zeroed frame
// for it, and returns both.
func (p *Pool) New() (page.ID, page.Buf, error) {
	idx, err := p.grabFrame()
	if err != nil {
		return page.Invalid, nil, err
	}

	id, err := p.disk.Allocate()
	if err != nil {
		p.freeList = append(p.freeList, idx)
		return page.Invalid, nil, dberr.Wrap(dberr.IOFailure, err, "allocating new page")
	}

	f := p.frames[idx]
	for i := range f.data {
		f.data[i] = 0
	}
	f.pageID = id
	f.pinCount = 1
	f.dirty = false
	p.pageTable[id] = idx
	slog.Debug("buffer new page", "page_id", id, "frame", idx)
	return id, f.data, nil
}

// Unpin decrements the pin count for id, OR-ing wasDirty onto the
// frame's dirty flag. When the pin count reaches zero the frame
// becomes a Replacer candidate.
func (p *Pool) Unpin(id page.ID, wasDirty bool) error {
	idx, ok := p.pageTable[id]
	if !ok {
		return dberr.Newf(dberr.IOFailure, "buffer pool: page %d is not resident", id)
	}
	f := p.frames[idx]
	if f.pinCount <= 0 {
		return dberr.Newf(dberr.IOFailure, "buffer pool: page %d unpinned with zero pin count", id)
	}
	f.pinCount--
	if wasDirty {
		f.dirty = true
	}
	if f.pinCount == 0 {
		p.replacer.Unpin(idx)
	}
	return nil
}

// Delete removes id from the pool (and from disk). Fails if the page
// is resident and still pinned.
func (p *Pool) Delete(id page.ID) error {
	idx, ok := p.pageTable[id]
	if !ok {
		return p.disk.Deallocate(id)
	}

	f := p.frames[idx]
	if f.pinCount > 0 {
		return dberr.Newf(dberr.IOFailure, "buffer pool: cannot delete pinned page %d", id)
	}

	p.replacer.Pin(idx) // remove from eviction candidacy if present
	delete(p.pageTable, id)
	for i := range f.data {
		f.data[i] = 0
	}
	f.pageID = page.Invalid
	f.dirty = false
	p.freeList = append(p.freeList, idx)

	return p.disk.Deallocate(id)
}

// Flush writes id's current bytes to disk unconditionally (regardless
// of dirty flag) and clears the dirty flag. No-op, returning false, if
// the page is not resident.
func (p *Pool) Flush(id page.ID) (bool, error) {
	idx, ok := p.pageTable[id]
	if !ok {
		return false, nil
	}
	f := p.frames[idx]
	if err := p.disk.WritePage(id, f.data); err != nil {
		return false, dberr.Wrap(dberr.IOFailure, err, "flushing page")
	}
	f.dirty = false
	return true, nil
}

// FlushAll flushes every resident page.
func (p *Pool) FlushAll() error {
	for id := range p.pageTable {
		if _, err := p.Flush(id); err != nil {
			return err
		}
	}
	return nil
}

// CheckAllUnpinned reports whether every resident frame currently has
// a pin count of zero — the quiescence invariant from spec §5/§8.
func (p *Pool) CheckAllUnpinned() bool {
	for _, f := range p.frames {
		if f.pageID.IsValid() && f.pinCount != 0 {
			return false
		}
	}
	return true
}

// Stats is a snapshot of pool occupancy, useful for debug tooling.
type Stats struct {
	Capacity    int
	Resident    int
	PinnedCount int
	DirtyCount  int
}

func (p *Pool) Stats() Stats {
	s := Stats{Capacity: len(p.frames)}
	for _, f := range p.frames {
		if !f.pageID.IsValid() {
			continue
		}
		s.Resident++
		if f.pinCount > 0 {
			s.PinnedCount++
		}
		if f.dirty {
			s.DirtyCount++
		}
	}
	return s
}
