// Package lock defines the page-lock hook spec §5 reserves for a
// future concurrent version of riverdb ("an implementation MAY elide
// them entirely"). riverdb keeps the parameter slot instead of eliding
// it: TableHeap accepts a Manager at construction time, wraps its
// mutating operations in LockPage/UnlockPage, and the only shipped
// Manager is a no-op, since the engine is single-threaded cooperative
// per spec §5 and never contends.
//
// Grounded on utkarsh5026-StoreMy's concurrency/lock.LockManager
// (LockPage(tid, pid, exclusive) / UnlockPage(tid, pid) shape),
// stripped of its wait queue, dependency graph, and deadlock detector
// — none of which riverdb ever reaches, since NoOp always grants.
package lock

import "riverdb/pkg/page"

// Manager acquires and releases a page-level lock on behalf of a
// transaction. txnID is opaque to riverdb itself; single-statement
// callers pass a fixed id.
type Manager interface {
	LockPage(txnID uint64, pid page.ID, exclusive bool) error
	UnlockPage(txnID uint64, pid page.ID)
}

// NoOp grants every request immediately and releases nothing, since
// there is never a second holder to release for.
type NoOp struct{}

func (NoOp) LockPage(uint64, page.ID, bool) error { return nil }
func (NoOp) UnlockPage(uint64, page.ID)           {}
