// Package wal defines the write-ahead-log hook spec §5 reserves for a
// future crash-recovery version of riverdb. BufferPool is constructed
// against the Manager interface so a real log could later gate
// write-back on flushed-LSN, exactly as the teacher's BufferPool does
// through its walManager field; the only shipped Manager is a no-op,
// since WAL-based recovery is an explicit non-goal.
//
// Grounded on the teacher's storage_engine/bufferpool.WALFlushedLSNGetter
// (the small interface the pool depends on instead of the whole WAL
// package) and storage_engine/wal_manager.WALManager's CurrentLSN
// counter, generalized with an AppendRecord call a future Manager
// would use to grow that counter.
package wal

// Manager tracks the durable log position a dirty page's write-back
// would need to wait for, and appends new log records.
type Manager interface {
	GetFlushedLSN() uint64
	AppendRecord(data []byte) (lsn uint64, err error)
}

// NoOp is the only Manager riverdb ships: every page is always
// considered flush-safe, and no record is retained.
type NoOp struct{}

func (NoOp) GetFlushedLSN() uint64                    { return 0 }
func (NoOp) AppendRecord(data []byte) (uint64, error) { return 0, nil }
