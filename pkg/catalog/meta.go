// Package catalog implements the metadata layer described in spec
// §3/§4.9: a catalog meta page naming every table and index, an
// index-root map handing root bookkeeping to pkg/bplustree, and
// per-table/per-index metadata pages, all riding the same
// BufferPool/DiskManager path as heap and index pages.
//
// Grounded on the teacher's storage_engine/catalog.CatalogManager
// (RegisterNewTable/UnregisterTable shape, monotonic id counters) with
// its ad hoc JSON-on-filesystem persistence replaced by the page-based
// binary format spec §6 mandates.
package catalog

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

const catalogMetaMagic = 0x43415441 // "CATA"

// catalogMetaPageID is the fixed logical page id of the catalog meta
// page, per spec §6 ("logical page 0 stores the catalog meta page").
const catalogMetaPageID = page.ID(0)

// rootMapPageID is the fixed logical page id of the index-root map,
// per spec §6 ("logical page 1 stores the index-roots meta page").
const rootMapPageID = page.ID(1)

// catalogMeta is the decoded form of page 0: every table and index
// id mapped to the page holding its metadata.
type catalogMeta struct {
	tables  map[uint32]page.ID // table_id -> TableMetadata page
	indexes map[uint32]page.ID // index_id -> IndexMetadata page
}

func newCatalogMeta() *catalogMeta {
	return &catalogMeta{tables: make(map[uint32]page.ID), indexes: make(map[uint32]page.ID)}
}

func (cm *catalogMeta) serializeTo(buf page.Buf) error {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	if err := buf.PutUint32(off, catalogMetaMagic); err != nil {
		return err
	}
	off += 4

	if err := buf.PutUint32(off, uint32(len(cm.tables))); err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "catalog meta: too many tables for one page")
	}
	off += 4
	for id, pid := range cm.tables {
		if err := buf.PutUint32(off, id); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "catalog meta: table entries overflowed page")
		}
		off += 4
		if err := buf.PutInt32(off, int32(pid)); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "catalog meta: table entries overflowed page")
		}
		off += 4
	}

	if err := buf.PutUint32(off, uint32(len(cm.indexes))); err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "catalog meta: too many indexes for one page")
	}
	off += 4
	for id, pid := range cm.indexes {
		if err := buf.PutUint32(off, id); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "catalog meta: index entries overflowed page")
		}
		off += 4
		if err := buf.PutInt32(off, int32(pid)); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "catalog meta: index entries overflowed page")
		}
		off += 4
	}
	return nil
}

func deserializeCatalogMeta(buf page.Buf) (*catalogMeta, error) {
	off := 0
	magic, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	if magic != catalogMetaMagic {
		return nil, dberr.New(dberr.MagicMismatch, "catalog: bad magic on catalog meta page")
	}
	off += 4

	cm := newCatalogMeta()

	nTables, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4
	for i := uint32(0); i < nTables; i++ {
		id, err := buf.GetUint32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		pid, err := buf.GetInt32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		cm.tables[id] = page.ID(pid)
	}

	nIndexes, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4
	for i := uint32(0); i < nIndexes; i++ {
		id, err := buf.GetUint32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		pid, err := buf.GetInt32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		cm.indexes[id] = page.ID(pid)
	}

	return cm, nil
}
