package catalog

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

const indexMetaMagic = 0x4958444d // "IXDM"

// indexMeta is the on-disk form of one index's metadata page, per
// spec §6: magic, index_id, name, owning table_id, root_page_id, and
// the key column indices into the table's schema.
type indexMeta struct {
	indexID          uint32
	name             string
	tableID          uint32
	rootPageID       page.ID
	keyColumnIndices []uint32
}

func (m *indexMeta) serializeTo(buf page.Buf) error {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	if err := buf.PutUint32(off, indexMetaMagic); err != nil {
		return err
	}
	off += 4
	if err := buf.PutUint32(off, m.indexID); err != nil {
		return err
	}
	off += 4

	off, err := buf.PutString(off, m.name)
	if err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "index meta: name overflowed page")
	}

	if err := buf.PutUint32(off, m.tableID); err != nil {
		return err
	}
	off += 4
	if err := buf.PutInt32(off, int32(m.rootPageID)); err != nil {
		return err
	}
	off += 4

	if err := buf.PutUint32(off, uint32(len(m.keyColumnIndices))); err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "index meta: key column list overflowed page")
	}
	off += 4
	for _, idx := range m.keyColumnIndices {
		if err := buf.PutUint32(off, idx); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "index meta: key column list overflowed page")
		}
		off += 4
	}
	return nil
}

func deserializeIndexMeta(buf page.Buf) (*indexMeta, error) {
	off := 0
	magic, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	if magic != indexMetaMagic {
		return nil, dberr.New(dberr.MagicMismatch, "catalog: bad magic on index meta page")
	}
	off += 4

	indexID, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	name, off, err := buf.GetString(off)
	if err != nil {
		return nil, err
	}

	tableID, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	rootPageID, err := buf.GetInt32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	n, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	indices := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		idx, err := buf.GetUint32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		indices = append(indices, idx)
	}

	return &indexMeta{
		indexID:          indexID,
		name:             name,
		tableID:          tableID,
		rootPageID:       page.ID(rootPageID),
		keyColumnIndices: indices,
	}, nil
}
