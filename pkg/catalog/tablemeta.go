package catalog

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
	"riverdb/pkg/record"
)

const tableMetaMagic = 0x5441424d // "TABM"

// tableMeta is the on-disk form of one table's metadata page, per
// spec §6: magic, table_id, name, the heap's first page id, and the
// full schema.
type tableMeta struct {
	tableID     uint32
	name        string
	firstPageID page.ID
	schema      *record.Schema
}

func (m *tableMeta) serializeTo(buf page.Buf) error {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	if err := buf.PutUint32(off, tableMetaMagic); err != nil {
		return err
	}
	off += 4
	if err := buf.PutUint32(off, m.tableID); err != nil {
		return err
	}
	off += 4

	off, err := buf.PutString(off, m.name)
	if err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "table meta: name overflowed page")
	}

	if err := buf.PutInt32(off, int32(m.firstPageID)); err != nil {
		return err
	}
	off += 4

	if _, err := m.schema.SerializeTo(buf, off); err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "table meta: schema overflowed page")
	}
	return nil
}

func deserializeTableMeta(buf page.Buf) (*tableMeta, error) {
	off := 0
	magic, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	if magic != tableMetaMagic {
		return nil, dberr.New(dberr.MagicMismatch, "catalog: bad magic on table meta page")
	}
	off += 4

	tableID, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	name, off, err := buf.GetString(off)
	if err != nil {
		return nil, err
	}

	firstPageID, err := buf.GetInt32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	schema, _, err := record.DeserializeSchemaFrom(buf, off)
	if err != nil {
		return nil, err
	}

	return &tableMeta{
		tableID:     tableID,
		name:        name,
		firstPageID: page.ID(firstPageID),
		schema:      schema,
	}, nil
}
