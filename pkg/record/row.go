package record

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

// RowID identifies a tuple's slot within a table heap.
type RowID struct {
	PageID page.ID
	Slot   uint32
}

// Row is an ordered sequence of Fields bound to a Schema.
type Row struct {
	ID     RowID
	Fields []Field
}

// NewRow builds a Row with no RowID assigned yet (assigned by
// TableHeap.InsertTuple).
func NewRow(fields ...Field) *Row {
	return &Row{ID: RowID{PageID: page.Invalid}, Fields: fields}
}

// SerializeTo encodes the row per spec §4.5: u32 field_count, u64
// null_bitmap, then non-null field encodings in column order. The
// schema's column count must equal len(r.Fields).
func (r *Row) SerializeTo(schema *Schema, buf page.Buf, off int) (int, error) {
	if len(r.Fields) != schema.ColumnCount() {
		return off, dberr.Newf(dberr.IOFailure, "row: %d fields does not match schema's %d columns", len(r.Fields), schema.ColumnCount())
	}

	if err := buf.PutUint32(off, uint32(len(r.Fields))); err != nil {
		return off, err
	}
	off += 4

	var bitmap uint64
	for i, f := range r.Fields {
		if !f.Null {
			bitmap |= 1 << uint(i)
		}
	}
	if err := buf.PutUint64(off, bitmap); err != nil {
		return off, err
	}
	off += 8

	for i, f := range r.Fields {
		if f.Null {
			continue
		}
		col := schema.Columns[i]
		var err error
		off, err = encodeField(buf, off, col, f)
		if err != nil {
			return off, err
		}
	}
	return off, nil
}

func encodeField(buf page.Buf, off int, col Column, f Field) (int, error) {
	switch col.Type {
	case TypeInt32:
		if err := buf.PutInt32(off, f.I32); err != nil {
			return off, err
		}
		return off + 4, nil
	case TypeFloat32:
		if err := buf.PutFloat32(off, f.F32); err != nil {
			return off, err
		}
		return off + 4, nil
	case TypeChar:
		if uint32(len(f.Str)) > col.Length {
			return off, dberr.Newf(dberr.TupleTooLarge, "row: char field %q (%d bytes) exceeds column length %d", col.Name, len(f.Str), col.Length)
		}
		return buf.PutString(off, f.Str)
	default:
		return off, dberr.New(dberr.IOFailure, "row: unknown column type during encode")
	}
}

func decodeField(buf page.Buf, off int, col Column) (Field, int, error) {
	switch col.Type {
	case TypeInt32:
		v, err := buf.GetInt32(off)
		if err != nil {
			return Field{}, off, err
		}
		return NewInt32Field(v), off + 4, nil
	case TypeFloat32:
		v, err := buf.GetFloat32(off)
		if err != nil {
			return Field{}, off, err
		}
		return NewFloat32Field(v), off + 4, nil
	case TypeChar:
		s, next, err := buf.GetString(off)
		if err != nil {
			return Field{}, off, err
		}
		return NewCharField(s), next, nil
	default:
		return Field{}, off, dberr.New(dberr.IOFailure, "row: unknown column type during decode")
	}
}

// DeserializeRowFrom decodes a row at off per schema, returning it and
// the offset just past it.
func DeserializeRowFrom(schema *Schema, buf page.Buf, off int) (*Row, int, error) {
	fieldCount, err := buf.GetUint32(off)
	if err != nil {
		return nil, off, err
	}
	off += 4
	if int(fieldCount) != schema.ColumnCount() {
		return nil, off, dberr.Newf(dberr.IOFailure, "row: encoded field count %d does not match schema's %d columns", fieldCount, schema.ColumnCount())
	}

	bitmap, err := buf.GetUint64(off)
	if err != nil {
		return nil, off, err
	}
	off += 8

	fields := make([]Field, fieldCount)
	for i := uint32(0); i < fieldCount; i++ {
		col := schema.Columns[i]
		if bitmap&(1<<uint(i)) == 0 {
			fields[i] = NewNullField(col.Type)
			continue
		}
		var f Field
		f, off, err = decodeField(buf, off, col)
		if err != nil {
			return nil, off, err
		}
		fields[i] = f
	}

	return &Row{Fields: fields}, off, nil
}

// EncodedSize returns the exact number of bytes SerializeTo would
// write for this row against schema, without actually writing.
func (r *Row) EncodedSize(schema *Schema) (int, error) {
	if len(r.Fields) != schema.ColumnCount() {
		return 0, dberr.Newf(dberr.IOFailure, "row: %d fields does not match schema's %d columns", len(r.Fields), schema.ColumnCount())
	}
	size := 4 + 8
	for i, f := range r.Fields {
		if f.Null {
			continue
		}
		col := schema.Columns[i]
		switch col.Type {
		case TypeInt32, TypeFloat32:
			size += 4
		case TypeChar:
			size += 4 + len(f.Str)
		default:
			return 0, dberr.New(dberr.IOFailure, "row: unknown column type during size computation")
		}
	}
	return size, nil
}
