package record

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

const (
	schemaMagic = 0x534348 // "SCH"
	maxColumns  = 64       // null-bitmap width, per spec §3
)

// Schema is an ordered sequence of columns.
type Schema struct {
	Columns []Column
}

// NewSchema builds a Schema, assigning TableIndex positions in order
// and refusing more than maxColumns columns.
func NewSchema(columns ...Column) (*Schema, error) {
	if len(columns) > maxColumns {
		return nil, dberr.Newf(dberr.IOFailure, "schema: %d columns exceeds max of %d", len(columns), maxColumns)
	}
	cols := make([]Column, len(columns))
	for i, c := range columns {
		c.TableIndex = uint32(i)
		cols[i] = c
	}
	return &Schema{Columns: cols}, nil
}

// ColumnCount returns the number of columns.
func (s *Schema) ColumnCount() int { return len(s.Columns) }

// ColumnIndex returns the index of the named column, or -1.
func (s *Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// SerializeTo writes the schema at off, returning the offset just past
// what was written.
func (s *Schema) SerializeTo(buf page.Buf, off int) (int, error) {
	if err := buf.PutUint32(off, schemaMagic); err != nil {
		return off, err
	}
	off += 4
	if err := buf.PutUint32(off, uint32(len(s.Columns))); err != nil {
		return off, err
	}
	off += 4

	for _, c := range s.Columns {
		var err error
		off, err = c.SerializeTo(buf, off)
		if err != nil {
			return off, err
		}
	}
	return off, nil
}

// DeserializeSchemaFrom reads a Schema at off, returning it and the
// offset just past it.
func DeserializeSchemaFrom(buf page.Buf, off int) (*Schema, int, error) {
	magic, err := buf.GetUint32(off)
	if err != nil {
		return nil, off, err
	}
	if magic != schemaMagic {
		return nil, off, dberr.New(dberr.MagicMismatch, "schema: bad magic number")
	}
	off += 4

	n, err := buf.GetUint32(off)
	if err != nil {
		return nil, off, err
	}
	off += 4

	cols := make([]Column, 0, n)
	for i := uint32(0); i < n; i++ {
		var c Column
		c, off, err = DeserializeColumnFrom(buf, off)
		if err != nil {
			return nil, off, err
		}
		cols = append(cols, c)
	}
	return &Schema{Columns: cols}, off, nil
}
