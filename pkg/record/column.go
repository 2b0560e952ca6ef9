// Package record implements the tuple layout described in spec §3/§4.5:
// Column, Schema, Field and Row, with a magic-number-guarded binary
// wire format.
//
// Grounded on the B+ tree node codec's explicit-offset style
// (storage_engine/access/indexfile_manager/bplustree/node_to_index_page.go),
// applied here to tuples instead of tree nodes, and on
// original_source/src/record/{column,schema,row}.cpp for the exact
// field ordering and null-bitmap convention.
package record

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

const colMagic = 0x434F4C // "COL" per spec §3

// Type enumerates the column types spec §3 names.
type Type uint32

const (
	TypeInt32 Type = iota
	TypeFloat32
	TypeChar
)

func (t Type) valid() bool {
	return t == TypeInt32 || t == TypeFloat32 || t == TypeChar
}

// Column describes one field of a Schema.
type Column struct {
	Name       string
	Type       Type
	Length     uint32 // FixedChar declared length; unused for Int32/Float32
	TableIndex uint32 // position within the owning schema
	Nullable   bool
	Unique     bool
}

// NewInt32Column builds a non-char column; Length is fixed at 4.
func NewInt32Column(name string, index uint32, nullable, unique bool) Column {
	return Column{Name: name, Type: TypeInt32, Length: 4, TableIndex: index, Nullable: nullable, Unique: unique}
}

// NewFloat32Column builds a non-char column; Length is fixed at 4.
func NewFloat32Column(name string, index uint32, nullable, unique bool) Column {
	return Column{Name: name, Type: TypeFloat32, Length: 4, TableIndex: index, Nullable: nullable, Unique: unique}
}

// NewCharColumn builds a FixedChar(length) column.
func NewCharColumn(name string, length, index uint32, nullable, unique bool) Column {
	return Column{Name: name, Type: TypeChar, Length: length, TableIndex: index, Nullable: nullable, Unique: unique}
}

// SerializeTo writes the column at off, returning the offset just past
// what was written.
func (c Column) SerializeTo(buf page.Buf, off int) (int, error) {
	if err := buf.PutUint32(off, colMagic); err != nil {
		return off, err
	}
	off += 4

	off, err := buf.PutString(off, c.Name)
	if err != nil {
		return off, err
	}

	if err := buf.PutUint32(off, uint32(c.Type)); err != nil {
		return off, err
	}
	off += 4
	if err := buf.PutUint32(off, c.Length); err != nil {
		return off, err
	}
	off += 4
	if err := buf.PutUint32(off, c.TableIndex); err != nil {
		return off, err
	}
	off += 4
	if err := buf.PutBool(off, c.Nullable); err != nil {
		return off, err
	}
	off++
	if err := buf.PutBool(off, c.Unique); err != nil {
		return off, err
	}
	off++

	return off, nil
}

// DeserializeColumnFrom reads a Column at off, returning it and the
// offset just past it.
func DeserializeColumnFrom(buf page.Buf, off int) (Column, int, error) {
	magic, err := buf.GetUint32(off)
	if err != nil {
		return Column{}, off, err
	}
	if magic != colMagic {
		return Column{}, off, dberr.New(dberr.MagicMismatch, "column: bad magic number")
	}
	off += 4

	name, off, err := buf.GetString(off)
	if err != nil {
		return Column{}, off, err
	}

	typeCode, err := buf.GetUint32(off)
	if err != nil {
		return Column{}, off, err
	}
	off += 4
	t := Type(typeCode)
	if !t.valid() {
		return Column{}, off, dberr.Newf(dberr.MagicMismatch, "column: unknown type code %d", typeCode)
	}

	length, err := buf.GetUint32(off)
	if err != nil {
		return Column{}, off, err
	}
	off += 4

	tableIndex, err := buf.GetUint32(off)
	if err != nil {
		return Column{}, off, err
	}
	off += 4

	nullable, err := buf.GetBool(off)
	if err != nil {
		return Column{}, off, err
	}
	off++

	unique, err := buf.GetBool(off)
	if err != nil {
		return Column{}, off, err
	}
	off++

	return Column{
		Name:       name,
		Type:       t,
		Length:     length,
		TableIndex: tableIndex,
		Nullable:   nullable,
		Unique:     unique,
	}, off, nil
}
