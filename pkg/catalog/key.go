package catalog

import (
	"encoding/binary"
	"math"

	"riverdb/pkg/dberr"
	"riverdb/pkg/record"
)

// encodeKey builds the byte-comparable composite key pkg/bplustree
// indexes a row under, by concatenating the named columns' fields in
// order. No example or pack library supplies a generic order-preserving
// byte-key encoder for arbitrary column tuples, so this is hand-rolled;
// it is a small, self-contained algorithm rather than an ambient
// concern a library would own.
//
// Int32 fields are encoded as the sign-flipped big-endian bitmask
// technique, so bytes.Compare orders them the same as numeric
// comparison across negative and positive values. Char fields are
// appended as their raw bytes followed by a single 0x00 terminator
// (rather than length-prefixed), so bytes.Compare orders them
// lexicographically, matching spec §3's string ordering, and a
// composite key's column boundaries stay unambiguous without breaking
// that order; this assumes char data never embeds a NUL byte, true of
// the text spec §4.5 describes. A null field in a key column is
// rejected with KeyConstraintViolated.
func EncodeKey(row *record.Row, columnIndices []uint32) ([]byte, error) {
	var out []byte
	for _, idx := range columnIndices {
		if int(idx) >= len(row.Fields) {
			return nil, dberr.Newf(dberr.ColumnNameNotExist, "catalog: key column index %d out of range", idx)
		}
		f := row.Fields[idx]
		if f.Null {
			return nil, dberr.New(dberr.KeyConstraintViolated, "catalog: indexed column may not be null")
		}
		switch f.Type {
		case record.TypeInt32:
			var b [4]byte
			binary.BigEndian.PutUint32(b[:], uint32(f.I32)^0x80000000)
			out = append(out, b[:]...)
		case record.TypeFloat32:
			out = append(out, encodeOrderedFloat32(f.F32)...)
		case record.TypeChar:
			// NUL-terminated rather than length-prefixed: a length
			// prefix sorts by length first, which breaks lexicographic
			// ordering between differently-sized strings (spec §4.7
			// RangeScan needs the latter).
			out = append(out, []byte(f.Str)...)
			out = append(out, 0x00)
		default:
			return nil, dberr.New(dberr.IOFailure, "catalog: unknown column type in key")
		}
	}
	return out, nil
}

// encodeOrderedFloat32 maps v to a 4-byte big-endian string ordered
// the same way IEEE-754 float comparison orders v: flip the sign bit
// for non-negative values, flip every bit for negative ones.
func encodeOrderedFloat32(v float32) []byte {
	bits := math.Float32bits(v)
	if bits&0x80000000 != 0 {
		bits = ^bits
	} else {
		bits |= 0x80000000
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], bits)
	return b[:]
}
