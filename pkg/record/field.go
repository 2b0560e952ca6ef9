package record

import "riverdb/pkg/dberr"

// Field is a tagged value: either (type, null) or (type, concrete
// value). Char values carry an explicit length via len(Str).
type Field struct {
	Type Type
	Null bool

	I32 int32
	F32 float32
	Str string
}

// NewNullField builds a null field of the given type.
func NewNullField(t Type) Field {
	return Field{Type: t, Null: true}
}

// NewInt32Field builds a non-null Int32 field.
func NewInt32Field(v int32) Field {
	return Field{Type: TypeInt32, I32: v}
}

// NewFloat32Field builds a non-null Float32 field.
func NewFloat32Field(v float32) Field {
	return Field{Type: TypeFloat32, F32: v}
}

// NewCharField builds a non-null Char field.
func NewCharField(v string) Field {
	return Field{Type: TypeChar, Str: v}
}

// Equal compares two fields by type, nullness, and value.
func (f Field) Equal(other Field) bool {
	if f.Type != other.Type || f.Null != other.Null {
		return false
	}
	if f.Null {
		return true
	}
	switch f.Type {
	case TypeInt32:
		return f.I32 == other.I32
	case TypeFloat32:
		return f.F32 == other.F32
	case TypeChar:
		return f.Str == other.Str
	default:
		return false
	}
}

// Compare orders two same-typed, non-null fields; used by unique-key
// and index comparisons. Returns <0, 0, >0.
func (f Field) Compare(other Field) (int, error) {
	if f.Type != other.Type {
		return 0, dberr.New(dberr.ColumnNameNotExist, "field: comparing mismatched types")
	}
	switch f.Type {
	case TypeInt32:
		switch {
		case f.I32 < other.I32:
			return -1, nil
		case f.I32 > other.I32:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeFloat32:
		switch {
		case f.F32 < other.F32:
			return -1, nil
		case f.F32 > other.F32:
			return 1, nil
		default:
			return 0, nil
		}
	case TypeChar:
		switch {
		case f.Str < other.Str:
			return -1, nil
		case f.Str > other.Str:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, dberr.New(dberr.IOFailure, "field: unknown type in comparison")
	}
}
