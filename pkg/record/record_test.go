package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverdb/pkg/page"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		NewInt32Column("id", 0, false, true),
		NewCharColumn("name", 16, 1, true, false),
		NewFloat32Column("score", 2, true, false),
	)
	require.NoError(t, err)
	return s
}

func TestColumnRoundTrip(t *testing.T) {
	buf := page.New()
	c := NewCharColumn("name", 16, 3, true, false)
	end, err := c.SerializeTo(buf, 0)
	require.NoError(t, err)

	got, end2, err := DeserializeColumnFrom(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, end, end2)
	assert.Equal(t, c, got)
}

func TestSchemaRoundTrip(t *testing.T) {
	s := testSchema(t)
	buf := page.New()
	end, err := s.SerializeTo(buf, 0)
	require.NoError(t, err)

	got, end2, err := DeserializeSchemaFrom(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, end, end2)
	assert.Equal(t, s.ColumnCount(), got.ColumnCount())
	for i := range s.Columns {
		assert.Equal(t, s.Columns[i], got.Columns[i])
	}
}

func TestSchemaRejectsTooManyColumns(t *testing.T) {
	cols := make([]Column, 65)
	for i := range cols {
		cols[i] = NewInt32Column("c", uint32(i), false, false)
	}
	_, err := NewSchema(cols...)
	assert.Error(t, err)
}

func TestRowRoundTripWithNulls(t *testing.T) {
	s := testSchema(t)
	row := NewRow(
		NewInt32Field(7),
		NewCharField("alice"),
		NewNullField(TypeFloat32),
	)

	buf := page.New()
	end, err := row.SerializeTo(s, buf, 0)
	require.NoError(t, err)

	size, err := row.EncodedSize(s)
	require.NoError(t, err)
	assert.Equal(t, end, size)

	got, end2, err := DeserializeRowFrom(s, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, end, end2)

	require.Len(t, got.Fields, 3)
	assert.True(t, got.Fields[0].Equal(NewInt32Field(7)))
	assert.True(t, got.Fields[1].Equal(NewCharField("alice")))
	assert.True(t, got.Fields[2].Null)
}

func TestRowRoundTripAllNonNull(t *testing.T) {
	s := testSchema(t)
	row := NewRow(
		NewInt32Field(-42),
		NewCharField("bob"),
		NewFloat32Field(9.5),
	)

	buf := page.New()
	_, err := row.SerializeTo(s, buf, 0)
	require.NoError(t, err)

	got, _, err := DeserializeRowFrom(s, buf, 0)
	require.NoError(t, err)
	for i, f := range got.Fields {
		assert.True(t, f.Equal(row.Fields[i]), "field %d mismatch", i)
	}
}

func TestRowRejectsOverlongChar(t *testing.T) {
	s := testSchema(t)
	row := NewRow(
		NewInt32Field(1),
		NewCharField("this name is far too long for sixteen bytes"),
		NewNullField(TypeFloat32),
	)

	buf := page.New()
	_, err := row.SerializeTo(s, buf, 0)
	assert.Error(t, err)
}

func TestFieldCompare(t *testing.T) {
	a := NewInt32Field(1)
	b := NewInt32Field(2)
	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Negative(t, cmp)

	_, err = a.Compare(NewCharField("x"))
	assert.Error(t, err)
}
