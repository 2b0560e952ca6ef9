package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riverdb/pkg/record"
)

func TestParseSchema(t *testing.T) {
	schema, err := parseSchema("id:int32:unique;name:char16;score:float32:nullable")
	require.NoError(t, err)
	require.Equal(t, 3, schema.ColumnCount())

	assert.Equal(t, record.TypeInt32, schema.Columns[0].Type)
	assert.True(t, schema.Columns[0].Unique)
	assert.Equal(t, record.TypeChar, schema.Columns[1].Type)
	assert.Equal(t, uint32(16), schema.Columns[1].Length)
	assert.Equal(t, record.TypeFloat32, schema.Columns[2].Type)
	assert.True(t, schema.Columns[2].Nullable)
}

func TestParseSchemaRejectsBadSpec(t *testing.T) {
	_, err := parseSchema("id:bogus")
	assert.Error(t, err)
}

func TestParseRowRoundTrip(t *testing.T) {
	schema, err := parseSchema("id:int32:unique;name:char16;score:float32:nullable")
	require.NoError(t, err)

	row, err := parseRow(schema, "7, Alice, 9.5")
	require.NoError(t, err)
	assert.Equal(t, int32(7), row.Fields[0].I32)
	assert.Equal(t, "Alice", row.Fields[1].Str)
	assert.Equal(t, float32(9.5), row.Fields[2].F32)

	rowNull, err := parseRow(schema, "8, Bob, ")
	require.NoError(t, err)
	assert.True(t, rowNull.Fields[2].Null)
}

func TestParseRowWrongFieldCount(t *testing.T) {
	schema, err := parseSchema("id:int32:unique;name:char16")
	require.NoError(t, err)
	_, err = parseRow(schema, "1")
	assert.Error(t, err)
}

func TestFormatRow(t *testing.T) {
	row := record.NewRow(record.NewInt32Field(3), record.NewCharField("x"), record.NewNullField(record.TypeFloat32))
	assert.Equal(t, "3\tx\tNULL", formatRow(row))
}
