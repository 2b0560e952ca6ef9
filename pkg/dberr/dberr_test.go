package dberr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("disk exploded")
	wrapped := Wrap(IOFailure, base, "writing page 3")

	assert.Equal(t, IOFailure, KindOf(wrapped))
	assert.True(t, Is(wrapped, IOFailure))
	assert.False(t, Is(wrapped, TableNotExist))
	assert.Equal(t, Unknown, KindOf(base))
	assert.ErrorIs(t, wrapped, base)
}

func TestNewHasNoCause(t *testing.T) {
	err := New(TableNotExist, "table 'foo' does not exist")
	assert.Nil(t, err.Unwrap())
	assert.Contains(t, err.Error(), "TableNotExist")
	assert.Contains(t, err.Error(), "foo")
}

func TestNewfAndWrapf(t *testing.T) {
	err := Newf(ColumnNameNotExist, "column %q not found", "age")
	assert.Contains(t, err.Error(), "age")

	cause := errors.New("eof")
	werr := Wrapf(IOFailure, cause, "reading page %d", 42)
	assert.Contains(t, werr.Error(), "42")
	assert.ErrorIs(t, werr, cause)
}
