package wal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoOpNeverBlocksFlush(t *testing.T) {
	var m Manager = NoOp{}
	assert.Equal(t, uint64(0), m.GetFlushedLSN())

	lsn, err := m.AppendRecord([]byte("anything"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), lsn)
}
