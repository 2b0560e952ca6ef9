package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riverdb/pkg/page"
)

func TestNoOpGrantsAndReleasesFreely(t *testing.T) {
	var m Manager = NoOp{}
	assert.NoError(t, m.LockPage(0, page.ID(1), true))
	assert.NoError(t, m.LockPage(1, page.ID(1), true))
	m.UnlockPage(0, page.ID(1))
	m.UnlockPage(1, page.ID(1))
}
