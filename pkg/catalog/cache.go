package catalog

import (
	"github.com/dgraph-io/ristretto/v2"
)

// nameCache is a bounded, non-authoritative read-through cache of
// "table" or "index" name lookups, avoiding a re-walk of the
// in-memory name map on a hot query loop. A miss always falls back to
// the authoritative map, so losing an entry never loses correctness —
// see SPEC_FULL §3 for why ristretto cannot back the authoritative
// page cache itself.
type nameCache struct {
	c *ristretto.Cache[string, uint32]
}

func newNameCache() (*nameCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, uint32]{
		NumCounters: 1e4,
		MaxCost:     1 << 16,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &nameCache{c: c}, nil
}

func (n *nameCache) get(key string) (uint32, bool) {
	return n.c.Get(key)
}

func (n *nameCache) set(key string, id uint32) {
	n.c.Set(key, id, 1)
	n.c.Wait()
}

func (n *nameCache) del(key string) {
	n.c.Del(key)
}

func (n *nameCache) close() {
	n.c.Close()
}
