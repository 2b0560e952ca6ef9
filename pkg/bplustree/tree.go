package bplustree

import (
	"riverdb/pkg/buffer"
	"riverdb/pkg/page"
)

// Comparator orders two keys, returning <0, 0, >0 — the same shape as
// bytes.Compare, which most callers use directly.
type Comparator func(a, b []byte) int

// RootStore persists the current root page id for an index across
// restarts. Grounded on spec §4.6's dedicated meta page (id 1)
// mapping index_id -> root_page_id; implemented by pkg/catalog.
type RootStore interface {
	GetRoot(indexID uint32) (page.ID, bool, error)
	SetRoot(indexID uint32, root page.ID) error
}

// Tree is a disk-backed, unique-key B+ tree index. Every operation
// brackets each page touch with Fetch...Unpin rather than holding pins
// across a traversal, matching the single-threaded cooperative model
// of spec §5.
type Tree struct {
	pool    *buffer.Pool
	store   RootStore
	indexID uint32
	cmp     Comparator

	leafMaxSize     int
	internalMaxSize int

	root page.ID
}

// Open loads (or, if indexID has no recorded root yet, prepares to
// create) the tree rooted per store.
func Open(pool *buffer.Pool, store RootStore, indexID uint32, cmp Comparator, leafMaxSize, internalMaxSize int) (*Tree, error) {
	root, ok, err := store.GetRoot(indexID)
	if err != nil {
		return nil, err
	}
	if !ok {
		root = page.Invalid
	}
	return &Tree{
		pool:            pool,
		store:           store,
		indexID:         indexID,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		root:            root,
	}, nil
}

// IsEmpty reports whether the tree has no root yet.
func (t *Tree) IsEmpty() bool { return !t.root.IsValid() }

// RootPageID returns the tree's current root page id, or page.Invalid
// if the tree is empty. Exposed for metadata persistence and debug
// tooling; the tree itself always resolves its root through RootStore.
func (t *Tree) RootPageID() page.ID { return t.root }

func (t *Tree) fetchNode(id page.ID) (*Node, error) {
	buf, err := t.pool.Fetch(id)
	if err != nil {
		return nil, err
	}
	n, err := DeserializeFrom(buf)
	if uerr := t.pool.Unpin(id, false); uerr != nil && err == nil {
		err = uerr
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Tree) writeNode(n *Node) error {
	buf, err := t.pool.Fetch(n.PageID)
	if err != nil {
		return err
	}
	if err := n.SerializeTo(buf); err != nil {
		_ = t.pool.Unpin(n.PageID, false)
		return err
	}
	return t.pool.Unpin(n.PageID, true)
}

func (t *Tree) allocate(typ Type) (*Node, error) {
	id, buf, err := t.pool.New()
	if err != nil {
		return nil, err
	}
	var n *Node
	if typ == Leaf {
		n = NewLeaf(id, t.leafMaxSize)
	} else {
		n = NewInternal(id, t.internalMaxSize)
	}
	if err := n.SerializeTo(buf); err != nil {
		_ = t.pool.Unpin(id, false)
		return nil, err
	}
	if err := t.pool.Unpin(id, true); err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Tree) saveRoot() error {
	return t.store.SetRoot(t.indexID, t.root)
}

// GetValue returns the value stored for key, if any.
func (t *Tree) GetValue(key []byte) ([]byte, bool, error) {
	if t.IsEmpty() {
		return nil, false, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, false, err
	}
	idx, found := leafSearch(leaf, key, t.cmp)
	if !found {
		return nil, false, nil
	}
	return leaf.Values[idx], true, nil
}

// Insert adds (key, value); returns false iff key is already present.
func (t *Tree) Insert(key, value []byte) (bool, error) {
	if t.IsEmpty() {
		root, err := t.allocate(Leaf)
		if err != nil {
			return false, err
		}
		root.Keys = [][]byte{key}
		root.Values = [][]byte{value}
		if err := t.writeNode(root); err != nil {
			return false, err
		}
		t.root = root.PageID
		return true, t.saveRoot()
	}

	leaf, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	if _, found := leafSearch(leaf, key, t.cmp); found {
		return false, nil
	}

	pos := lowerBound(leaf.Keys, key, t.cmp)
	leaf.Keys = insertAt(leaf.Keys, pos, key)
	leaf.Values = insertAt(leaf.Values, pos, value)
	if err := t.writeNode(leaf); err != nil {
		return false, err
	}

	if leaf.Size() > t.leafMaxSize {
		if err := t.splitLeaf(leaf); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Remove deletes key if present; a missing key is a no-op.
func (t *Tree) Remove(key []byte) error {
	if t.IsEmpty() {
		return nil
	}
	_, err := t.deleteRecursive(t.root, key)
	return err
}

// Destroy recursively deletes every page owned by the tree and
// invalidates the root.
func (t *Tree) Destroy() error {
	if t.IsEmpty() {
		return nil
	}
	if err := t.destroyRecursive(t.root); err != nil {
		return err
	}
	t.root = page.Invalid
	return t.saveRoot()
}

func (t *Tree) destroyRecursive(id page.ID) error {
	n, err := t.fetchNode(id)
	if err != nil {
		return err
	}
	if n.Type == Internal {
		for _, c := range n.Children {
			if err := t.destroyRecursive(c); err != nil {
				return err
			}
		}
	}
	return t.pool.Delete(id)
}

// RangeScan returns every value whose key satisfies the side/inclusion
// predicate relative to key, per spec §4.7.
func (t *Tree) RangeScan(key []byte, toLeft, keyIncluded bool) ([][]byte, error) {
	var out [][]byte
	keep := func(k []byte) bool {
		c := t.cmp(k, key)
		if toLeft {
			if keyIncluded {
				return c <= 0
			}
			return c < 0
		}
		if keyIncluded {
			return c >= 0
		}
		return c > 0
	}

	if t.IsEmpty() {
		return out, nil
	}

	if toLeft {
		id := t.leftmostLeaf()
		target, err := t.findLeaf(key)
		if err != nil {
			return nil, err
		}
		for id.IsValid() {
			n, err := t.fetchNode(id)
			if err != nil {
				return nil, err
			}
			for i, k := range n.Keys {
				if keep(k) {
					out = append(out, n.Values[i])
				}
			}
			if id == target.PageID {
				break
			}
			id = n.NextPageID
		}
		return out, nil
	}

	target, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	id := target.PageID
	for id.IsValid() {
		n, err := t.fetchNode(id)
		if err != nil {
			return nil, err
		}
		for i, k := range n.Keys {
			if keep(k) {
				out = append(out, n.Values[i])
			}
		}
		id = n.NextPageID
	}
	return out, nil
}

func (t *Tree) leftmostLeaf() page.ID {
	id := t.root
	for id.IsValid() {
		n, err := t.fetchNode(id)
		if err != nil {
			return page.Invalid
		}
		if n.IsLeaf() {
			return id
		}
		id = n.Children[0]
	}
	return page.Invalid
}
