package bplustree

import "riverdb/pkg/page"

// Iterator is a forward cursor over a leaf chain. A past-the-end
// iterator holds an invalid leaf id and answers Valid() with false,
// per spec §4.8.
type Iterator struct {
	tree   *Tree
	leafID page.ID
	leaf   *Node
	idx    int
}

// Begin opens an iterator positioned at the first key in the tree.
func (t *Tree) Begin() (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, leafID: page.Invalid}, nil
	}
	id := t.leftmostLeaf()
	leaf, err := t.fetchNode(id)
	if err != nil {
		return nil, err
	}
	return &Iterator{tree: t, leafID: id, leaf: leaf, idx: 0}, nil
}

// BeginAt opens an iterator positioned at the first key >= key.
func (t *Tree) BeginAt(key []byte) (*Iterator, error) {
	if t.IsEmpty() {
		return &Iterator{tree: t, leafID: page.Invalid}, nil
	}
	leaf, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	idx := lowerBound(leaf.Keys, key, t.cmp)
	it := &Iterator{tree: t, leafID: leaf.PageID, leaf: leaf, idx: idx}
	if idx >= len(leaf.Keys) {
		if err := it.advanceLeaf(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// End returns a past-the-end iterator.
func (t *Tree) End() *Iterator {
	return &Iterator{tree: t, leafID: page.Invalid}
}

// Valid reports whether the cursor refers to a live entry.
func (it *Iterator) Valid() bool {
	return it.leafID.IsValid() && it.leaf != nil && it.idx < len(it.leaf.Keys)
}

// Key returns the current entry's key. Valid must be true.
func (it *Iterator) Key() []byte { return it.leaf.Keys[it.idx] }

// Value returns the current entry's value. Valid must be true.
func (it *Iterator) Value() []byte { return it.leaf.Values[it.idx] }

// Next advances the cursor by one entry, crossing into the next leaf
// via the leaf chain when the current leaf is exhausted.
func (it *Iterator) Next() error {
	if !it.Valid() {
		return nil
	}
	it.idx++
	if it.idx < len(it.leaf.Keys) {
		return nil
	}
	return it.advanceLeaf()
}

func (it *Iterator) advanceLeaf() error {
	for {
		next := it.leaf.NextPageID
		if !next.IsValid() {
			it.leafID = page.Invalid
			it.leaf = nil
			it.idx = 0
			return nil
		}
		leaf, err := it.tree.fetchNode(next)
		if err != nil {
			return err
		}
		it.leafID = next
		it.leaf = leaf
		it.idx = 0
		if len(leaf.Keys) > 0 {
			return nil
		}
	}
}

// Close releases the iterator. Since fetchNode never holds a pin past
// its own call, there is nothing left to release; Close exists so
// callers can use the cursor in a defer-friendly way.
func (it *Iterator) Close() error { return nil }
