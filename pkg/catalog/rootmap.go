package catalog

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

const rootMapMagic = 0x49524d41 // "IRMA" (Index Root MAp)

// rootMap is the decoded form of page 1: every index's current root
// page id, handed to pkg/bplustree as a RootStore. An index with no
// entry has an empty tree.
type rootMap struct {
	roots map[uint32]page.ID
}

func newRootMap() *rootMap {
	return &rootMap{roots: make(map[uint32]page.ID)}
}

// GetRoot implements bplustree.RootStore.
func (m *rootMap) GetRoot(indexID uint32) (page.ID, bool, error) {
	id, ok := m.roots[indexID]
	if !ok || !id.IsValid() {
		return page.Invalid, false, nil
	}
	return id, true, nil
}

// SetRoot implements bplustree.RootStore.
func (m *rootMap) SetRoot(indexID uint32, root page.ID) error {
	if !root.IsValid() {
		delete(m.roots, indexID)
		return nil
	}
	m.roots[indexID] = root
	return nil
}

func (m *rootMap) drop(indexID uint32) {
	delete(m.roots, indexID)
}

func (m *rootMap) serializeTo(buf page.Buf) error {
	for i := range buf {
		buf[i] = 0
	}
	off := 0
	if err := buf.PutUint32(off, rootMapMagic); err != nil {
		return err
	}
	off += 4
	if err := buf.PutUint32(off, uint32(len(m.roots))); err != nil {
		return dberr.Wrap(dberr.IOFailure, err, "index root map: too many indexes for one page")
	}
	off += 4
	for id, root := range m.roots {
		if err := buf.PutUint32(off, id); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "index root map: entries overflowed page")
		}
		off += 4
		if err := buf.PutInt32(off, int32(root)); err != nil {
			return dberr.Wrap(dberr.IOFailure, err, "index root map: entries overflowed page")
		}
		off += 4
	}
	return nil
}

func deserializeRootMap(buf page.Buf) (*rootMap, error) {
	off := 0
	magic, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	if magic != rootMapMagic {
		return nil, dberr.New(dberr.MagicMismatch, "catalog: bad magic on index root map page")
	}
	off += 4

	n, err := buf.GetUint32(off)
	if err != nil {
		return nil, err
	}
	off += 4

	m := newRootMap()
	for i := uint32(0); i < n; i++ {
		id, err := buf.GetUint32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		root, err := buf.GetInt32(off)
		if err != nil {
			return nil, err
		}
		off += 4
		m.roots[id] = page.ID(root)
	}
	return m, nil
}
