// Package bplustree implements the unique-key B+ tree index described
// in spec §4.6/§4.7/§4.8: pages holding sorted key/value entries,
// split/merge/redistribute rebalancing, a leaf chain for range scans,
// and a root-bookkeeping meta page.
//
// Node layout and the length-prefixed key/value encoding are grounded
// on the teacher's storage_engine/access/indexfile_manager/bplustree
// (node_to_index_page.go's SerializeNode/DeserializeNode), generalized
// to use riverdb/pkg/page's bounds-checked Buf accessors instead of
// encoding/binary directly — the same codec idiom pkg/record and
// pkg/table already use. Keys and values are opaque []byte; the tree
// itself never decodes them, matching the teacher's bytes.Compare-style
// comparator field.
package bplustree

import (
	"riverdb/pkg/dberr"
	"riverdb/pkg/page"
)

// Type distinguishes leaf from internal nodes.
type Type uint8

const (
	Leaf Type = iota
	Internal
)

const (
	offPageType   = 0  // u8
	offSize       = 1  // u32 — number of keys
	offMaxSize    = 5  // u32
	offParentID   = 9  // i32
	offPageID     = 13 // i32 — this node's own page id, informational
	offNextPageID = 17 // i32 — leaf only, page.Invalid for internal nodes

	// HeaderSize is the fixed common-header size in bytes.
	HeaderSize = 21
)

// Node is the decoded, in-memory form of one B+ tree page: a leaf
// holding sorted (key, value) pairs, or an internal node holding
// sorted separator keys and one more child pointer than it has keys.
type Node struct {
	PageID   page.ID
	Type     Type
	MaxSize  int
	ParentID page.ID

	Keys     [][]byte  // sorted ascending
	Values   [][]byte  // leaf only, len(Values) == len(Keys)
	Children []page.ID // internal only, len(Children) == len(Keys)+1

	NextPageID page.ID // leaf only
}

// NewLeaf builds an empty leaf node for pageID.
func NewLeaf(pageID page.ID, maxSize int) *Node {
	return &Node{PageID: pageID, Type: Leaf, MaxSize: maxSize, ParentID: page.Invalid, NextPageID: page.Invalid}
}

// NewInternal builds an empty internal node for pageID.
func NewInternal(pageID page.ID, maxSize int) *Node {
	return &Node{PageID: pageID, Type: Internal, MaxSize: maxSize, ParentID: page.Invalid}
}

// Size is the number of leaf entries, or the number of children for
// an internal node — the quantity leaf_max_size/internal_max_size
// bound, per spec §4.6.
func (n *Node) Size() int {
	if n.Type == Internal {
		return len(n.Children)
	}
	return len(n.Keys)
}

// IsLeaf reports whether n is a leaf node.
func (n *Node) IsLeaf() bool { return n.Type == Leaf }

// MinSize is ceil(MaxSize/2), the minimum size a non-root node must
// keep after a delete before rebalancing kicks in.
func (n *Node) MinSize() int { return (n.MaxSize + 1) / 2 }

func putLPBytes(buf page.Buf, off int, data []byte) (int, error) {
	if err := buf.PutUint32(off, uint32(len(data))); err != nil {
		return off, err
	}
	off += 4
	if err := buf.PutBytes(off, data); err != nil {
		return off, err
	}
	return off + len(data), nil
}

func getLPBytes(buf page.Buf, off int) ([]byte, int, error) {
	n, err := buf.GetUint32(off)
	if err != nil {
		return nil, off, err
	}
	off += 4
	data, err := buf.GetBytes(off, int(n))
	if err != nil {
		return nil, off, err
	}
	return data, off + int(n), nil
}

// SerializeTo encodes n into buf, which must be exactly page.Size
// bytes (the caller owns a pinned frame from the buffer pool).
func (n *Node) SerializeTo(buf page.Buf) error {
	for i := range buf {
		buf[i] = 0
	}

	pt := uint8(0)
	if n.Type == Internal {
		pt = 1
	}
	if err := buf.PutUint8(offPageType, pt); err != nil {
		return err
	}
	if err := buf.PutUint32(offSize, uint32(len(n.Keys))); err != nil {
		return err
	}
	if err := buf.PutUint32(offMaxSize, uint32(n.MaxSize)); err != nil {
		return err
	}
	if err := buf.PutInt32(offParentID, int32(n.ParentID)); err != nil {
		return err
	}
	if err := buf.PutInt32(offPageID, int32(n.PageID)); err != nil {
		return err
	}
	next := page.Invalid
	if n.Type == Leaf {
		next = n.NextPageID
	}
	if err := buf.PutInt32(offNextPageID, int32(next)); err != nil {
		return err
	}

	off := HeaderSize
	for _, k := range n.Keys {
		var err error
		off, err = putLPBytes(buf, off, k)
		if err != nil {
			return dberr.Wrap(dberr.TupleTooLarge, err, "bplustree: node overflow writing keys")
		}
	}

	if n.Type == Leaf {
		for _, v := range n.Values {
			var err error
			off, err = putLPBytes(buf, off, v)
			if err != nil {
				return dberr.Wrap(dberr.TupleTooLarge, err, "bplustree: node overflow writing values")
			}
		}
	} else {
		for _, c := range n.Children {
			if err := buf.PutInt32(off, int32(c)); err != nil {
				return dberr.Wrap(dberr.TupleTooLarge, err, "bplustree: node overflow writing children")
			}
			off += 4
		}
	}
	return nil
}

// DeserializeFrom decodes a Node out of buf.
func DeserializeFrom(buf page.Buf) (*Node, error) {
	pt, err := buf.GetUint8(offPageType)
	if err != nil {
		return nil, err
	}
	size, err := buf.GetUint32(offSize)
	if err != nil {
		return nil, err
	}
	maxSize, err := buf.GetUint32(offMaxSize)
	if err != nil {
		return nil, err
	}
	parent, err := buf.GetInt32(offParentID)
	if err != nil {
		return nil, err
	}
	pageID, err := buf.GetInt32(offPageID)
	if err != nil {
		return nil, err
	}
	next, err := buf.GetInt32(offNextPageID)
	if err != nil {
		return nil, err
	}

	n := &Node{
		PageID:   page.ID(pageID),
		MaxSize:  int(maxSize),
		ParentID: page.ID(parent),
	}
	if pt == 1 {
		n.Type = Internal
	} else {
		n.Type = Leaf
		n.NextPageID = page.ID(next)
	}

	off := HeaderSize
	n.Keys = make([][]byte, 0, size)
	for i := uint32(0); i < size; i++ {
		var k []byte
		k, off, err = getLPBytes(buf, off)
		if err != nil {
			return nil, err
		}
		n.Keys = append(n.Keys, k)
	}

	if n.Type == Leaf {
		n.Values = make([][]byte, 0, size)
		for i := uint32(0); i < size; i++ {
			var v []byte
			v, off, err = getLPBytes(buf, off)
			if err != nil {
				return nil, err
			}
			n.Values = append(n.Values, v)
		}
	} else {
		n.Children = make([]page.ID, 0, size+1)
		for i := uint32(0); i <= size; i++ {
			c, err := buf.GetInt32(off)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, page.ID(c))
			off += 4
		}
	}

	return n, nil
}
