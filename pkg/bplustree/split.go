package bplustree

import "riverdb/pkg/page"

// splitLeaf moves the upper half of a leaf that has overflowed into a
// new right sibling, links it into the next-page chain, and promotes
// the right sibling's first key into the parent.
func (t *Tree) splitLeaf(leaf *Node) error {
	mid := len(leaf.Keys) / 2

	right, err := t.allocate(Leaf)
	if err != nil {
		return err
	}
	right.Keys = append(right.Keys, leaf.Keys[mid:]...)
	right.Values = append(right.Values, leaf.Values[mid:]...)
	right.NextPageID = leaf.NextPageID
	right.ParentID = leaf.ParentID

	leaf.Keys = leaf.Keys[:mid]
	leaf.Values = leaf.Values[:mid]
	leaf.NextPageID = right.PageID

	if err := t.writeNode(leaf); err != nil {
		return err
	}
	if err := t.writeNode(right); err != nil {
		return err
	}

	sepKey := right.Keys[0]
	if leaf.PageID == t.root {
		return t.createNewRoot(leaf.PageID, sepKey, right.PageID)
	}
	return t.insertIntoParent(leaf.ParentID, leaf.PageID, sepKey, right.PageID)
}

// splitInternal splits a full internal node and promotes the middle
// separator key into the parent.
func (t *Tree) splitInternal(node *Node) error {
	mid := len(node.Keys) / 2
	promoteKey := node.Keys[mid]

	right, err := t.allocate(Internal)
	if err != nil {
		return err
	}
	right.Keys = append(right.Keys, node.Keys[mid+1:]...)
	right.Children = append(right.Children, node.Children[mid+1:]...)
	right.ParentID = node.ParentID

	for _, childID := range right.Children {
		child, err := t.fetchNode(childID)
		if err != nil {
			return err
		}
		child.ParentID = right.PageID
		if err := t.writeNode(child); err != nil {
			return err
		}
	}

	node.Keys = node.Keys[:mid]
	node.Children = node.Children[:mid+1]

	if err := t.writeNode(node); err != nil {
		return err
	}
	if err := t.writeNode(right); err != nil {
		return err
	}

	if node.PageID == t.root {
		return t.createNewRoot(node.PageID, promoteKey, right.PageID)
	}
	return t.insertIntoParent(node.ParentID, node.PageID, promoteKey, right.PageID)
}

// createNewRoot allocates a new internal root over leftID/rightID,
// separated by sepKey.
func (t *Tree) createNewRoot(leftID page.ID, sepKey []byte, rightID page.ID) error {
	root, err := t.allocate(Internal)
	if err != nil {
		return err
	}
	root.Keys = [][]byte{sepKey}
	root.Children = []page.ID{leftID, rightID}
	root.ParentID = page.Invalid

	for _, id := range [2]page.ID{leftID, rightID} {
		child, err := t.fetchNode(id)
		if err != nil {
			return err
		}
		child.ParentID = root.PageID
		if err := t.writeNode(child); err != nil {
			return err
		}
	}

	if err := t.writeNode(root); err != nil {
		return err
	}

	t.root = root.PageID
	return t.saveRoot()
}

// insertIntoParent inserts sepKey and rightID immediately after leftID
// in parentID's children, splitting parentID if it now overflows.
func (t *Tree) insertIntoParent(parentID, leftID page.ID, sepKey []byte, rightID page.ID) error {
	parent, err := t.fetchNode(parentID)
	if err != nil {
		return err
	}

	idx := 0
	for idx < len(parent.Children) && parent.Children[idx] != leftID {
		idx++
	}

	parent.Keys = insertAt(parent.Keys, idx, sepKey)
	parent.Children = insertAt(parent.Children, idx+1, rightID)

	right, err := t.fetchNode(rightID)
	if err != nil {
		return err
	}
	right.ParentID = parentID
	if err := t.writeNode(right); err != nil {
		return err
	}
	if err := t.writeNode(parent); err != nil {
		return err
	}

	if parent.Size() > parent.MaxSize {
		return t.splitInternal(parent)
	}
	return nil
}
