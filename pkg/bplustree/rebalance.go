package bplustree

import "riverdb/pkg/page"

// deleteRecursive removes key from the subtree rooted at nodeID and
// reports whether nodeID itself is now under its minimum size (the
// caller rebalances against the sibling it already holds).
func (t *Tree) deleteRecursive(nodeID page.ID, key []byte) (bool, error) {
	n, err := t.fetchNode(nodeID)
	if err != nil {
		return false, err
	}

	if n.IsLeaf() {
		idx, found := leafSearch(n, key, t.cmp)
		if !found {
			return false, nil
		}
		n.Keys = removeAt(n.Keys, idx)
		n.Values = removeAt(n.Values, idx)
		if err := t.writeNode(n); err != nil {
			return false, err
		}
		if nodeID == t.root {
			// Per spec §4.6 step 1: an empty root-leaf is permitted.
			return false, nil
		}
		return n.Size() < n.MinSize(), nil
	}

	i := childIndex(n, key, t.cmp)
	underflow, err := t.deleteRecursive(n.Children[i], key)
	if err != nil {
		return false, err
	}
	if !underflow {
		return false, nil
	}

	child, err := t.fetchNode(n.Children[i])
	if err != nil {
		return false, err
	}

	var left, right *Node
	if i > 0 {
		left, err = t.fetchNode(n.Children[i-1])
		if err != nil {
			return false, err
		}
	}
	if i < len(n.Children)-1 {
		right, err = t.fetchNode(n.Children[i+1])
		if err != nil {
			return false, err
		}
	}

	switch {
	case left != nil && left.Size() > left.MinSize():
		if err := t.borrowFromLeft(n, child, left, i); err != nil {
			return false, err
		}
		if err := t.writeNode(n); err != nil {
			return false, err
		}
		return false, nil
	case right != nil && right.Size() > right.MinSize():
		if err := t.borrowFromRight(n, child, right, i); err != nil {
			return false, err
		}
		if err := t.writeNode(n); err != nil {
			return false, err
		}
		return false, nil
	case left != nil:
		if err := t.coalesceLeft(n, child, left, i); err != nil {
			return false, err
		}
	default:
		if err := t.coalesceRight(n, child, right, i); err != nil {
			return false, err
		}
	}

	if err := t.writeNode(n); err != nil {
		return false, err
	}

	if nodeID == t.root {
		if len(n.Keys) == 0 && len(n.Children) > 0 {
			return false, t.collapseRoot(nodeID, n.Children[0])
		}
		return false, nil
	}
	return n.Size() < n.MinSize(), nil
}

func (t *Tree) collapseRoot(oldRootID, newRootID page.ID) error {
	newRoot, err := t.fetchNode(newRootID)
	if err != nil {
		return err
	}
	newRoot.ParentID = page.Invalid
	if err := t.writeNode(newRoot); err != nil {
		return err
	}
	t.root = newRootID
	if err := t.saveRoot(); err != nil {
		return err
	}
	return t.pool.Delete(oldRootID)
}

// borrowFromLeft moves one entry across the child/left boundary and
// updates the separator key in n (the shared parent).
func (t *Tree) borrowFromLeft(n, child, left *Node, i int) error {
	if child.IsLeaf() {
		lastKey := left.Keys[len(left.Keys)-1]
		lastVal := left.Values[len(left.Values)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.Values = left.Values[:len(left.Values)-1]

		child.Keys = insertAt(child.Keys, 0, lastKey)
		child.Values = insertAt(child.Values, 0, lastVal)
		n.Keys[i-1] = child.Keys[0]
	} else {
		sep := n.Keys[i-1]
		lastKey := left.Keys[len(left.Keys)-1]
		lastChild := left.Children[len(left.Children)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.Children = left.Children[:len(left.Children)-1]

		child.Keys = insertAt(child.Keys, 0, sep)
		child.Children = insertAt(child.Children, 0, lastChild)

		moved, err := t.fetchNode(lastChild)
		if err != nil {
			return err
		}
		moved.ParentID = child.PageID
		if err := t.writeNode(moved); err != nil {
			return err
		}
		n.Keys[i-1] = lastKey
	}
	if err := t.writeNode(left); err != nil {
		return err
	}
	return t.writeNode(child)
}

// borrowFromRight is the mirror image of borrowFromLeft.
func (t *Tree) borrowFromRight(n, child, right *Node, i int) error {
	if child.IsLeaf() {
		firstKey := right.Keys[0]
		firstVal := right.Values[0]
		right.Keys = right.Keys[1:]
		right.Values = right.Values[1:]

		child.Keys = append(child.Keys, firstKey)
		child.Values = append(child.Values, firstVal)
		n.Keys[i] = right.Keys[0]
	} else {
		sep := n.Keys[i]
		firstKey := right.Keys[0]
		firstChild := right.Children[0]
		right.Keys = right.Keys[1:]
		right.Children = right.Children[1:]

		child.Keys = append(child.Keys, sep)
		child.Children = append(child.Children, firstChild)

		moved, err := t.fetchNode(firstChild)
		if err != nil {
			return err
		}
		moved.ParentID = child.PageID
		if err := t.writeNode(moved); err != nil {
			return err
		}
		n.Keys[i] = firstKey
	}
	if err := t.writeNode(right); err != nil {
		return err
	}
	return t.writeNode(child)
}

// coalesceLeft merges child into its left sibling and removes child's
// slot (and the separator before it) from n.
func (t *Tree) coalesceLeft(n, child, left *Node, i int) error {
	if child.IsLeaf() {
		left.Keys = append(left.Keys, child.Keys...)
		left.Values = append(left.Values, child.Values...)
		left.NextPageID = child.NextPageID
	} else {
		sep := n.Keys[i-1]
		left.Keys = append(left.Keys, sep)
		left.Keys = append(left.Keys, child.Keys...)
		left.Children = append(left.Children, child.Children...)
		for _, cid := range child.Children {
			moved, err := t.fetchNode(cid)
			if err != nil {
				return err
			}
			moved.ParentID = left.PageID
			if err := t.writeNode(moved); err != nil {
				return err
			}
		}
	}
	n.Keys = removeAt(n.Keys, i-1)
	n.Children = removeAt(n.Children, i)
	if err := t.writeNode(left); err != nil {
		return err
	}
	return t.pool.Delete(child.PageID)
}

// coalesceRight merges right into child and removes right's slot (and
// its separator) from n.
func (t *Tree) coalesceRight(n, child, right *Node, i int) error {
	if child.IsLeaf() {
		child.Keys = append(child.Keys, right.Keys...)
		child.Values = append(child.Values, right.Values...)
		child.NextPageID = right.NextPageID
	} else {
		sep := n.Keys[i]
		child.Keys = append(child.Keys, sep)
		child.Keys = append(child.Keys, right.Keys...)
		child.Children = append(child.Children, right.Children...)
		for _, cid := range right.Children {
			moved, err := t.fetchNode(cid)
			if err != nil {
				return err
			}
			moved.ParentID = child.PageID
			if err := t.writeNode(moved); err != nil {
				return err
			}
		}
	}
	n.Keys = removeAt(n.Keys, i)
	n.Children = removeAt(n.Children, i+1)
	if err := t.writeNode(child); err != nil {
		return err
	}
	return t.pool.Delete(right.PageID)
}
