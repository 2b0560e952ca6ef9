package bplustree

// childIndex returns the child slot to descend into for key: the
// first i such that cmp(key, n.Keys[i]) < 0, or len(n.Children)-1 if
// key is >= every separator.
func childIndex(n *Node, key []byte, cmp Comparator) int {
	i := 0
	for i < len(n.Keys) && cmp(key, n.Keys[i]) >= 0 {
		i++
	}
	return i
}

// findLeaf descends from the root to the leaf that would contain key.
func (t *Tree) findLeaf(key []byte) (*Node, error) {
	id := t.root
	for {
		n, err := t.fetchNode(id)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			return n, nil
		}
		id = n.Children[childIndex(n, key, t.cmp)]
	}
}

// leafSearch finds key's index within a leaf's sorted Keys.
func leafSearch(leaf *Node, key []byte, cmp Comparator) (idx int, found bool) {
	lo, hi := 0, len(leaf.Keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(leaf.Keys[mid], key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(leaf.Keys) && cmp(leaf.Keys[lo], key) == 0 {
		return lo, true
	}
	return lo, false
}

// lowerBound returns the first index whose key is >= target.
func lowerBound(keys [][]byte, target []byte, cmp Comparator) int {
	lo, hi := 0, len(keys)
	for lo < hi {
		mid := lo + (hi-lo)/2
		if cmp(keys[mid], target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func insertAt[T any](slice []T, i int, v T) []T {
	slice = append(slice, v)
	copy(slice[i+1:], slice[i:])
	slice[i] = v
	return slice
}

func removeAt[T any](slice []T, i int) []T {
	return append(slice[:i], slice[i+1:]...)
}
