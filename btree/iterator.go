package btree

import (
	"github.com/hupe1980/uniquestore/core"
)

type pathElem struct {
	n   *node
	idx int
}

// Iterator is a writer-side cursor over the live tree. It records the full
// descent path so that positional inserts, removes, and in-place key
// rewrites can reuse the lower-bound lookup that produced it.
//
// Iterators are invalidated by any structural mutation other than the one
// they are passed to.
type Iterator struct {
	tree *Tree
	path []pathElem
}

// Valid reports whether the iterator is positioned on an entry.
func (it *Iterator) Valid() bool {
	if len(it.path) == 0 {
		return false
	}
	e := it.path[len(it.path)-1]
	return e.n.leaf && e.idx < e.n.count
}

// Key returns the entry ref at the current position.
func (it *Iterator) Key() core.EntryRef {
	e := it.path[len(it.path)-1]
	return e.n.keys[e.idx]
}

// Next advances to the next entry in ascending order.
func (it *Iterator) Next() {
	if len(it.path) == 0 {
		return
	}
	l := len(it.path) - 1
	it.path[l].idx++
	if it.path[l].idx < it.path[l].n.count {
		return
	}
	for l > 0 {
		l--
		it.path = it.path[:l+1]
		it.path[l].idx++
		if it.path[l].idx < it.path[l].n.count {
			it.descendFirst(it.path[l].n.children[it.path[l].idx])
			return
		}
	}
	// Past the last entry; the truncated path marks the end position.
}

func (it *Iterator) descendFirst(n *node) {
	for {
		it.path = append(it.path, pathElem{n: n, idx: 0})
		if n.leaf {
			return
		}
		n = n.children[0]
	}
}

// WriteKey rewrites the entry ref at the current position without changing
// its ordinal position. The path must have been thawed first, and the new
// ref must order identically to the old one under the tree's comparators.
// Separator copies of the old key in ancestor nodes are rewritten with it.
func (it *Iterator) WriteKey(ref core.EntryRef) {
	l := len(it.path) - 1
	e := &it.path[l]
	e.n.keys[e.idx] = ref
	if e.idx == e.n.count-1 {
		it.tree.propagateMax(it, l)
	}
}
