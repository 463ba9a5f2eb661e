package btree

import (
	"sync/atomic"

	"github.com/hupe1980/uniquestore/core"
)

// Tree is the copy-on-write ordered index. All mutating methods and
// LowerBound belong to the single writer; readers interact only with
// FrozenView, ForEachKey, and MemoryUsage.
type Tree struct {
	alloc *allocator
	root  *node
	size  uint32

	frozen atomic.Pointer[FrozenView]
}

// New creates an empty tree.
func New() *Tree {
	t := &Tree{alloc: newAllocator()}
	t.frozen.Store(&FrozenView{})
	return t
}

// Size returns the number of entries in the writer-visible tree.
func (t *Tree) Size() uint32 { return t.size }

// LowerBound positions an iterator on the first entry that does not order
// before key under cmp, or at the end position if no such entry exists.
// Pass the invalid ref as key to probe for the comparator's carried value.
func (t *Tree) LowerBound(key core.EntryRef, cmp core.EntryComparator) *Iterator {
	it := &Iterator{tree: t}
	n := t.root
	if n == nil {
		return it
	}
	for {
		i := n.lowerBound(key, cmp)
		if n.leaf {
			it.path = append(it.path, pathElem{n: n, idx: i})
			return it
		}
		if i == n.count {
			// key orders after the subtree max; stay on the rightmost
			// spine so the leaf position degenerates to the end.
			i = n.count - 1
		}
		it.path = append(it.path, pathElem{n: n, idx: i})
		n = n.children[i]
	}
}

// Begin positions an iterator on the smallest entry.
func (t *Tree) Begin() *Iterator {
	it := &Iterator{tree: t}
	if t.root != nil {
		it.descendFirst(t.root)
	}
	return it
}

// Insert adds ref at the position located by a LowerBound iterator. The
// iterator must stem from the current tree state and must not be positioned
// on an entry comparing equal to ref.
func (t *Tree) Insert(it *Iterator, ref core.EntryRef) {
	if len(it.path) == 0 {
		r := t.alloc.alloc(true)
		r.keys[0] = ref
		r.count = 1
		t.root = r
		t.size++
		return
	}
	t.Thaw(it)
	l := len(it.path) - 1
	t.insertAt(it, l, it.path[l].idx, ref, nil)
	t.size++
}

// insertAt inserts key (and, for internal levels, its subtree child) at slot
// idx of the node at path level l, splitting upwards as needed. The node at
// level l must be thawed.
func (t *Tree) insertAt(it *Iterator, l, idx int, key core.EntryRef, child *node) {
	n := it.path[l].n
	if n.count < maxKeys {
		copy(n.keys[idx+1:n.count+1], n.keys[idx:n.count])
		n.keys[idx] = key
		if !n.leaf {
			copy(n.children[idx+1:n.count+1], n.children[idx:n.count])
			n.children[idx] = child
		}
		n.count++
		if idx == n.count-1 {
			t.propagateMax(it, l)
		}
		return
	}

	// Split: distribute the maxKeys existing slots plus the new one across
	// n and a fresh right sibling.
	var tmpK [maxKeys + 1]core.EntryRef
	var tmpC [maxKeys + 1]*node
	copy(tmpK[:idx], n.keys[:idx])
	tmpK[idx] = key
	copy(tmpK[idx+1:], n.keys[idx:n.count])
	if !n.leaf {
		copy(tmpC[:idx], n.children[:idx])
		tmpC[idx] = child
		copy(tmpC[idx+1:], n.children[idx:n.count])
	}

	right := t.alloc.alloc(n.leaf)
	total := maxKeys + 1
	leftCount := total / 2
	rightCount := total - leftCount

	copy(n.keys[:leftCount], tmpK[:leftCount])
	copy(right.keys[:rightCount], tmpK[leftCount:total])
	if !n.leaf {
		copy(n.children[:leftCount], tmpC[:leftCount])
		copy(right.children[:rightCount], tmpC[leftCount:total])
	}
	for i := leftCount; i < maxKeys; i++ {
		n.keys[i] = core.InvalidEntryRef
		n.children[i] = nil
	}
	n.count = leftCount
	right.count = rightCount

	if l == 0 {
		nr := t.alloc.alloc(false)
		nr.keys[0] = n.maxKey()
		nr.keys[1] = right.maxKey()
		nr.children[0] = n
		nr.children[1] = right
		nr.count = 2
		t.root = nr
		return
	}

	p := it.path[l-1]
	p.n.keys[p.idx] = n.maxKey()
	t.insertAt(it, l-1, p.idx+1, right.maxKey(), right)
}

// Remove erases the entry the iterator is positioned on.
func (t *Tree) Remove(it *Iterator) {
	t.Thaw(it)
	t.removeAt(it, len(it.path)-1)
	t.size--

	// Collapse trivial roots so lookups stay shallow.
	for t.root != nil && !t.root.leaf && t.root.count == 1 {
		old := t.root
		t.root = old.children[0]
		t.alloc.retire(old)
	}
	if t.root != nil && t.root.leaf && t.root.count == 0 {
		t.alloc.retire(t.root)
		t.root = nil
	}
}

func (t *Tree) removeAt(it *Iterator, l int) {
	n := it.path[l].n
	idx := it.path[l].idx
	copy(n.keys[idx:n.count-1], n.keys[idx+1:n.count])
	if !n.leaf {
		copy(n.children[idx:n.count-1], n.children[idx+1:n.count])
	}
	n.count--
	n.keys[n.count] = core.InvalidEntryRef
	if !n.leaf {
		n.children[n.count] = nil
	}

	if n.count == 0 {
		if l == 0 {
			return
		}
		t.alloc.retire(n)
		t.removeAt(it, l-1)
		return
	}
	if idx == n.count {
		t.propagateMax(it, l)
	}
}

// Thaw duplicates every frozen node on the iterator's path so the writer can
// mutate it. Replaced nodes retire onto the hold list; nodes reachable from
// a published frozen root are never written in place.
func (t *Tree) Thaw(it *Iterator) {
	for l := 0; l < len(it.path); l++ {
		n := it.path[l].n
		if !n.frozen {
			continue
		}
		c := t.alloc.clone(n)
		t.alloc.retire(n)
		it.path[l].n = c
		if l == 0 {
			t.root = c
		} else {
			p := it.path[l-1]
			p.n.children[p.idx] = c
		}
	}
}

// propagateMax copies the new max key of the node at path level l into its
// ancestors' separator slots, stopping at the first ancestor where the node
// is not the rightmost child.
func (t *Tree) propagateMax(it *Iterator, l int) {
	for ; l > 0; l-- {
		n := it.path[l].n
		p := it.path[l-1]
		p.n.keys[p.idx] = n.maxKey()
		if p.idx != p.n.count-1 {
			return
		}
	}
}

// Freeze finalizes all pending writes into an immutable view and publishes
// it. After Freeze returns, readers obtaining the new FrozenView observe
// every prior write.
func (t *Tree) Freeze() {
	t.alloc.freeze()
	t.frozen.Store(&FrozenView{root: Root{n: t.root}, size: t.size})
}

// FrozenView returns the most recently published immutable view. Safe for
// concurrent readers.
func (t *Tree) FrozenView() *FrozenView {
	return t.frozen.Load()
}

// TransferHoldLists tags nodes retired since the previous call with gen.
func (t *Tree) TransferHoldLists(gen core.Generation) {
	t.alloc.transferHoldLists(gen)
}

// TrimHoldLists recycles retired nodes tagged with a generation strictly
// below firstUsed.
func (t *Tree) TrimHoldLists(firstUsed core.Generation) {
	t.alloc.trimHoldLists(firstUsed)
}

// MemoryUsage reports the node pool footprint. Safe for concurrent readers.
func (t *Tree) MemoryUsage() core.MemoryUsage {
	return t.alloc.memoryUsage()
}
