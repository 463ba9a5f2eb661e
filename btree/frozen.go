package btree

import (
	"github.com/hupe1980/uniquestore/core"
)

// Root is an opaque reference to a frozen tree root. Holding a Root keeps a
// traversable snapshot only for as long as the hold-list discipline is
// honored: the nodes behind it stay alive until TrimHoldLists is called with
// a generation proving no holder remains.
type Root struct {
	n *node
}

// Valid reports whether the root references a non-empty snapshot.
func (r Root) Valid() bool { return r.n != nil }

// FrozenView is an immutable snapshot of the tree published by Freeze.
// Multiple views may be alive concurrently; each is independently safe to
// traverse without locks.
type FrozenView struct {
	root Root
	size uint32
}

// Size returns the number of entries in the snapshot.
func (v *FrozenView) Size() uint32 { return v.size }

// Root returns the snapshot's root reference.
func (v *FrozenView) Root() Root { return v.root }

// Find returns the entry comparing equal to the probe carried by cmp, or the
// invalid ref. Safe for concurrent readers.
func (v *FrozenView) Find(cmp core.EntryComparator) core.EntryRef {
	n := v.root.n
	for n != nil {
		i := n.lowerBound(core.InvalidEntryRef, cmp)
		if n.leaf {
			if i < n.count && !cmp.Less(core.InvalidEntryRef, n.keys[i]) {
				return n.keys[i]
			}
			return core.InvalidEntryRef
		}
		if i == n.count {
			return core.InvalidEntryRef
		}
		n = n.children[i]
	}
	return core.InvalidEntryRef
}

// ForEach visits every entry of the snapshot in ascending order.
func (v *FrozenView) ForEach(fn func(core.EntryRef)) {
	ForEachKey(v.root, fn)
}

// ForEachKey visits every key reachable from root in ascending order. The
// root may stem from an older snapshot; its nodes are alive as long as the
// hold lists covering them have not been trimmed.
func ForEachKey(root Root, fn func(core.EntryRef)) {
	foreachKey(root.n, fn)
}

func foreachKey(n *node, fn func(core.EntryRef)) {
	if n == nil {
		return
	}
	if n.leaf {
		for i := 0; i < n.count; i++ {
			fn(n.keys[i])
		}
		return
	}
	for i := 0; i < n.count; i++ {
		foreachKey(n.children[i], fn)
	}
}
