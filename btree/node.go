package btree

import (
	"github.com/hupe1980/uniquestore/core"
)

// maxKeys is the number of key slots per node. Internal nodes carry one
// child per key; keys[i] is a copy of the largest key in children[i].
const maxKeys = 16

type node struct {
	keys     [maxKeys]core.EntryRef
	children [maxKeys]*node
	count    int
	leaf     bool

	// frozen marks the node as reachable from a published FrozenView.
	// Frozen nodes are immutable; the writer must clone before modifying.
	frozen bool
}

// maxKey returns the largest key in the subtree rooted at n.
func (n *node) maxKey() core.EntryRef {
	return n.keys[n.count-1]
}

// lowerBound returns the first slot whose key does not order before key
// under cmp, or count if no such slot exists. Nodes are small, so a linear
// scan beats binary search here.
func (n *node) lowerBound(key core.EntryRef, cmp core.EntryComparator) int {
	i := 0
	for i < n.count && cmp.Less(n.keys[i], key) {
		i++
	}
	return i
}

func (n *node) reset(leaf bool) {
	*n = node{leaf: leaf}
}
