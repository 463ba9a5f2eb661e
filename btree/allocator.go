package btree

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/uniquestore/core"
)

// nodeBytes approximates the heap footprint of a single node.
var nodeBytes = uint64(unsafe.Sizeof(node{}))

// allocator owns the tree's node pool and the deferred-reclamation state.
// All methods are writer-side only; the atomic counters exist so that
// readers may sample MemoryUsage without synchronization.
type allocator struct {
	freeList []*node

	// unfrozen tracks nodes written since the last Freeze. Freeze marks
	// them immutable in one sweep.
	unfrozen []*node

	// pending holds nodes retired by copy-on-write updates since the last
	// TransferHoldLists call. They carry no generation tag yet.
	pending []*node

	// holdLists carries retired nodes tagged with the generation at which
	// they became unreachable from the writer-visible tree. Ascending by
	// generation.
	holdLists []holdList

	totalNodes atomic.Uint64
	usedNodes  atomic.Uint64
	holdNodes  atomic.Uint64
	freeNodes  atomic.Uint64
}

type holdList struct {
	gen   core.Generation
	nodes []*node
}

func newAllocator() *allocator {
	return &allocator{}
}

// alloc returns a writable node, reusing the freelist when possible.
func (a *allocator) alloc(leaf bool) *node {
	var n *node
	if len(a.freeList) > 0 {
		n = a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		a.freeNodes.Add(^uint64(0))
		n.reset(leaf)
	} else {
		n = &node{leaf: leaf}
		a.totalNodes.Add(1)
	}
	a.usedNodes.Add(1)
	a.unfrozen = append(a.unfrozen, n)
	return n
}

// clone returns a writable copy of n. The copy shares n's children; the
// original stays untouched for readers.
func (a *allocator) clone(n *node) *node {
	c := a.alloc(n.leaf)
	c.keys = n.keys
	c.children = n.children
	c.count = n.count
	return c
}

// retire removes n from the writer-visible tree. Frozen nodes may still be
// observed by readers and go onto the pending hold list; nodes that were
// never published are recycled immediately.
func (a *allocator) retire(n *node) {
	a.usedNodes.Add(^uint64(0))
	if n.frozen {
		a.pending = append(a.pending, n)
		a.holdNodes.Add(1)
		return
	}
	a.free(n)
}

// retireTree retires every node of the subtree rooted at n. Used when a
// bulk build replaces the tree wholesale.
func (a *allocator) retireTree(n *node) {
	if !n.leaf {
		for i := 0; i < n.count; i++ {
			a.retireTree(n.children[i])
		}
	}
	a.retire(n)
}

func (a *allocator) free(n *node) {
	a.freeList = append(a.freeList, n)
	a.freeNodes.Add(1)
}

// freeze marks every node written since the previous call immutable.
func (a *allocator) freeze() {
	for _, n := range a.unfrozen {
		n.frozen = true
	}
	a.unfrozen = a.unfrozen[:0]
}

// transferHoldLists tags the pending retired nodes with gen and queues them
// for reclamation. Generations must be supplied in non-decreasing order.
func (a *allocator) transferHoldLists(gen core.Generation) {
	if len(a.pending) == 0 {
		return
	}
	if n := len(a.holdLists); n > 0 {
		last := &a.holdLists[n-1]
		if last.gen > gen {
			panic(fmt.Sprintf("btree: hold list generation moved backwards: %d < %d", gen, last.gen))
		}
		if last.gen == gen {
			last.nodes = append(last.nodes, a.pending...)
			a.pending = nil
			return
		}
	}
	a.holdLists = append(a.holdLists, holdList{gen: gen, nodes: a.pending})
	a.pending = nil
}

// trimHoldLists recycles every hold list tagged with a generation strictly
// below firstUsed. Nodes tagged at or above firstUsed may still be observed
// by an active reader and stay put.
func (a *allocator) trimHoldLists(firstUsed core.Generation) {
	i := 0
	for i < len(a.holdLists) && a.holdLists[i].gen < firstUsed {
		for _, n := range a.holdLists[i].nodes {
			n.frozen = false
			a.free(n)
		}
		a.holdNodes.Add(^uint64(len(a.holdLists[i].nodes) - 1))
		i++
	}
	if i > 0 {
		a.holdLists = append(a.holdLists[:0], a.holdLists[i:]...)
	}
}

// memoryUsage is safe to call from reader threads.
func (a *allocator) memoryUsage() core.MemoryUsage {
	return core.MemoryUsage{
		AllocatedBytes: a.totalNodes.Load() * nodeBytes,
		UsedBytes:      a.usedNodes.Load() * nodeBytes,
		DeadBytes:      a.freeNodes.Load() * nodeBytes,
		HoldBytes:      a.holdNodes.Load() * nodeBytes,
	}
}
