package btree

import (
	"github.com/hupe1980/uniquestore/core"
)

// Builder assembles a tree from entries supplied in ascending comparator
// order, skipping the per-entry lower-bound work of Insert. Intended for
// bulk reload of an already-deduplicated key set.
type Builder struct {
	tree *Tree
	keys []core.EntryRef
}

// NewBuilder returns a builder whose result can be assigned to t.
func (t *Tree) NewBuilder() *Builder {
	return &Builder{tree: t}
}

// Insert appends ref. Callers must supply refs in ascending order under the
// comparator the tree will later be probed with.
func (b *Builder) Insert(ref core.EntryRef) {
	b.keys = append(b.keys, ref)
}

// Assign replaces the tree's contents with the builder's entries. The
// previous tree retires wholesale onto the hold list, so readers of earlier
// frozen views stay unaffected until trimmed.
func (t *Tree) Assign(b *Builder) {
	if b.tree != t {
		panic("btree: builder assigned to a foreign tree")
	}
	if t.root != nil {
		t.alloc.retireTree(t.root)
	}
	t.root = t.assemble(b.keys)
	t.size = uint32(len(b.keys))
	b.keys = nil
}

// assemble builds leaves left to right and stacks internal levels on top
// until a single root remains.
func (t *Tree) assemble(keys []core.EntryRef) *node {
	if len(keys) == 0 {
		return nil
	}

	var level []*node
	for start := 0; start < len(keys); start += maxKeys {
		end := min(start+maxKeys, len(keys))
		n := t.alloc.alloc(true)
		copy(n.keys[:], keys[start:end])
		n.count = end - start
		level = append(level, n)
	}

	for len(level) > 1 {
		var next []*node
		for start := 0; start < len(level); start += maxKeys {
			end := min(start+maxKeys, len(level))
			n := t.alloc.alloc(false)
			for i, c := range level[start:end] {
				n.keys[i] = c.maxKey()
				n.children[i] = c
			}
			n.count = end - start
			next = append(next, n)
		}
		level = next
	}
	return level[0]
}
