package uniquestore

import (
	"fmt"

	"github.com/hupe1980/uniquestore/btree"
	"github.com/hupe1980/uniquestore/core"
)

// AddResult reports the outcome of a dictionary Add.
type AddResult struct {
	Ref      core.EntryRef
	Inserted bool
}

// Dictionary maps unique values to entry refs through an injected
// comparator. It owns only index structure; value storage and lifetime
// belong to the external arena the comparator resolves refs against.
//
// All methods except FrozenView, FrozenRoot, ForEachKey, NumUniques and
// MemoryUsage are writer-side: exactly one goroutine may call them, and
// they are not synchronized against each other. Readers traverse frozen
// roots without locks; the generation protocol (Freeze, TransferHoldLists,
// TrimHoldLists) is what keeps that safe.
type Dictionary struct {
	tree *btree.Tree
}

// NewDictionary creates an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{tree: btree.New()}
}

// Add returns the ref of the entry comparing equal to the probe carried by
// cmp. If no such entry exists, insertEntry materializes a new value in the
// arena and its ref is inserted at the located position. Duplicates never
// allocate: insertEntry runs only on a miss.
func (d *Dictionary) Add(cmp core.EntryComparator, insertEntry func() (core.EntryRef, error)) (AddResult, error) {
	it := d.tree.LowerBound(core.InvalidEntryRef, cmp)
	if it.Valid() && !cmp.Less(core.InvalidEntryRef, it.Key()) {
		return AddResult{Ref: it.Key(), Inserted: false}, nil
	}
	ref, err := insertEntry()
	if err != nil {
		return AddResult{}, err
	}
	d.tree.Insert(it, ref)
	return AddResult{Ref: ref, Inserted: true}, nil
}

// Find returns the ref of the entry comparing equal to the probe carried by
// cmp, or the invalid ref. Writer-side; concurrent readers resolve lookups
// through FrozenView instead.
func (d *Dictionary) Find(cmp core.EntryComparator) core.EntryRef {
	it := d.tree.LowerBound(core.InvalidEntryRef, cmp)
	if it.Valid() && !cmp.Less(core.InvalidEntryRef, it.Key()) {
		return it.Key()
	}
	return core.InvalidEntryRef
}

// Remove erases the entry for ref. The ref must currently be present at the
// position cmp locates; anything else means caller-side bookkeeping has
// corrupted and is a fatal defect. The value itself is untouched; releasing
// its arena slot is the caller's responsibility.
func (d *Dictionary) Remove(cmp core.EntryComparator, ref core.EntryRef) {
	if !ref.Valid() {
		panic("uniquestore: remove of invalid ref")
	}
	it := d.tree.LowerBound(ref, cmp)
	if !it.Valid() || it.Key() != ref {
		panic(fmt.Sprintf("uniquestore: remove of unknown ref %#x", ref.Ref()))
	}
	d.tree.Remove(it)
}

// MoveEntries walks every entry of the writer-visible view in ascending
// order, offering each ref to the compactable. Entries whose ref changes
// are rewritten in place after thawing their path, so readers of earlier
// frozen roots keep observing the old refs until the hold lists covering
// them are trimmed.
func (d *Dictionary) MoveEntries(c core.Compactable) {
	for it := d.tree.Begin(); it.Valid(); it.Next() {
		oldRef := it.Key()
		if newRef := c.Move(oldRef); newRef != oldRef {
			d.tree.Thaw(it)
			it.WriteKey(newRef)
		}
	}
}

// Build replaces the dictionary wholesale from a parallel pair of ref and
// refcount sequences, as produced by a saved or defragmented snapshot.
// Index 0 is a sentinel and skipped. Refs with a nonzero count enter the
// new index in input order, which must be ascending under the comparator
// the dictionary will later be probed with; refs with a zero count are
// handed to hold so their arena slots can be parked for deferred release.
func (d *Dictionary) Build(refs []core.EntryRef, refCounts []uint32, hold func(core.EntryRef)) {
	if len(refs) != len(refCounts) {
		panic(fmt.Sprintf("uniquestore: build input length mismatch: %d refs, %d refcounts", len(refs), len(refCounts)))
	}
	if len(refs) == 0 {
		panic("uniquestore: build with empty input")
	}
	b := d.tree.NewBuilder()
	for i := 1; i < len(refs); i++ {
		if refCounts[i] != 0 {
			b.Insert(refs[i])
		} else {
			hold(refs[i])
		}
	}
	d.tree.Assign(b)
}

// Freeze finalizes pending writes into an immutable snapshot. Must be
// called before any lock-free read traversal over the latest writes begins.
func (d *Dictionary) Freeze() {
	d.tree.Freeze()
}

// TransferHoldLists tags index nodes made unreachable by writes since the
// previous call with gen. Called by the generation handler once per
// completed write epoch.
func (d *Dictionary) TransferHoldLists(gen core.Generation) {
	d.tree.TransferHoldLists(gen)
}

// TrimHoldLists releases nodes tagged with a generation strictly below
// firstUsed, which the generation handler has proven no active reader can
// still observe.
func (d *Dictionary) TrimHoldLists(firstUsed core.Generation) {
	d.tree.TrimHoldLists(firstUsed)
}

// FrozenView returns the latest published snapshot. Safe for concurrent
// readers.
func (d *Dictionary) FrozenView() *btree.FrozenView {
	return d.tree.FrozenView()
}

// FrozenRoot returns the root of the latest published snapshot.
func (d *Dictionary) FrozenRoot() btree.Root {
	return d.tree.FrozenView().Root()
}

// ForEachKey visits every ref reachable from root in ascending order. The
// root may be an older snapshot's; its nodes stay alive until the hold
// lists covering them are trimmed.
func (d *Dictionary) ForEachKey(root btree.Root, fn func(core.EntryRef)) {
	btree.ForEachKey(root, fn)
}

// NumUniques returns the entry count of the latest frozen view.
func (d *Dictionary) NumUniques() uint32 {
	return d.tree.FrozenView().Size()
}

// MemoryUsage reports the index footprint. Safe for concurrent readers.
func (d *Dictionary) MemoryUsage() core.MemoryUsage {
	return d.tree.MemoryUsage()
}
