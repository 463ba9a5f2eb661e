// Package btree implements the ordered index backing the unique value
// dictionary: a copy-on-write B-tree keyed by entry refs with a unit payload.
//
// The tree follows a single-writer, multi-reader discipline. The writer
// mutates nodes created since the last Freeze in place; any node that has
// been frozen is never written again. Instead the writer duplicates the
// frozen path ("thaw"), and the replaced nodes retire through generation
// tagged hold lists. A retired node is returned to the allocator's freelist
// only once TrimHoldLists proves that no reader can still be traversing it.
//
// Readers obtain a Root via a FrozenView published by Freeze and traverse it
// without locks; nodes reachable from any published root are immutable until
// trimmed.
package btree
