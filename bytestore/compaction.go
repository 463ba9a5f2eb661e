package bytestore

import (
	"github.com/hupe1980/uniquestore/core"
)

// CompactionCandidates returns the ids of buffers whose dead-entry ratio is
// at least threshold. The active buffer and buffers already on hold are
// never candidates.
func (s *Store) CompactionCandidates(threshold float64) []uint32 {
	var out []uint32
	for _, b := range *s.buffers.Load() {
		if b == nil || b == s.active || b.onHold {
			continue
		}
		used := uint64(b.used)
		if b.id == 0 {
			used-- // sentinel slot
		}
		if used == 0 {
			continue
		}
		if float64(b.dead.GetCardinality())/float64(used) >= threshold {
			out = append(out, b.id)
		}
	}
	return out
}

// DeadRatio returns the fraction of dead entries in the given buffer.
func (s *Store) DeadRatio(id uint32) float64 {
	bufs := *s.buffers.Load()
	b := bufs[id]
	if b == nil || b.used == 0 {
		return 0
	}
	return float64(b.dead.GetCardinality()) / float64(b.used)
}

// Compaction relocates the live values of a set of source buffers into the
// active buffer. It implements core.Compactable so a dictionary sweep can
// rewrite its refs while values move.
type Compaction struct {
	store   *Store
	sources map[uint32]bool
}

// StartCompaction begins compacting the given buffers. Drive the returned
// Compaction through the dictionary's MoveEntries, then call Finish to
// retire the emptied buffers onto the hold list.
func (s *Store) StartCompaction(bufferIDs []uint32) *Compaction {
	c := &Compaction{store: s, sources: make(map[uint32]bool, len(bufferIDs))}
	for _, id := range bufferIDs {
		if bufs := *s.buffers.Load(); bufs[id] == s.active {
			panic("bytestore: cannot compact the active buffer")
		}
		c.sources[id] = true
	}
	return c
}

// Move relocates the value behind ref if it lives in a source buffer,
// preserving its refcount and stored representation. Refs outside the
// source set are returned unchanged.
func (c *Compaction) Move(ref core.EntryRef) core.EntryRef {
	if !c.sources[ref.BufferID()] {
		return ref
	}
	src := c.store.entryAt(ref)
	newRef, err := c.store.append(entry{
		data:       src.data,
		size:       src.size,
		refCount:   src.refCount,
		compressed: src.compressed,
	})
	if err != nil {
		panic("bytestore: compaction allocation failed: " + err.Error())
	}
	return newRef
}

// Finish retires the source buffers. Their memory moves onto the hold list
// and is freed by TrimHoldLists once no reader can resolve refs into them.
func (c *Compaction) Finish() {
	bufs := *c.store.buffers.Load()
	for id := range c.sources {
		b := bufs[id]
		if b == nil || b.onHold {
			continue
		}
		b.onHold = true
		c.store.usedBytes.Add(^(b.liveBytes - 1))
		c.store.deadBytes.Add(^(b.deadBytes - 1))
		c.store.holdBytes.Add(b.liveBytes + b.deadBytes)
		c.store.pendingHold = append(c.store.pendingHold, id)
	}
	c.sources = nil
}
