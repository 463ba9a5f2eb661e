package uniquestore

import (
	"bytes"
	"sync"
	"time"

	"github.com/hupe1980/uniquestore/btree"
	"github.com/hupe1980/uniquestore/bytestore"
	"github.com/hupe1980/uniquestore/core"
	"github.com/hupe1980/uniquestore/generation"
)

// Store ties the dictionary, the value arena, and the generation handler
// into a deduplicating byte-value store.
//
// Writer-side methods (Add, Release, Build, Commit, ReclaimMemory,
// CompactWorstBuffers, Maintain) are serialized by an internal mutex so the
// owning writer and a background Maintainer can share the single-writer
// role. Reader-side methods (Get, Lookup, Guard, FrozenRoot, ForEachValue,
// NumUniques, MemoryUsage) are lock-free; readers must hold a Guard while
// traversing a frozen root or dereferencing refs obtained from one.
type Store struct {
	mu      sync.Mutex
	dict    *Dictionary
	values  *bytestore.Store
	gens    *generation.Handler
	opts    options
	logger  *Logger
	metrics MetricsCollector
}

// New creates an empty store.
func New(opts ...Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	var storeOpts []bytestore.Option
	if o.entriesPerBuffer > 0 {
		storeOpts = append(storeOpts, bytestore.WithEntriesPerBuffer(o.entriesPerBuffer))
	}
	if o.compressMin > 0 {
		storeOpts = append(storeOpts, bytestore.WithCompression(o.compressMin))
	}
	return &Store{
		dict:    NewDictionary(),
		values:  bytestore.New(storeOpts...),
		gens:    generation.NewHandler(),
		opts:    o,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// valueComparator orders refs by the byte value they resolve to. The
// invalid ref stands for the probe value.
type valueComparator struct {
	values *bytestore.Store
	probe  []byte
}

func (c valueComparator) Less(a, b core.EntryRef) bool {
	return bytes.Compare(c.resolve(a), c.resolve(b)) < 0
}

func (c valueComparator) resolve(r core.EntryRef) []byte {
	if !r.Valid() {
		return c.probe
	}
	return c.values.Get(r)
}

// Add interns value. If an equal value already exists its refcount is
// bumped and its ref returned with inserted == false; otherwise the value
// is materialized in the arena and inserted into the dictionary.
func (s *Store) Add(value []byte) (ref core.EntryRef, inserted bool, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordAdd(time.Since(start), inserted, err)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.dict.Add(valueComparator{values: s.values, probe: value}, func() (core.EntryRef, error) {
		return s.values.Add(value)
	})
	if err != nil {
		return core.InvalidEntryRef, false, err
	}
	if !res.Inserted {
		s.values.IncRef(res.Ref)
	}
	return res.Ref, res.Inserted, nil
}

// Find returns the ref of an equal value in the writer-visible dictionary,
// or the invalid ref. Writer-side; readers use Lookup.
func (s *Store) Find(value []byte) core.EntryRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dict.Find(valueComparator{values: s.values, probe: value})
}

// Lookup resolves a value in the latest frozen snapshot without locks.
// Hold a Guard across the call and any use of the returned ref.
func (s *Store) Lookup(value []byte) core.EntryRef {
	return s.dict.FrozenView().Find(valueComparator{values: s.values, probe: value})
}

// Get resolves a ref to its value without locks. The returned slice must
// not be modified.
func (s *Store) Get(ref core.EntryRef) []byte {
	return s.values.Get(ref)
}

// RefCount returns the refcount of the value behind ref. Writer-side.
func (s *Store) RefCount(ref core.EntryRef) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.RefCount(ref)
}

// Release drops one reference to the value behind ref. When the last
// reference goes, the entry leaves the dictionary and its arena slot is
// marked dead for deferred reclamation; removed reports that case.
func (s *Store) Release(ref core.EntryRef) (removed bool) {
	start := time.Now()
	defer func() {
		s.metrics.RecordRelease(time.Since(start), removed)
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values.Release(ref) > 0 {
		return false
	}
	s.dict.Remove(valueComparator{values: s.values}, ref)
	s.values.MarkDead(ref)
	return true
}

// Build replaces the dictionary wholesale from refs and parallel refcounts,
// as produced by a saved snapshot. The refs must already exist in the value
// store with matching refcounts and be in ascending value order; index 0 is
// a sentinel and skipped. Zero-count refs are marked dead instead of
// entering the dictionary.
func (s *Store) Build(refs []core.EntryRef, refCounts []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dict.Build(refs, refCounts, func(ref core.EntryRef) {
		s.values.MarkDead(ref)
	})
}

// Commit publishes all writes since the last call as a frozen snapshot,
// tags everything retired in the closing epoch with its generation, and
// opens the next epoch. Readers obtaining a Guard or root after Commit
// returns observe every prior write.
func (s *Store) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()
}

func (s *Store) commitLocked() {
	s.dict.Freeze()
	gen := s.gens.Current()
	s.dict.TransferHoldLists(gen)
	s.values.TransferHoldLists(gen)
	s.gens.Increment()
}

// ReclaimMemory frees everything retired before the oldest generation any
// active reader still observes.
func (s *Store) ReclaimMemory() {
	start := time.Now()
	defer func() {
		s.metrics.RecordReclaim(time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	firstUsed := s.gens.FirstUsed()
	s.dict.TrimHoldLists(firstUsed)
	s.values.TrimHoldLists(firstUsed)
	s.logger.LogReclaim(firstUsed, time.Since(start))
}

// CompactWorstBuffers relocates the live values of every buffer whose dead
// ratio exceeds the configured threshold and rewrites the dictionary's refs
// accordingly. The emptied buffers retire at the next Commit and are freed
// by a later ReclaimMemory. Returns the number of buffers retired.
func (s *Store) CompactWorstBuffers() int {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	cands := s.values.CompactionCandidates(s.opts.compactionThreshold)
	if len(cands) == 0 {
		return 0
	}
	c := s.values.StartCompaction(cands)
	moved := 0
	s.dict.MoveEntries(compactableFunc(func(ref core.EntryRef) core.EntryRef {
		newRef := c.Move(ref)
		if newRef != ref {
			moved++
		}
		return newRef
	}))
	c.Finish()

	s.metrics.RecordCompaction(len(cands), moved, time.Since(start))
	s.logger.LogCompaction(len(cands), moved, time.Since(start))
	return len(cands)
}

// compactableFunc adapts a function to the core.Compactable contract.
type compactableFunc func(core.EntryRef) core.EntryRef

func (f compactableFunc) Move(ref core.EntryRef) core.EntryRef { return f(ref) }

// Maintain runs one maintenance round: compact the worst buffers, publish a
// snapshot, and reclaim whatever no reader can still observe.
func (s *Store) Maintain() {
	s.CompactWorstBuffers()
	s.Commit()
	s.ReclaimMemory()
}

// Guard pins the current generation for a reader. Release it when done
// traversing.
func (s *Store) Guard() *generation.Guard {
	return s.gens.Guard()
}

// FrozenRoot returns the root of the latest published snapshot.
func (s *Store) FrozenRoot() btree.Root {
	return s.dict.FrozenRoot()
}

// ForEachValue visits every (ref, value) of the snapshot behind root in
// ascending value order. Safe for readers holding a Guard taken before the
// root's nodes could have been trimmed.
func (s *Store) ForEachValue(root btree.Root, fn func(core.EntryRef, []byte)) {
	btree.ForEachKey(root, func(ref core.EntryRef) {
		fn(ref, s.values.Get(ref))
	})
}

// NumUniques returns the unique value count of the latest frozen snapshot.
func (s *Store) NumUniques() uint32 {
	return s.dict.NumUniques()
}

// MemoryUsage reports the combined dictionary and arena footprint. Safe for
// concurrent readers.
func (s *Store) MemoryUsage() core.MemoryUsage {
	u := s.dict.MemoryUsage()
	u.Merge(s.values.MemoryUsage())
	return u
}
