package bytestore

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/klauspost/compress/s2"

	"github.com/hupe1980/uniquestore/core"
)

var (
	// ErrBufferLimitExceeded is returned when the store runs out of
	// addressable buffer ids.
	ErrBufferLimitExceeded = errors.New("bytestore: buffer limit exceeded")
	// ErrValueTooLarge is returned when a value cannot be represented.
	ErrValueTooLarge = errors.New("bytestore: value too large")
)

// entryOverhead approximates the fixed per-entry footprint used for memory
// accounting.
const entryOverhead = 40

// maxValueSize keeps entry sizes addressable in the accounting counters.
const maxValueSize = 1 << 30

type entry struct {
	data       []byte
	size       uint32 // uncompressed length
	refCount   uint32
	compressed bool
}

func (e *entry) bytes() uint64 {
	return uint64(len(e.data)) + entryOverhead
}

type buffer struct {
	id      uint32
	entries []entry
	used    uint32 // entries appended; writer-only

	// dead tracks offsets whose refcount dropped to zero. Their slots are
	// reclaimed only through compaction plus the hold-list protocol.
	dead      *roaring.Bitmap
	deadBytes uint64
	liveBytes uint64
	onHold    bool
}

// Option configures a Store.
type Option func(*Store)

// WithEntriesPerBuffer sets the entry capacity of each buffer. Values are
// clamped to the addressable offset range.
func WithEntriesPerBuffer(n uint32) Option {
	return func(s *Store) {
		if n > 0 && n <= core.OffsetSize {
			s.entriesPerBuffer = n
		}
	}
}

// WithCompression enables transparent s2 compression for values of at least
// minSize bytes. Compression is purely an in-memory space optimization;
// refs and lookups are unaffected.
func WithCompression(minSize int) Option {
	return func(s *Store) {
		s.compressMin = minSize
	}
}

// Store is the value arena. All methods except Get and MemoryUsage are
// writer-side and must not be called concurrently.
type Store struct {
	buffers          atomic.Pointer[[]*buffer]
	active           *buffer
	entriesPerBuffer uint32
	compressMin      int

	pendingHold []uint32
	holdLists   []bufferHold

	allocatedBytes atomic.Uint64
	usedBytes      atomic.Uint64
	deadBytes      atomic.Uint64
	holdBytes      atomic.Uint64
}

type bufferHold struct {
	gen core.Generation
	ids []uint32
}

// New creates a value store. Offset 0 of buffer 0 is reserved so that no
// valid value ever maps to the invalid ref.
func New(opts ...Option) *Store {
	s := &Store{
		entriesPerBuffer: 1 << 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	bufs := make([]*buffer, 0, 8)
	s.buffers.Store(&bufs)
	s.active = s.addBuffer()
	s.active.used = 1 // reserve the invalid sentinel slot
	return s
}

func (s *Store) addBuffer() *buffer {
	bufs := *s.buffers.Load()
	id := uint32(len(bufs))
	if id >= core.NumBuffers {
		return nil
	}
	b := &buffer{
		id:      id,
		entries: make([]entry, s.entriesPerBuffer),
		dead:    roaring.New(),
	}
	next := make([]*buffer, len(bufs)+1)
	copy(next, bufs)
	next[id] = b
	s.buffers.Store(&next)
	s.allocatedBytes.Add(uint64(s.entriesPerBuffer) * entryOverhead)
	return b
}

// Add appends a value with an initial refcount of one and returns its ref.
// The store does not deduplicate; that is the dictionary's job.
func (s *Store) Add(value []byte) (core.EntryRef, error) {
	if len(value) > maxValueSize {
		return core.InvalidEntryRef, fmt.Errorf("%w: %d bytes", ErrValueTooLarge, len(value))
	}
	data := append([]byte(nil), value...)
	compressed := false
	if s.compressMin > 0 && len(value) >= s.compressMin {
		if enc := s2.Encode(nil, value); len(enc) < len(value) {
			data = enc
			compressed = true
		}
	}
	return s.append(entry{
		data:       data,
		size:       uint32(len(value)),
		refCount:   1,
		compressed: compressed,
	})
}

func (s *Store) append(e entry) (core.EntryRef, error) {
	b := s.active
	if b.used == s.entriesPerBuffer {
		b = s.addBuffer()
		if b == nil {
			return core.InvalidEntryRef, ErrBufferLimitExceeded
		}
		s.active = b
	}
	offset := b.used
	b.entries[offset] = e
	b.used++
	b.liveBytes += e.bytes()
	s.usedBytes.Add(e.bytes())
	s.allocatedBytes.Add(uint64(len(e.data)))
	return core.MakeEntryRef(b.id, offset), nil
}

func (s *Store) entryAt(ref core.EntryRef) *entry {
	bufs := *s.buffers.Load()
	id := ref.BufferID()
	if id >= uint32(len(bufs)) || bufs[id] == nil {
		panic(fmt.Sprintf("bytestore: stale ref %#x", ref.Ref()))
	}
	return &bufs[id].entries[ref.Offset()]
}

// Get resolves a ref to its value. Safe for concurrent readers holding a
// ref published through a frozen dictionary root; the returned slice must
// not be modified.
func (s *Store) Get(ref core.EntryRef) []byte {
	e := s.entryAt(ref)
	if e.compressed {
		dec, err := s2.Decode(nil, e.data)
		if err != nil {
			panic(fmt.Sprintf("bytestore: corrupt compressed entry %#x: %v", ref.Ref(), err))
		}
		return dec
	}
	return e.data
}

// Size returns the uncompressed length of the value behind ref.
func (s *Store) Size(ref core.EntryRef) uint32 {
	return s.entryAt(ref).size
}

// IncRef bumps the refcount of an existing entry.
func (s *Store) IncRef(ref core.EntryRef) {
	s.entryAt(ref).refCount++
}

// RefCount returns the current refcount of the entry.
func (s *Store) RefCount(ref core.EntryRef) uint32 {
	return s.entryAt(ref).refCount
}

// Release decrements the refcount and returns the remaining count. The
// caller owns the follow-up: removing the value from the dictionary and
// marking its slot dead once the count reaches zero.
func (s *Store) Release(ref core.EntryRef) uint32 {
	e := s.entryAt(ref)
	if e.refCount == 0 {
		panic(fmt.Sprintf("bytestore: release of dead ref %#x", ref.Ref()))
	}
	e.refCount--
	return e.refCount
}

// MarkDead records that the entry's slot is unreferenced. The slot is not
// reused; its bytes are reclaimed when compaction retires the buffer.
func (s *Store) MarkDead(ref core.EntryRef) {
	bufs := *s.buffers.Load()
	b := bufs[ref.BufferID()]
	e := &b.entries[ref.Offset()]
	b.dead.Add(ref.Offset())
	b.deadBytes += e.bytes()
	b.liveBytes -= e.bytes()
	s.usedBytes.Add(^(e.bytes() - 1))
	s.deadBytes.Add(e.bytes())
}

// NumBuffers returns the number of buffers ever created, including freed
// slots.
func (s *Store) NumBuffers() int {
	return len(*s.buffers.Load())
}

// TransferHoldLists tags buffers retired by compaction since the previous
// call with gen.
func (s *Store) TransferHoldLists(gen core.Generation) {
	if len(s.pendingHold) == 0 {
		return
	}
	if n := len(s.holdLists); n > 0 && s.holdLists[n-1].gen == gen {
		s.holdLists[n-1].ids = append(s.holdLists[n-1].ids, s.pendingHold...)
	} else {
		s.holdLists = append(s.holdLists, bufferHold{gen: gen, ids: s.pendingHold})
	}
	s.pendingHold = nil
}

// TrimHoldLists frees every held buffer tagged with a generation strictly
// below firstUsed. Refs into freed buffers become invalid; the generation
// protocol guarantees no reader still holds one.
func (s *Store) TrimHoldLists(firstUsed core.Generation) {
	i := 0
	for i < len(s.holdLists) && s.holdLists[i].gen < firstUsed {
		for _, id := range s.holdLists[i].ids {
			s.freeBuffer(id)
		}
		i++
	}
	if i > 0 {
		s.holdLists = append(s.holdLists[:0], s.holdLists[i:]...)
	}
}

func (s *Store) freeBuffer(id uint32) {
	bufs := *s.buffers.Load()
	b := bufs[id]
	var dataBytes uint64
	for i := uint32(0); i < b.used; i++ {
		dataBytes += uint64(len(b.entries[i].data))
	}
	s.holdBytes.Add(^(b.liveBytes + b.deadBytes - 1))
	s.allocatedBytes.Add(^(uint64(s.entriesPerBuffer)*entryOverhead + dataBytes - 1))

	next := make([]*buffer, len(bufs))
	copy(next, bufs)
	next[id] = nil
	s.buffers.Store(&next)
}

// MemoryUsage reports the arena footprint. Safe for concurrent readers.
func (s *Store) MemoryUsage() core.MemoryUsage {
	return core.MemoryUsage{
		AllocatedBytes: s.allocatedBytes.Load(),
		UsedBytes:      s.usedBytes.Load(),
		DeadBytes:      s.deadBytes.Load(),
		HoldBytes:      s.holdBytes.Load(),
	}
}
