// Package core defines the shared primitives of the unique value store:
// entry references, generations, and the comparator and compaction contracts
// the dictionary consumes.
package core

// OffsetBits is the number of bits used for the offset within a buffer.
// The remaining bits of an EntryRef hold the buffer id.
const (
	OffsetBits = 20
	BufferBits = 32 - OffsetBits

	// OffsetSize is the number of addressable entries per buffer.
	OffsetSize = 1 << OffsetBits
	// NumBuffers is the number of addressable buffers.
	NumBuffers = 1 << BufferBits

	offsetMask = OffsetSize - 1
)

// EntryRef is an opaque, copyable handle to a unique value owned by an
// external value store. It packs a buffer id and an offset into 32 bits.
// The zero value is the invalid sentinel and never refers to a live value.
//
// An EntryRef does not own the value it denotes; it is valid only while the
// value is live in its store.
type EntryRef uint32

// InvalidEntryRef is the reserved sentinel distinct from all valid refs.
const InvalidEntryRef = EntryRef(0)

// MakeEntryRef packs a buffer id and an offset into an EntryRef.
func MakeEntryRef(bufferID, offset uint32) EntryRef {
	return EntryRef(bufferID<<OffsetBits | offset&offsetMask)
}

// Valid reports whether the ref denotes a value.
func (r EntryRef) Valid() bool { return r != InvalidEntryRef }

// BufferID returns the buffer part of the ref.
func (r EntryRef) BufferID() uint32 { return uint32(r) >> OffsetBits }

// Offset returns the offset part of the ref.
func (r EntryRef) Offset() uint32 { return uint32(r) & offsetMask }

// Ref returns the raw packed representation.
func (r EntryRef) Ref() uint32 { return uint32(r) }

// Generation is a monotonically increasing write-epoch counter. It is owned
// by an external generation handler; components receiving a Generation trust
// it without validation.
type Generation uint64

// EntryComparator is a strict weak order over entry refs, resolving each ref
// to its underlying value through the external value store. By convention the
// invalid EntryRef stands for the probe value carried by the comparator, which
// allows lower-bound lookups for values that have no ref yet.
//
// Less must be pure and stable for the duration of a single dictionary
// operation.
type EntryComparator interface {
	// Less reports whether the value behind a orders before the value behind b.
	Less(a, b EntryRef) bool
}

// Compactable relocates values during a compaction sweep. Move may return its
// argument unchanged, meaning the value did not relocate. Implementations must
// not change a value's content or its relative order under any comparator the
// dictionary will later use.
type Compactable interface {
	Move(ref EntryRef) EntryRef
}
