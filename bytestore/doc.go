// Package bytestore implements the backing value arena of the unique store:
// refcounted byte values stored in append-only buffers behind packed entry
// refs.
//
// The store follows the same single-writer, lock-free-reader discipline as
// the dictionary. The writer appends, releases, and compacts; readers only
// resolve refs they obtained through a published dictionary snapshot, which
// is what makes the unsynchronized Get safe. Buffers emptied by compaction
// retire through generation tagged hold lists and are freed only once the
// caller proves no reader can still resolve refs into them.
package bytestore
