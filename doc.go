// Package uniquestore implements an in-process, content-addressed,
// deduplicating value store. Unique values live in a refcounted byte arena
// behind compact 32-bit entry refs; an ordered copy-on-write dictionary maps
// values to refs so that equal values always share one ref.
//
// The store is built for a single-writer, many-reader workload. One writer
// thread performs adds, releases, compaction and the generation protocol;
// any number of reader threads concurrently resolve refs and traverse frozen
// dictionary snapshots without locks. Writers never block on readers:
// structures replaced by copy-on-write updates are parked on generation
// tagged hold lists and reclaimed only once the generation handler proves no
// reader predates their retirement.
//
// # Quick start
//
//	s := uniquestore.New()
//	ref, inserted, _ := s.Add([]byte("hello"))   // inserted == true
//	ref2, inserted, _ := s.Add([]byte("hello"))  // ref2 == ref, inserted == false
//	s.Commit()                                   // publish a frozen snapshot
//
//	g := s.Guard()                               // reader side
//	defer g.Release()
//	value := s.Get(ref)
//
// Use Store for the batteries-included facade, or wire Dictionary against a
// value arena of your own through the core.EntryComparator and
// core.Compactable contracts.
package uniquestore
