package uniquestore

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/uniquestore/core"
)

func TestStoreAddDeduplicates(t *testing.T) {
	s := New()

	refB, inserted, err := s.Add([]byte("b"))
	require.NoError(t, err)
	require.True(t, inserted)

	refA, inserted, err := s.Add([]byte("a"))
	require.NoError(t, err)
	require.True(t, inserted)

	dup, inserted, err := s.Add([]byte("b"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, refB, dup)
	assert.EqualValues(t, 2, s.RefCount(refB))
	assert.EqualValues(t, 1, s.RefCount(refA))

	assert.Equal(t, []byte("a"), s.Get(refA))
	assert.Equal(t, []byte("b"), s.Get(refB))
	assert.Equal(t, refA, s.Find([]byte("a")))
	assert.Equal(t, core.InvalidEntryRef, s.Find([]byte("c")))
}

func TestStoreAddRemoveLifecycle(t *testing.T) {
	s := New()

	refs := make(map[string]core.EntryRef)
	for _, w := range []string{"a", "b", "c"} {
		ref, inserted, err := s.Add([]byte(w))
		require.NoError(t, err)
		require.True(t, inserted)
		refs[w] = ref
	}
	s.Commit()
	require.EqualValues(t, 3, s.NumUniques())

	ref, inserted, err := s.Add([]byte("b"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, refs["b"], ref)
	s.Commit()
	assert.EqualValues(t, 3, s.NumUniques())

	require.True(t, s.Release(refs["a"]))
	s.Commit()
	assert.EqualValues(t, 2, s.NumUniques())
	assert.Equal(t, core.InvalidEntryRef, s.Find([]byte("a")))
	assert.Equal(t, refs["b"], s.Find([]byte("b")))
}

func TestStoreReleaseRemovesLastReference(t *testing.T) {
	s := New()

	ref, _, err := s.Add([]byte("a"))
	require.NoError(t, err)
	_, inserted, err := s.Add([]byte("a"))
	require.NoError(t, err)
	require.False(t, inserted)

	assert.False(t, s.Release(ref))
	assert.Equal(t, ref, s.Find([]byte("a")))

	assert.True(t, s.Release(ref))
	assert.Equal(t, core.InvalidEntryRef, s.Find([]byte("a")))

	// Re-adding after full release creates a fresh entry.
	again, inserted, err := s.Add([]byte("a"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotEqual(t, ref, again)
}

func TestStoreCommitPublishesSnapshot(t *testing.T) {
	s := New()

	ref, _, err := s.Add([]byte("a"))
	require.NoError(t, err)

	// Readers only see committed state.
	assert.Equal(t, core.InvalidEntryRef, s.Lookup([]byte("a")))
	assert.Zero(t, s.NumUniques())

	s.Commit()
	assert.Equal(t, ref, s.Lookup([]byte("a")))
	assert.EqualValues(t, 1, s.NumUniques())
}

func TestStoreForEachValueOrdered(t *testing.T) {
	s := New()

	words := []string{"pear", "apple", "quince", "fig", "cherry"}
	for _, w := range words {
		_, _, err := s.Add([]byte(w))
		require.NoError(t, err)
	}
	s.Commit()

	var got []string
	s.ForEachValue(s.FrozenRoot(), func(_ core.EntryRef, v []byte) {
		got = append(got, string(v))
	})
	assert.Equal(t, []string{"apple", "cherry", "fig", "pear", "quince"}, got)
}

func TestStoreSnapshotIsolation(t *testing.T) {
	s := New()

	for _, w := range []string{"a", "b"} {
		_, _, err := s.Add([]byte(w))
		require.NoError(t, err)
	}
	s.Commit()

	guard := s.Guard()
	oldRoot := s.FrozenRoot()

	_, _, err := s.Add([]byte("c"))
	require.NoError(t, err)
	s.Commit()
	s.ReclaimMemory() // guard still pins the old snapshot's generation

	var old []string
	s.ForEachValue(oldRoot, func(_ core.EntryRef, v []byte) {
		old = append(old, string(v))
	})
	assert.Equal(t, []string{"a", "b"}, old)

	var latest []string
	s.ForEachValue(s.FrozenRoot(), func(_ core.EntryRef, v []byte) {
		latest = append(latest, string(v))
	})
	assert.Equal(t, []string{"a", "b", "c"}, latest)

	guard.Release()
	s.Commit()
	s.ReclaimMemory()
	assert.Zero(t, s.MemoryUsage().HoldBytes)
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := New()

	const total = 300
	var g errgroup.Group

	for r := 0; r < 4; r++ {
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				guard := s.Guard()
				root := s.FrozenRoot()
				var prev []byte
				n := 0
				s.ForEachValue(root, func(_ core.EntryRef, v []byte) {
					if prev != nil && bytes.Compare(prev, v) >= 0 {
						guard.Release()
						panic("snapshot out of order")
					}
					prev = append(prev[:0], v...)
					n++
				})
				guard.Release()
				if n > total {
					return fmt.Errorf("snapshot larger than total writes: %d", n)
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		for i := 0; i < total; i++ {
			if _, _, err := s.Add([]byte(fmt.Sprintf("value-%04d", i))); err != nil {
				return err
			}
			if i%10 == 9 {
				s.Commit()
				s.ReclaimMemory()
			}
		}
		return nil
	})

	require.NoError(t, g.Wait())

	s.Commit()
	assert.EqualValues(t, total, s.NumUniques())
}

func TestStoreCompaction(t *testing.T) {
	s := New(WithEntriesPerBuffer(4), WithCompactionThreshold(0.25))

	words := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}
	refs := make(map[string]core.EntryRef)
	for _, w := range words {
		ref, _, err := s.Add([]byte(w))
		require.NoError(t, err)
		refs[w] = ref
	}
	s.Commit()

	// Kill two of the three values sharing buffer 0 with the sentinel.
	require.True(t, s.Release(refs["a"]))
	require.True(t, s.Release(refs["b"]))

	retired := s.CompactWorstBuffers()
	require.GreaterOrEqual(t, retired, 1)

	// Survivors stay reachable through their rewritten refs.
	for _, w := range []string{"c", "d", "e", "f", "g", "h", "i"} {
		ref := s.Find([]byte(w))
		require.True(t, ref.Valid(), "lost %q after compaction", w)
		assert.Equal(t, []byte(w), s.Get(ref))
	}

	s.Commit()
	s.ReclaimMemory()
	assert.Zero(t, s.MemoryUsage().HoldBytes)
}

func TestStoreBuild(t *testing.T) {
	s := New()

	refA, _, err := s.Add([]byte("alpha"))
	require.NoError(t, err)
	refB, _, err := s.Add([]byte("beta"))
	require.NoError(t, err)
	refG, _, err := s.Add([]byte("gamma"))
	require.NoError(t, err)

	s.Build(
		[]core.EntryRef{core.InvalidEntryRef, refA, refB, refG},
		[]uint32{0, 1, 0, 1},
	)
	s.Commit()

	assert.Equal(t, refA, s.Lookup([]byte("alpha")))
	assert.Equal(t, core.InvalidEntryRef, s.Lookup([]byte("beta")))
	assert.Equal(t, refG, s.Lookup([]byte("gamma")))
	assert.EqualValues(t, 2, s.NumUniques())
}

func TestStoreMemoryUsage(t *testing.T) {
	s := New()

	ref, _, err := s.Add([]byte("some value worth accounting for"))
	require.NoError(t, err)

	u := s.MemoryUsage()
	assert.NotZero(t, u.AllocatedBytes)
	assert.NotZero(t, u.UsedBytes)
	assert.Zero(t, u.DeadBytes)

	require.True(t, s.Release(ref))
	assert.NotZero(t, s.MemoryUsage().DeadBytes)
}

func TestStoreMaintain(t *testing.T) {
	s := New(WithEntriesPerBuffer(4))

	for i := 0; i < 10; i++ {
		_, _, err := s.Add([]byte(fmt.Sprintf("v%02d", i)))
		require.NoError(t, err)
	}
	s.Maintain()

	assert.EqualValues(t, 10, s.NumUniques())
	assert.Zero(t, s.MemoryUsage().HoldBytes)
}

func TestStoreMetrics(t *testing.T) {
	var m BasicMetricsCollector
	s := New(WithMetricsCollector(&m))

	ref, _, err := s.Add([]byte("x"))
	require.NoError(t, err)
	_, _, err = s.Add([]byte("x"))
	require.NoError(t, err)
	s.Release(ref)
	s.Release(ref)

	assert.EqualValues(t, 2, m.AddCount.Load())
	assert.EqualValues(t, 1, m.AddInserted.Load())
	assert.EqualValues(t, 2, m.ReleaseCount.Load())
	assert.EqualValues(t, 1, m.ReleaseRemoved.Load())
}
