package uniquestore

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/uniquestore/core"
)

// stringArena is a minimal stand-in for the value store: it hands out refs
// for strings without deduplicating, so the dictionary's behavior can be
// tested in isolation.
type stringArena struct {
	values map[core.EntryRef]string
	next   uint32
}

func newStringArena() *stringArena {
	return &stringArena{values: make(map[core.EntryRef]string), next: 1}
}

func (a *stringArena) add(v string) core.EntryRef {
	ref := core.MakeEntryRef(0, a.next)
	a.next++
	a.values[ref] = v
	return ref
}

func (a *stringArena) cmp(probe string) stringComparator {
	return stringComparator{values: a.values, probe: probe}
}

type stringComparator struct {
	values map[core.EntryRef]string
	probe  string
}

func (c stringComparator) Less(x, y core.EntryRef) bool {
	return c.resolve(x) < c.resolve(y)
}

func (c stringComparator) resolve(r core.EntryRef) string {
	if !r.Valid() {
		return c.probe
	}
	return c.values[r]
}

func frozenKeys(t *testing.T, d *Dictionary) []core.EntryRef {
	t.Helper()
	var keys []core.EntryRef
	d.ForEachKey(d.FrozenRoot(), func(ref core.EntryRef) {
		keys = append(keys, ref)
	})
	return keys
}

func TestDictionaryAddDeduplicates(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	res, err := d.Add(arena.cmp("b"), func() (core.EntryRef, error) {
		return arena.add("b"), nil
	})
	require.NoError(t, err)
	require.True(t, res.Inserted)
	first := res.Ref

	res, err = d.Add(arena.cmp("b"), func() (core.EntryRef, error) {
		t.Fatal("insertEntry must not run for a duplicate")
		return core.InvalidEntryRef, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Inserted)
	assert.Equal(t, first, res.Ref)
}

func TestDictionaryOrdersByValue(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	words := []string{"mango", "apple", "kiwi", "banana", "plum"}
	for _, w := range words {
		w := w
		_, err := d.Add(arena.cmp(w), func() (core.EntryRef, error) {
			return arena.add(w), nil
		})
		require.NoError(t, err)
	}
	d.Freeze()
	require.EqualValues(t, len(words), d.NumUniques())

	var got []string
	d.ForEachKey(d.FrozenRoot(), func(ref core.EntryRef) {
		got = append(got, arena.values[ref])
	})
	want := append([]string(nil), words...)
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestDictionaryFindRemove(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	assert.Equal(t, core.InvalidEntryRef, d.Find(arena.cmp("ghost")))

	res, err := d.Add(arena.cmp("x"), func() (core.EntryRef, error) {
		return arena.add("x"), nil
	})
	require.NoError(t, err)
	require.Equal(t, res.Ref, d.Find(arena.cmp("x")))

	d.Remove(arena.cmp("x"), res.Ref)
	assert.Equal(t, core.InvalidEntryRef, d.Find(arena.cmp("x")))
}

func TestDictionaryRemovePanics(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	require.Panics(t, func() {
		d.Remove(arena.cmp(""), core.InvalidEntryRef)
	})

	// A ref that exists in the arena but was never inserted.
	stray := arena.add("stray")
	require.Panics(t, func() {
		d.Remove(arena.cmp("stray"), stray)
	})
}

func TestDictionaryMoveEntries(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	words := []string{"a", "b", "c", "d"}
	refs := make(map[string]core.EntryRef)
	for _, w := range words {
		w := w
		res, err := d.Add(arena.cmp(w), func() (core.EntryRef, error) {
			return arena.add(w), nil
		})
		require.NoError(t, err)
		refs[w] = res.Ref
	}
	d.Freeze()
	before := frozenKeys(t, d)
	usageBefore := d.MemoryUsage()

	// A no-op move leaves keys, count and memory untouched.
	d.MoveEntries(compactableFunc(func(ref core.EntryRef) core.EntryRef {
		return ref
	}))
	d.Freeze()
	assert.Equal(t, before, frozenKeys(t, d))
	assert.Equal(t, usageBefore, d.MemoryUsage())

	// Relocate "b" and "d" to fresh arena slots holding the same values.
	moved := map[core.EntryRef]core.EntryRef{
		refs["b"]: arena.add("b"),
		refs["d"]: arena.add("d"),
	}
	d.MoveEntries(compactableFunc(func(ref core.EntryRef) core.EntryRef {
		if newRef, ok := moved[ref]; ok {
			return newRef
		}
		return ref
	}))

	assert.Equal(t, moved[refs["b"]], d.Find(arena.cmp("b")))
	assert.Equal(t, refs["a"], d.Find(arena.cmp("a")))
	assert.Equal(t, moved[refs["d"]], d.Find(arena.cmp("d")))
}

func TestDictionaryBuild(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	refs := []core.EntryRef{
		core.InvalidEntryRef, // sentinel slot
		arena.add("alpha"),
		arena.add("beta"),
		arena.add("gamma"),
	}
	refCounts := []uint32{0, 2, 0, 1}

	var held []core.EntryRef
	d.Build(refs, refCounts, func(ref core.EntryRef) {
		held = append(held, ref)
	})
	d.Freeze()

	assert.Equal(t, []core.EntryRef{refs[2]}, held)
	assert.EqualValues(t, 2, d.NumUniques())
	assert.Equal(t, refs[1], d.Find(arena.cmp("alpha")))
	assert.Equal(t, core.InvalidEntryRef, d.Find(arena.cmp("beta")))
	assert.Equal(t, refs[3], d.Find(arena.cmp("gamma")))
}

func TestDictionaryBuildPanics(t *testing.T) {
	d := NewDictionary()
	require.Panics(t, func() {
		d.Build([]core.EntryRef{0, 1}, []uint32{0}, func(core.EntryRef) {})
	})
	require.Panics(t, func() {
		d.Build(nil, nil, func(core.EntryRef) {})
	})
}

func TestDictionaryHoldListLifecycle(t *testing.T) {
	arena := newStringArena()
	d := NewDictionary()

	for _, w := range []string{"one", "two", "three"} {
		w := w
		_, err := d.Add(arena.cmp(w), func() (core.EntryRef, error) {
			return arena.add(w), nil
		})
		require.NoError(t, err)
	}
	d.Freeze()
	oldRoot := d.FrozenRoot()

	// Mutating after a freeze thaws the path and retires the old nodes.
	_, err := d.Add(arena.cmp("four"), func() (core.EntryRef, error) {
		return arena.add("four"), nil
	})
	require.NoError(t, err)
	d.Freeze()
	d.TransferHoldLists(1)

	assert.NotZero(t, d.MemoryUsage().HoldBytes)

	// The old snapshot stays traversable until its generation is trimmed.
	var count int
	d.ForEachKey(oldRoot, func(core.EntryRef) { count++ })
	assert.Equal(t, 3, count)

	d.TrimHoldLists(1) // strictly-below rule: generation 1 survives
	assert.NotZero(t, d.MemoryUsage().HoldBytes)

	d.TrimHoldLists(2)
	assert.Zero(t, d.MemoryUsage().HoldBytes)
}
