package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNGDeterminism(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	assert.Equal(t, a.Bytes(32), b.Bytes(32))
	assert.Equal(t, a.Perm(100), b.Perm(100))

	a.Reset()
	c := NewRNG(42)
	assert.Equal(t, c.Bytes(16), a.Bytes(16))
}

func TestValuesDistinct(t *testing.T) {
	rng := NewRNG(1)
	values := rng.Values(500, 4, 12)
	require.Len(t, values, 500)

	seen := make(map[string]bool, len(values))
	for _, v := range values {
		assert.GreaterOrEqual(t, len(v), 4)
		assert.Less(t, len(v), 12)
		require.False(t, seen[string(v)], "duplicate value %q", v)
		seen[string(v)] = true
	}
}
