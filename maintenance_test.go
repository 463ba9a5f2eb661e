package uniquestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintainerRunStopsOnCancel(t *testing.T) {
	s := New(WithEntriesPerBuffer(8))
	for i := 0; i < 20; i++ {
		_, _, err := s.Add([]byte(fmt.Sprintf("item-%02d", i)))
		require.NoError(t, err)
	}

	m := NewMaintainer(s, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	// Give the loop a few rounds to commit the pending writes.
	require.Eventually(t, func() bool {
		return s.NumUniques() == 20
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("maintainer did not stop after cancellation")
	}

	assert.Zero(t, s.MemoryUsage().HoldBytes)
}

func TestMaintainerFinalCommitOnShutdown(t *testing.T) {
	s := New()
	_, _, err := s.Add([]byte("late write"))
	require.NoError(t, err)

	// An already-cancelled context still runs the shutdown commit, so writes
	// pending at cancellation become visible.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMaintainer(s, time.Hour)
	require.NoError(t, m.Run(ctx))
	assert.EqualValues(t, 1, s.NumUniques())
}
