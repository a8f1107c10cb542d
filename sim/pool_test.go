package sim

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daysim/daysim/sim/internal/testutil"
)

func TestNewPool_DefaultsToGOMAXPROCS(t *testing.T) {
	assert.Positive(t, NewPool(0).Workers())
	assert.Equal(t, 3, NewPool(3).Workers())
}

func TestPool_Invoke_RunsEveryAction(t *testing.T) {
	p := NewPool(4)
	var n atomic.Int32
	actions := make([]Action, 50)
	for i := range actions {
		actions[i] = func(*Scope) error {
			n.Add(1)
			return nil
		}
	}

	require.NoError(t, p.Invoke(context.Background(), actions...))
	assert.Equal(t, int32(50), n.Load())
}

func TestPool_Invoke_BoundsConcurrency(t *testing.T) {
	// GIVEN a pool of 2 and slow actions
	p := NewPool(2)
	var running, peak atomic.Int32
	actions := make([]Action, 8)
	for i := range actions {
		actions[i] = func(*Scope) error {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}
	}

	require.NoError(t, p.Invoke(context.Background(), actions...))

	// THEN at most 2 ran at once
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPool_Invoke_NestedFanOutOnSingleWorker(t *testing.T) {
	// GIVEN a pool of size 1 and an action that forks two levels deep
	p := NewPool(1)
	var leaves atomic.Int32
	leaf := func(*Scope) error {
		leaves.Add(1)
		return nil
	}
	mid := func(sc *Scope) error { return sc.Invoke(leaf, leaf, leaf) }
	root := func(sc *Scope) error { return sc.Invoke(mid, mid) }

	// WHEN it runs
	done := make(chan error, 1)
	go func() { done <- p.Invoke(context.Background(), root, root) }()

	// THEN it completes instead of deadlocking
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("nested fan-out deadlocked on a single worker")
	}
	assert.Equal(t, int32(12), leaves.Load())
}

func TestScope_Invoke_FromSeveralGoroutines(t *testing.T) {
	// GIVEN a pool of size 1 and an action that forks from two goroutines at once
	p := NewPool(1)
	var leaves atomic.Int32
	leaf := func(*Scope) error {
		leaves.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	}
	root := func(sc *Scope) error {
		errs := make(chan error, 2)
		for range 2 {
			go func() { errs <- sc.Invoke(leaf, leaf, leaf) }()
		}
		return errors.Join(<-errs, <-errs)
	}

	// WHEN it runs
	err := testutil.WithinTimeout(t, 5*time.Second, func() error {
		return p.Invoke(context.Background(), root)
	})

	// THEN every leaf ran and the slot was given back exactly once
	require.NoError(t, err)
	assert.Equal(t, int32(6), leaves.Load())
	assert.True(t, p.slots.TryAcquire(1), "the single slot must be free after the batch")
	p.slots.Release(1)
}

func TestPool_Invoke_FaultIsolation(t *testing.T) {
	// GIVEN one failing and one panicking action among healthy ones
	p := NewPool(2)
	boom := errors.New("boom")
	var ok atomic.Int32
	healthy := func(*Scope) error {
		ok.Add(1)
		return nil
	}
	actions := []Action{
		healthy,
		func(*Scope) error { return boom },
		healthy,
		func(*Scope) error { panic("kaput") },
	}

	// WHEN the batch runs
	err := p.Invoke(context.Background(), actions...)

	// THEN siblings complete and both failures are reported by index
	assert.Equal(t, int32(2), ok.Load())
	var batch *BatchError
	require.ErrorAs(t, err, &batch)
	require.Len(t, batch.Failures, 2)
	assert.Equal(t, 1, batch.Failures[0].Index)
	assert.ErrorIs(t, batch.Failures[0], boom)
	assert.Equal(t, 3, batch.Failures[1].Index)
	var pe *PanicError
	require.ErrorAs(t, batch.Failures[1].Err, &pe)
	assert.Equal(t, "kaput", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, TaskAction, batch.Failures[1].Kind)
}

func TestScope_Invoke_ReportsChildFailures(t *testing.T) {
	p := NewPool(1)
	boom := errors.New("boom")
	var childErr error
	err := p.Invoke(context.Background(), func(sc *Scope) error {
		childErr = sc.Invoke(
			func(*Scope) error { return nil },
			func(*Scope) error { return boom },
		)
		return nil
	})

	// THEN the parent decides: here it swallowed the child's failure
	require.NoError(t, err)
	assert.ErrorIs(t, childErr, boom)
	assert.Len(t, Failures(childErr), 1)
}

func TestScope_Context(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	var got any
	require.NoError(t, NewPool(1).Invoke(ctx, func(sc *Scope) error {
		got = sc.Context().Value(key{})
		return nil
	}))
	assert.Equal(t, "v", got)
}
