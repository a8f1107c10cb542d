package sim

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsInSubmissionOrder(t *testing.T) {
	d := NewDispatcher("test")
	d.Start(context.Background())
	defer d.Stop()

	// GIVEN 100 commands submitted from one goroutine
	var got []int
	for i := 0; i < 100; i++ {
		d.Submit(func() { got = append(got, i) })
	}

	// WHEN a barrier drains the queue
	require.NoError(t, Call(context.Background(), d, func() error { return nil }))

	// THEN they ran in order
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestDispatcher_ConcurrentSubmittersNeedNoLock(t *testing.T) {
	d := NewDispatcher("test")
	d.Start(context.Background())
	defer d.Stop()

	counter := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				d.Submit(func() { counter++ })
			}
		}()
	}
	wg.Wait()

	require.NoError(t, Call(context.Background(), d, func() error { return nil }))
	assert.Equal(t, 2000, counter)
}

func TestDispatcher_SubmitNeverBlocks(t *testing.T) {
	// GIVEN a dispatcher that was never started
	d := NewDispatcher("idle")

	// WHEN many commands are submitted
	for i := 0; i < 10000; i++ {
		d.Submit(func() {})
	}

	// THEN they are all queued
	assert.Equal(t, 10000, d.Pending())
	d.Stop()
}

func TestDispatcher_StopDropsQueuedCommands(t *testing.T) {
	d := NewDispatcher("test")
	d.Start(context.Background())

	// GIVEN a running command that holds the worker
	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit(func() {
		close(started)
		<-release
	})
	<-started
	ran := false
	d.Submit(func() { ran = true })

	// WHEN the dispatcher is stopped while the command runs
	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	time.Sleep(10 * time.Millisecond)
	close(release)
	<-stopped

	// THEN the running command finished and the queued one was dropped
	assert.False(t, ran)
	select {
	case <-d.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
}

func TestDispatcher_StopIsIdempotent(t *testing.T) {
	d := NewDispatcher("test")
	d.Start(context.Background())
	d.Stop()
	d.Stop()
	d.Start(context.Background()) // no-op after stop
	<-d.Done()
}
