// Package testutil provides shared test infrastructure for the scheduler
// packages: an ordered recorder for bodies running on the pool, a deadlock
// guard and float assertions.
package testutil

import (
	"math"
	"sync"
	"testing"
	"time"
)

// Recorder is a goroutine-safe append log. Bodies running concurrently on
// the pool write to it; tests read it once the resolution has returned.
type Recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

// Add appends v.
func (r *Recorder[T]) Add(v T) {
	r.mu.Lock()
	r.items = append(r.items, v)
	r.mu.Unlock()
}

// Items returns a copy of everything recorded so far.
func (r *Recorder[T]) Items() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

// Len returns the number of recorded items.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Reset forgets everything recorded.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}

// WithinTimeout runs fn on its own goroutine and fails the test if it has
// not returned after d. Use it around calls that would hang on a deadlock.
func WithinTimeout(t *testing.T, d time.Duration, fn func() error) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		t.Fatalf("call did not return within %v", d)
		return nil
	}
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
