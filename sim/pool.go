package sim

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Action is a recurring, phase-scoped unit of work. It may fan out further
// sub-actions through its Scope and must join them before returning.
type Action func(sc *Scope) error

// Pool runs action and effect bodies with at most Workers of them executing
// at once. It is safe for concurrent use.
//
// A task that fans out through Scope.Invoke gives its slot back while it
// waits for its children, so nested fan-out cannot starve a bounded pool.
type Pool struct {
	workers int64
	slots   *semaphore.Weighted
}

// NewPool creates a pool of the given size; workers <= 0 uses GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		workers: int64(workers),
		slots:   semaphore.NewWeighted(int64(workers)),
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return int(p.workers) }

// Invoke runs every action concurrently and returns once all of them,
// including their nested sub-actions, have finished. A failing action does
// not stop its siblings; failures come back as a *BatchError.
// The caller must not be holding a slot of p; actions use Scope.Invoke.
func (p *Pool) Invoke(ctx context.Context, actions ...Action) error {
	failures := p.run(ctx, len(actions), func(i int, sc *Scope) error {
		return actions[i](sc)
	})
	return batchError(failures, TaskAction)
}

// run executes fn for indices [0, n) in parallel and joins them.
func (p *Pool) run(ctx context.Context, n int, fn func(i int, sc *Scope) error) []TaskFailure {
	if n == 0 {
		return nil
	}
	var (
		mu       sync.Mutex
		failures []TaskFailure
		g        errgroup.Group
	)
	record := func(i int, err error) {
		mu.Lock()
		failures = append(failures, TaskFailure{Index: i, Err: err})
		mu.Unlock()
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := p.slots.Acquire(ctx, 1); err != nil {
				record(i, err)
				return nil
			}
			sc := &Scope{pool: p, ctx: ctx, held: true}
			err := guard(func() error { return fn(i, sc) })
			sc.mu.Lock()
			if sc.held {
				p.slots.Release(1)
			}
			sc.mu.Unlock()
			if err != nil {
				record(i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })
	return failures
}

// guard runs fn, turning a panic into a *PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func batchError(failures []TaskFailure, kind TaskKind) error {
	if len(failures) == 0 {
		return nil
	}
	for i := range failures {
		failures[i].Kind = kind
	}
	return &BatchError{Failures: failures}
}

// Scope is handed to a running action. It is only valid for the duration of
// that action's call. Invoke may be called from several goroutines the action
// starts, as long as the action joins them before returning.
type Scope struct {
	pool *Pool
	ctx  context.Context

	mu     sync.Mutex
	held   bool // the action's own slot
	nested int  // Invoke calls in flight
}

// Context returns the context the enclosing batch runs under.
func (sc *Scope) Context() context.Context { return sc.ctx }

// Invoke runs the sub-actions in parallel on the same pool and waits for all
// of them. Failures are returned as a *BatchError; the caller decides whether
// to propagate them.
//
// The action's slot is handed back while any Invoke is in flight and taken
// again when the last one returns.
func (sc *Scope) Invoke(subs ...Action) error {
	if len(subs) == 0 {
		return nil
	}
	sc.mu.Lock()
	if sc.nested == 0 && sc.held {
		sc.pool.slots.Release(1)
		sc.held = false
	}
	sc.nested++
	sc.mu.Unlock()

	failures := sc.pool.run(sc.ctx, len(subs), func(i int, child *Scope) error {
		return subs[i](child)
	})

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.nested--
	if sc.nested == 0 {
		if err := sc.pool.slots.Acquire(sc.ctx, 1); err != nil {
			failures = append(failures, TaskFailure{Index: -1, Err: err})
		} else {
			sc.held = true
		}
	}
	return batchError(failures, TaskAction)
}
