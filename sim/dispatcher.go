package sim

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Command is a deferred mutation executed by a Dispatcher worker.
type Command func()

// Dispatcher serializes commands onto one worker goroutine. Whatever state
// the commands touch is owned by that goroutine and needs no lock.
//
// Submit never blocks: the queue is unbounded. Commands run strictly in
// arrival order, one at a time; a command that waits on parallel work keeps
// the worker busy until the wait ends.
type Dispatcher struct {
	name string

	mu    sync.Mutex
	queue []Command
	wake  chan struct{} // 1-slot: "queue may be non-empty"

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewDispatcher creates a dispatcher. The worker starts with Start.
func NewDispatcher(name string) *Dispatcher {
	return &Dispatcher{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Start launches the worker. It exits when ctx is canceled or Stop is called,
// but only between commands. Calling Start twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		ctx, d.cancel = context.WithCancel(ctx)
		go d.loop(ctx)
	})
}

// Submit enqueues cmd and returns immediately.
func (d *Dispatcher) Submit(cmd Command) {
	d.mu.Lock()
	d.queue = append(d.queue, cmd)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Stop cancels the worker and waits for it to exit. Commands still queued
// are dropped without being run.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		// never started: nothing to wait for
		close(d.done)
	})
	if d.cancel != nil {
		d.cancel()
	}
	<-d.done
}

// Done is closed once the worker has exited.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }

// Pending returns the number of queued, not yet started commands.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	for {
		cmd, ok := d.next()
		if !ok {
			select {
			case <-ctx.Done():
				logrus.WithField("dispatcher", d.name).Debugf("dispatcher stopped, %d command(s) dropped", d.Pending())
				return
			case <-d.wake:
				continue
			}
		}
		cmd()
		// Stop takes effect between commands only.
		if ctx.Err() != nil {
			logrus.WithField("dispatcher", d.name).Debugf("dispatcher stopped, %d command(s) dropped", d.Pending())
			return
		}
	}
}

func (d *Dispatcher) next() (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, false
	}
	cmd := d.queue[0]
	d.queue[0] = nil
	d.queue = d.queue[1:]
	return cmd, true
}
