package sim

import (
	"context"
	"fmt"
)

// Call runs fn on d's worker and blocks until it has finished, turning the
// dispatcher's fire-and-forget model into a synchronous call.
//
// The completion signal is created per call and is the last thing the
// command does. If ctx ends first Call returns ErrCanceled; fn still runs
// to completion on the worker. Call must not be used from inside a command
// of the same dispatcher: the worker would wait on itself.
func Call(ctx context.Context, d *Dispatcher, fn func() error) error {
	done := make(chan error, 1)
	d.Submit(func() {
		done <- fn()
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
	case <-d.Done():
		// the worker may have run fn right before exiting
		select {
		case err := <-done:
			return err
		default:
			return ErrDispatcherStopped
		}
	}
}
