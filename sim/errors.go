package sim

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCanceled is returned when a caller's context ends while it waits on a barrier.
	// The command it was waiting for still runs to completion on the dispatcher.
	ErrCanceled = errors.New("sim: canceled while waiting for resolution")
	// ErrDispatcherStopped is returned when the dispatcher worker has exited,
	// so a submitted command can no longer complete.
	ErrDispatcherStopped = errors.New("sim: dispatcher stopped")
)

// TaskKind labels what a failed pool task was running.
type TaskKind string

const (
	TaskAction TaskKind = "action"
	TaskEffect TaskKind = "effect"
)

// PanicError carries a recovered panic value and the goroutine stack.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// TaskFailure describes one task of a batch that returned an error or panicked.
type TaskFailure struct {
	Kind  TaskKind
	Phase Phase   // set for actions
	Agent AgentID // set for effects
	Index int     // position of the task in its batch
	Err   error
}

func (f TaskFailure) Error() string {
	switch f.Kind {
	case TaskEffect:
		return fmt.Sprintf("effect batch of agent %q: %v", f.Agent, f.Err)
	default:
		return fmt.Sprintf("%s action #%d: %v", f.Phase, f.Index, f.Err)
	}
}

func (f TaskFailure) Unwrap() error { return f.Err }

// BatchError collects every failed task of one parallel batch. Tasks that
// did not fail ran to completion.
type BatchError struct {
	Failures []TaskFailure
}

func (e *BatchError) Error() string {
	if len(e.Failures) == 1 {
		return "1 task failed: " + e.Failures[0].Error()
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d tasks failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// PhaseError reports a failed or interrupted phase resolution.
type PhaseError struct {
	Day   int
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("day %d, phase %s: %v", e.Day, e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// DayError collects the task faults of a day whose phases all ran.
// The day counter has already advanced when a DayError is returned.
type DayError struct {
	Day  int
	Errs []error
}

func (e *DayError) Error() string {
	parts := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		parts[i] = err.Error()
	}
	return fmt.Sprintf("day %d completed with %d faulted phase(s): %s", e.Day, len(e.Errs), strings.Join(parts, "; "))
}

func (e *DayError) Unwrap() []error { return e.Errs }

// IsInterrupted reports whether err came from cancellation or a stopped
// dispatcher rather than from a faulting body. Errors returned by bodies
// (inside a *BatchError) never count, whatever they wrap.
func IsInterrupted(err error) bool {
	for err != nil {
		if err == ErrCanceled || err == ErrDispatcherStopped {
			return true
		}
		switch e := err.(type) {
		case *BatchError:
			return false
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				if IsInterrupted(inner) {
					return true
				}
			}
			return false
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			return false
		}
	}
	return false
}

// Failures flattens every TaskFailure reachable from err.
func Failures(err error) []TaskFailure {
	var out []TaskFailure
	collectFailures(err, &out)
	return out
}

func collectFailures(err error, out *[]TaskFailure) {
	if err == nil {
		return
	}
	switch e := err.(type) {
	case *BatchError:
		*out = append(*out, e.Failures...)
		return
	case TaskFailure:
		*out = append(*out, e)
		return
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			collectFailures(inner, out)
		}
	case interface{ Unwrap() error }:
		collectFailures(u.Unwrap(), out)
	}
}
