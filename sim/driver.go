package sim

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// PhaseCompleter resolves one phase (its actions, then its effects) and
// returns once both steps have finished.
type PhaseCompleter interface {
	CompletePhase(ctx context.Context, phase Phase) error
}

// DriverOptions tunes how a DayDriver reacts to faulting bodies.
type DriverOptions struct {
	// HaltOnFault aborts the day at the first phase whose bodies failed.
	// When false the remaining phases still run and the faults are
	// returned together once the day has advanced.
	HaltOnFault bool
	Metrics     *Metrics
}

// DayDriver walks the fixed phase order once per day and owns the day counter.
// CompleteDay and RunDays must be called from one goroutine at a time.
type DayDriver struct {
	phases PhaseCompleter
	opts   DriverOptions
	day    atomic.Int64
}

// NewDayDriver creates a driver over pc, starting at day 0.
func NewDayDriver(pc PhaseCompleter, opts DriverOptions) *DayDriver {
	return &DayDriver{phases: pc, opts: opts}
}

// Day returns the number of completed days.
func (d *DayDriver) Day() int {
	return int(d.day.Load())
}

// CompleteDay resolves every phase in order, then advances the day.
//
// Cancellation or a stopped dispatcher aborts the day at once and leaves the
// counter unchanged; so does a fault under HaltOnFault. Otherwise faults are
// collected into a *DayError returned after the counter has advanced.
func (d *DayDriver) CompleteDay(ctx context.Context) error {
	day := d.Day()
	var faults []error
	for _, phase := range Phases() {
		err := d.phases.CompletePhase(ctx, phase)
		if err == nil {
			continue
		}
		if IsInterrupted(err) || d.opts.HaltOnFault {
			return err
		}
		logrus.WithFields(logrus.Fields{"day": day, "phase": phase}).Warnf("phase completed with faults: %v", err)
		faults = append(faults, err)
	}
	d.day.Add(1)
	d.opts.Metrics.SetDay(day + 1)
	if len(faults) > 0 {
		return &DayError{Day: day, Errs: faults}
	}
	return nil
}

// RunDays completes n days. It stops early on interruption or, under
// HaltOnFault, on the first fault; otherwise faults of every day are joined.
func (d *DayDriver) RunDays(ctx context.Context, n int) error {
	var faults []error
	for i := 0; i < n; i++ {
		err := d.CompleteDay(ctx)
		if err == nil {
			continue
		}
		var dayErr *DayError
		if !errors.As(err, &dayErr) {
			return errors.Join(append(faults, err)...)
		}
		faults = append(faults, err)
	}
	return errors.Join(faults...)
}
