// Package simulation implements the top-level orchestrator: it
// initializes every registered widget, runs the
// master-step / bridge-tick main loop until a bridge requests
// termination or the scheduler's cycle horizon is reached, finalizes
// every bridge, and reports a PASS/FAILED banner plus a performance
// summary.
package simulation

import (
	"context"
	"fmt"
	"os"

	"cosimdriver/clockmodule"
	"cosimdriver/errcode"
	"cosimdriver/master"
	"cosimdriver/scheduler"
	"cosimdriver/widget"
	"cosimdriver/x/timex"
)

// Simulation wires the master/scheduler/clock/registry together into
// the single driver loop: master.step(N), then tick every bridge
// repeatedly until master.is_done().
type Simulation struct {
	registry  *widget.Registry
	master    *master.Master
	clock     *clockmodule.ClockModule
	scheduler *scheduler.Scheduler

	startTimeMs   int64
	endTimeMs     int64
	startHCycle   uint64
	endHCycle     uint64
	endTCycle     uint64
	timedOut      bool
	recordedStart bool
}

// New returns a Simulation over an already-built registry.
func New(reg *widget.Registry, m *master.Master, clock *clockmodule.ClockModule, sched *scheduler.Scheduler) *Simulation {
	return &Simulation{registry: reg, master: m, clock: clock, scheduler: sched}
}

// Init runs Init on the stream engine (if any) followed by every
// registered bridge, in registration order. The stream engine's base
// pointer must be live before any bridge that streams through it is
// initialized.
func (s *Simulation) Init(ctx context.Context) error {
	if se, ok := s.registry.StreamEngine(); ok {
		if initer, ok := se.(interface{ Init(context.Context) error }); ok {
			if err := initer.Init(ctx); err != nil {
				return fmt.Errorf("simulation: init stream engine: %w", err)
			}
		}
	}
	for _, b := range s.registry.AllBridges() {
		if err := b.Init(ctx); err != nil {
			return fmt.Errorf("simulation: init bridge %s: %w", b.WidgetKind(), err)
		}
	}
	return nil
}

// run is the main loop. It returns the ExitCode of the first bridge
// whose Terminate() reports true, or 0 with timedOut set once the
// scheduler's cycle horizon is reached without any bridge terminating.
func (s *Simulation) run(ctx context.Context) (int, error) {
	for !s.scheduler.FinishedScheduledTasks() {
		n := s.scheduler.GetLargestStepsize()
		if err := s.master.Step(ctx, n, false); err != nil {
			return 0, fmt.Errorf("simulation: step: %w", err)
		}

		for {
			done, err := s.master.IsDone(ctx)
			if err != nil {
				return 0, fmt.Errorf("simulation: is_done: %w", err)
			}
			if done {
				break
			}
			for _, b := range s.registry.AllBridges() {
				if err := b.Tick(ctx); err != nil {
					return 0, fmt.Errorf("simulation: tick bridge %s: %w", b.WidgetKind(), err)
				}
				if b.Terminate() {
					return b.ExitCode(), nil
				}
			}
		}

		s.scheduler.RunScheduledTasks()
	}
	s.timedOut = true
	return 0, nil
}

// Finish calls Finish on every registered bridge, in registration
// order, regardless of which bridge (if any) requested termination.
func (s *Simulation) Finish(ctx context.Context) error {
	var firstErr error
	for _, b := range s.registry.AllBridges() {
		if err := b.Finish(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("simulation: finish bridge %s: %w", b.WidgetKind(), err)
		}
	}
	return firstErr
}

func (s *Simulation) recordStartTimes(ctx context.Context) error {
	hc, err := s.clock.HCycle(ctx)
	if err != nil {
		return err
	}
	s.startHCycle = hc
	s.startTimeMs = timex.NowMs()
	s.recordedStart = true
	return nil
}

func (s *Simulation) recordEndTimes(ctx context.Context) error {
	s.endTimeMs = timex.NowMs()
	tc, err := s.clock.TCycle(ctx)
	if err != nil {
		return err
	}
	s.endTCycle = tc
	hc, err := s.clock.HCycle(ctx)
	if err != nil {
		return err
	}
	s.endHCycle = hc
	return nil
}

// printPerformanceSummary writes the wallclock/host-frequency/target-
// frequency/FMR report to stderr.
func (s *Simulation) printPerformanceSummary() {
	if !s.recordedStart {
		panic(&errcode.E{C: errcode.AssertionFired, Op: "simulation.printPerformanceSummary",
			Msg: "simulation not executed"})
	}

	hcycles := s.endHCycle - s.startHCycle
	simTimeSecs := float64(s.endTimeMs-s.startTimeMs) / 1000.0
	var simSpeedKHz, hostFreqKHz, fmr float64
	if simTimeSecs > 0 {
		simSpeedKHz = float64(s.endTCycle) / (simTimeSecs * 1000.0)
		hostFreqKHz = float64(hcycles) / (simTimeSecs * 1000.0)
	}
	if s.endTCycle > 0 {
		fmr = float64(hcycles) / float64(s.endTCycle)
	}

	fmt.Fprintf(os.Stderr, "\nEmulation Performance Summary\n")
	fmt.Fprintf(os.Stderr, "------------------------------\n")
	fmt.Fprintf(os.Stderr, "Wallclock Time Elapsed: %.1f s\n", simTimeSecs)
	fmt.Fprintf(os.Stderr, "Host Frequency: ")
	if hostFreqKHz > 1000.0 {
		fmt.Fprintf(os.Stderr, "%.3f MHz\n", hostFreqKHz/1000.0)
	} else {
		fmt.Fprintf(os.Stderr, "%.3f KHz\n", hostFreqKHz)
	}
	fmt.Fprintf(os.Stderr, "Target Cycles Emulated: %d\n", s.endTCycle)
	fmt.Fprintf(os.Stderr, "Effective Target Frequency: ")
	if simSpeedKHz > 1000.0 {
		fmt.Fprintf(os.Stderr, "%.3f MHz\n", simSpeedKHz/1000.0)
	} else {
		fmt.Fprintf(os.Stderr, "%.3f KHz\n", simSpeedKHz)
	}
	fmt.Fprintf(os.Stderr, "FMR: %.2f\n", fmr)
	fmt.Fprintf(os.Stderr, "Note: The latter three figures are based on the fastest target clock.\n")
}

// ExecuteSimulationFlow runs Init, the main loop, Finish, and the
// PASS/FAILED/timeout banner plus performance summary, in that order.
// Fatal errors raised as a *errcode.E panic anywhere
// in Init/run/Finish are recovered here and reported as a FAILED run
// rather than a bare process crash.
func (s *Simulation) ExecuteSimulationFlow(ctx context.Context) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*errcode.E); ok {
				fmt.Fprintf(os.Stderr, "*** FAILED *** (%s) after %d cycles\n", e.Error(), s.endTCycle)
				if s.recordedStart {
					s.printPerformanceSummary()
				}
				exitCode = 1
				return
			}
			panic(r)
		}
	}()

	if err := s.Init(ctx); err != nil {
		logSimulationError(err)
		return 1
	}

	if err := s.recordStartTimes(ctx); err != nil {
		logSimulationError(err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Commencing simulation.\n")
	code, runErr := s.run(ctx)
	fmt.Fprintf(os.Stderr, "\nSimulation complete.\n")
	if err := s.recordEndTimes(ctx); err != nil {
		logSimulationError(err)
		return 1
	}

	if err := s.Finish(ctx); err != nil {
		logSimulationError(err)
	}

	switch {
	case runErr != nil:
		fmt.Fprintf(os.Stderr, "*** FAILED *** (%v) after %d cycles\n", runErr, s.endTCycle)
		exitCode = 1
	case code != 0:
		fmt.Fprintf(os.Stderr, "*** FAILED *** (code = %d) after %d cycles\n", code, s.endTCycle)
		exitCode = code
	case s.timedOut:
		fmt.Fprintf(os.Stderr, "*** FAILED *** simulation timed out after %d cycles\n", s.endTCycle)
		exitCode = 1
	default:
		fmt.Fprintf(os.Stderr, "*** PASSED *** after %d cycles\n", s.endTCycle)
		exitCode = 0
	}

	s.printPerformanceSummary()
	return exitCode
}

func logSimulationError(err error) {
	fmt.Fprintf(os.Stderr, "simulation: %v\n", err)
}
