// Package scheduler implements the systematic task scheduler: it
// turns a set of cycle-deadline tasks into the largest safe step size
// the driver can request before any of them needs to run.
package scheduler

import (
	"cosimdriver/errcode"
	"cosimdriver/x/mathx"
)

// MaxMidasStep is the largest step size the master's STEP register can
// hold: the simulation bus is 32 bits wide.
const MaxMidasStep = uint64(1)<<32 - 1

// Task runs the work due at its registered cycle and returns the
// number of target cycles until it next wants to run.
type Task func() uint64

type taskEntry struct {
	task      Task
	nextCycle uint64
}

// Scheduler tracks the target cycle and a set of recurring tasks, each
// with its own next-due cycle, mirroring systematic_scheduler_t.
type Scheduler struct {
	defaultStepSize uint64
	currentCycle    uint64
	maxCycles       uint64
	tasks           []taskEntry
}

// New returns a Scheduler with no registered tasks and no cycle limit.
func New() *Scheduler {
	return &Scheduler{
		defaultStepSize: MaxMidasStep,
		maxCycles:       ^uint64(0),
	}
}

// SetMaxCycles bounds the simulation horizon (+max-cycles).
func (s *Scheduler) SetMaxCycles(n uint64) { s.maxCycles = n }

// RegisterTask adds a task that should first run at firstCycle.
func (s *Scheduler) RegisterTask(firstCycle uint64, task Task) {
	s.tasks = append(s.tasks, taskEntry{task: task, nextCycle: firstCycle})
}

// GetLargestStepsize returns the number of target cycles the driver
// may safely advance before any task needs to run, and advances the
// tracked current cycle by that amount. It panics with an
// *errcode.E (AssertionFired, ClassFatalTarget) if no forward progress
// would be made —
// an internal scheduling bug, never a user-reachable condition.
func (s *Scheduler) GetLargestStepsize() uint32 {
	nextCycle := s.currentCycle + s.defaultStepSize
	nextCycle = mathx.Min(nextCycle, s.maxCycles)

	for _, t := range s.tasks {
		nextCycle = mathx.Min(nextCycle, t.nextCycle)
	}

	if nextCycle-s.currentCycle > MaxMidasStep {
		panic(&errcode.E{C: errcode.AssertionFired, Op: "scheduler.GetLargestStepsize",
			Msg: "computed step exceeds MAX_MIDAS_STEP"})
	}
	step := nextCycle - s.currentCycle
	if step == 0 {
		panic(&errcode.E{C: errcode.AssertionFired, Op: "scheduler.GetLargestStepsize",
			Msg: "no forward progress"})
	}
	s.currentCycle = nextCycle
	return uint32(step)
}

// RunScheduledTasks invokes every task whose next_cycle equals the
// current cycle. Callers must ensure the simulator is idle
// (master.IsDone() == true) before calling this.
func (s *Scheduler) RunScheduledTasks() {
	for i := range s.tasks {
		t := &s.tasks[i]
		if t.nextCycle == s.currentCycle {
			t.nextCycle += t.task()
		}
	}
}

// FinishedScheduledTasks reports whether the scheduler has reached its
// cycle horizon (+max-cycles).
func (s *Scheduler) FinishedScheduledTasks() bool {
	return s.currentCycle == s.maxCycles
}

// CurrentCycle returns the scheduler's tracked target cycle.
func (s *Scheduler) CurrentCycle() uint64 { return s.currentCycle }
