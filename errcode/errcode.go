// Package errcode classifies driver errors: a stable, comparable Code
// newtype plus an optional wrapper that attaches an operation name and
// a cause. Codes bucket into the driver's four outcomes — fatal host
// error, fatal target error, recoverable condition, and timeout.
package errcode

// Code is a stable, log-facing error identifier. It is a string newtype,
// comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Class reports which of the four taxonomy buckets a Code belongs to.
type Class int

const (
	// ClassRecoverable errors are not thrown; callers observe them as a
	// zero-length transfer or a false/zero return and retry later.
	ClassRecoverable Class = iota
	// ClassFatalHost errors abort the process after a diagnostic.
	ClassFatalHost
	// ClassFatalTarget errors set Terminate() = true with a nonzero exit
	// code; the process continues to drain to simulation_finish.
	ClassFatalTarget
	// ClassTimeout errors are a bounded wait expiring without progress.
	ClassTimeout
)

// Canonical codes (short, stable, grouped by taxonomy bucket).
const (
	OK Code = "ok"

	// Recoverable.
	ZeroProgress      Code = "zero_progress"
	InsufficientData  Code = "insufficient_data"
	InsufficientSpace Code = "insufficient_space"

	// Fatal host.
	MMIOMapFailed        Code = "mmio_map_failed"
	DMAShortTransfer     Code = "dma_short_transfer"
	StreamOversubscribed Code = "stream_oversubscribed"
	DuplicateSingleton   Code = "duplicate_singleton"
	UnknownWidgetKind    Code = "unknown_widget_kind"

	// Fatal target.
	StreamFlushDeadlock Code = "stream_flush_deadlock"
	AssertionFired      Code = "assertion_fired"
	CosimDivergence     Code = "cosim_divergence"

	// Timeout.
	PeekPokeTimeout  Code = "peek_poke_timeout"
	MaxCyclesReached Code = "max_cycles_reached"
	FlushTimeout     Code = "flush_timeout"

	// Generic fallback, used only when no more specific code applies.
	Unknown Code = "unknown"
)

// classOf is the static bucket membership for every canonical code.
var classOf = map[Code]Class{
	ZeroProgress:      ClassRecoverable,
	InsufficientData:  ClassRecoverable,
	InsufficientSpace: ClassRecoverable,

	MMIOMapFailed:        ClassFatalHost,
	DMAShortTransfer:     ClassFatalHost,
	StreamOversubscribed: ClassFatalHost,
	DuplicateSingleton:   ClassFatalHost,
	UnknownWidgetKind:    ClassFatalHost,

	StreamFlushDeadlock: ClassFatalTarget,
	AssertionFired:      ClassFatalTarget,
	CosimDivergence:     ClassFatalTarget,

	PeekPokeTimeout:  ClassTimeout,
	MaxCyclesReached: ClassTimeout,
	FlushTimeout:     ClassTimeout,
}

// Class reports c's taxonomy bucket. Unrecognized codes are treated as
// fatal host errors, the conservative default.
func (c Code) Class() Class {
	if cl, ok := classOf[c]; ok {
		return cl
	}
	return ClassFatalHost
}

// IsFatal reports whether c should abort the process (host) or the
// target run (target) rather than be retried.
func (c Code) IsFatal() bool {
	cl := c.Class()
	return cl == ClassFatalHost || cl == ClassFatalTarget
}

// E wraps a Code with an operation name, a human message, and an
// optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := e.Op
	if s != "" {
		s += ": "
	}
	s += string(e.C)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Unknown.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Unknown
}
