// Package widget implements the kind-indexed widget container: a
// registry of driver-side Widgets, a singleton lookup per kind, and a
// stable, insertion-ordered list of BridgeDrivers.
//
// Widget classes are identified by a kind token rather than language
// RTTI. reflect.Type serves purely as a comparable key: no two
// unrelated widget types ever compare equal, and the key is computed
// from the concrete type itself, so there is no
// parallel identity mechanism to keep in sync.
package widget

import (
	"context"
	"reflect"
)

// Kind is a process-unique identifier for a widget's concrete type.
type Kind = reflect.Type

// KindOf returns the Kind token for T. Two different concrete widget
// types never produce an equal Kind.
func KindOf[T any]() Kind {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Widget is any driver-side object the registry owns. Bridges are the
// subset that also satisfies BridgeDriver.
type Widget interface {
	// WidgetKind returns this widget's Kind token. Implementations should
	// return KindOf[ConcreteType]() so the registry can index by it.
	WidgetKind() Kind
}

// BridgeDriver is the lifecycle contract every bridge implements.
type BridgeDriver interface {
	Widget

	// Init performs one-time setup. MMIO/push/pull are permitted here.
	// Called after the master reports init-done and after the stream
	// engine, if any, has been initialized.
	Init(ctx context.Context) error

	// Tick is called repeatedly while the master is busy. Tick must
	// return within bounded host time; failing to make progress and
	// returning is not an error.
	Tick(ctx context.Context) error

	// Terminate reports whether this bridge requests simulation shutdown.
	Terminate() bool

	// ExitCode is consulted only once Terminate() has returned true. Zero
	// means the bridge is requesting a clean PASS.
	ExitCode() int

	// Finish performs final cleanup (e.g. emitting CSVs) after the main
	// loop exits. Called on every bridge, in insertion order, regardless
	// of which bridge (if any) requested termination.
	Finish(ctx context.Context) error
}

// StreamHandle is satisfied by the stream engine; a StreamingBridgeDriver
// holds one to move token streams without owning the engine itself.
type StreamHandle interface {
	Pull(ctx context.Context, idx int, dest []byte, requiredBytes int) (int, error)
	Push(ctx context.Context, idx int, src []byte, requiredBytes int) (int, error)
	PullFlush(ctx context.Context, idx int) error
	PushFlush(ctx context.Context, idx int) error
}
