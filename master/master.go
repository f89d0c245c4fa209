// Package master implements the simulation master widget: the
// single MMIO handshake that advances the target's fastest
// clock domain by a requested number of cycles and reports whether the
// target has finished initializing or finished the in-flight step.
package master

import (
	"context"

	"cosimdriver/hostio"
	"cosimdriver/widget"
)

// MMIOAddrs is the generated-header address map for this widget,
// mirroring SIMULATIONMASTER_struct.
type MMIOAddrs struct {
	Step     uint64
	Done     uint64
	InitDone uint64
}

// Master is the widget that starts/stops the target clock.
type Master struct {
	io    hostio.HostIO
	addrs MMIOAddrs
}

// New constructs a Master bound to io at the given register addresses.
func New(io hostio.HostIO, addrs MMIOAddrs) *Master {
	return &Master{io: io, addrs: addrs}
}

// WidgetKind implements widget.Widget.
func (m *Master) WidgetKind() widget.Kind { return widget.KindOf[*Master]() }

// IsInitDone reports whether every target-side widget has signalled
// ready.
func (m *Master) IsInitDone(ctx context.Context) (bool, error) {
	v, err := m.io.MMIORead(ctx, m.addrs.InitDone)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// IsDone reports whether the in-flight step has completed.
func (m *Master) IsDone(ctx context.Context) (bool, error) {
	v, err := m.io.MMIORead(ctx, m.addrs.Done)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Step advances the target's fastest clock by n cycles. n == 0 is a
// no-op that returns immediately without touching MMIO. Callers must
// not call Step again while a previous step is still in flight
// (IsDone() == false); Step does not itself check this.
func (m *Master) Step(ctx context.Context, n uint32, blocking bool) error {
	if n == 0 {
		return nil
	}
	if err := m.io.MMIOWrite(ctx, m.addrs.Step, n); err != nil {
		return err
	}
	if !blocking {
		return nil
	}
	for {
		done, err := m.IsDone(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
