// Package clockmodule implements the clock bridge widget:
// it reads the host and target cycle counters, each a 64-bit value
// latched and read back as two 32-bit halves over MMIO.
package clockmodule

import (
	"context"

	"cosimdriver/hostio"
	"cosimdriver/widget"
)

// MMIOAddrs is the generated-header address map for this widget,
// mirroring CLOCKBRIDGEMODULE_struct.
type MMIOAddrs struct {
	HCycle0     uint64
	HCycle1     uint64
	HCycleLatch uint64
	TCycle0     uint64
	TCycle1     uint64
	TCycleLatch uint64
}

// ClockModule reads host and target cycle counters.
type ClockModule struct {
	io    hostio.HostIO
	addrs MMIOAddrs
}

// New constructs a ClockModule bound to io at the given register
// addresses.
func New(io hostio.HostIO, addrs MMIOAddrs) *ClockModule {
	return &ClockModule{io: io, addrs: addrs}
}

// WidgetKind implements widget.Widget.
func (c *ClockModule) WidgetKind() widget.Kind { return widget.KindOf[*ClockModule]() }

// TCycle returns the current target cycle of the fastest clock, based
// on the number of clock tokens enqueued (it will report a value at
// least as large as the true target cycle).
func (c *ClockModule) TCycle(ctx context.Context) (uint64, error) {
	return c.latchedRead(ctx, c.addrs.TCycleLatch, c.addrs.TCycle0, c.addrs.TCycle1)
}

// HCycle returns the current host cycle as measured by a hardware
// counter.
func (c *ClockModule) HCycle(ctx context.Context) (uint64, error) {
	return c.latchedRead(ctx, c.addrs.HCycleLatch, c.addrs.HCycle0, c.addrs.HCycle1)
}

func (c *ClockModule) latchedRead(ctx context.Context, latch, lo, hi uint64) (uint64, error) {
	if err := c.io.MMIOWrite(ctx, latch, 1); err != nil {
		return 0, err
	}
	low, err := c.io.MMIORead(ctx, lo)
	if err != nil {
		return 0, err
	}
	high, err := c.io.MMIORead(ctx, hi)
	if err != nil {
		return 0, err
	}
	return uint64(high)<<32 | uint64(low), nil
}
