// Package peekpoke implements the test-only peek/poke bridge: a named
// map of input/output ports onto MMIO addresses, with
// arbitrary-precision wide-value variants. Step and is_done simply
// defer to the master widget rather than re-deriving step semantics.
package peekpoke

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cosimdriver/bigword"
	"cosimdriver/hostio"
	"cosimdriver/master"
	"cosimdriver/widget"
	"cosimdriver/x/mathx"
)

// MMIOAddrs is the generated-header address map for this widget,
// mirroring PEEKPOKEBRIDGEMODULE_struct.
type MMIOAddrs struct {
	Step            uint64
	Done            uint64
	PrecisePeekable uint64
}

// blockingTimeout bounds the wait for the widget's done flag;
// stableTimeout bounds the shorter wait for settled peek values.
const (
	blockingTimeout = 10 * time.Second
	stableTimeout   = 100 * time.Millisecond
)

// port is one named input or output port: its base MMIO address and
// the number of 32-bit chunks a wide-value transfer streams across.
type port struct {
	address uint64
	chunks  uint32
}

// PeekPoke is the test-only bridge that drives the DUT's top-level
// ports directly, bypassing any user-authored bridge logic. It should
// only appear in a test harness.
type PeekPoke struct {
	io     hostio.HostIO
	addrs  MMIOAddrs
	master *master.Master

	inputs  map[string]port
	outputs map[string]port

	reqTimeout  bool
	reqUnstable bool
}

// New constructs a PeekPoke bound to io and addrs, with the given
// named input and output ports.
func New(io hostio.HostIO, addrs MMIOAddrs, m *master.Master, inputs, outputs map[string]port) *PeekPoke {
	return &PeekPoke{io: io, addrs: addrs, master: m, inputs: inputs, outputs: outputs}
}

// Port describes one named port for NewPorts: its MMIO base address
// and 32-bit chunk width.
type Port struct {
	Name    string
	Address uint64
	Chunks  uint32
}

// NewPorts builds the input/output maps New expects from the flat
// Port lists the generated header supplies. Chunks is clamped to at
// least 1: a zero-chunk port would make PeekWide/PokeWide silently
// move nothing, which is never what a generated header means by a
// port entry.
func NewPorts(inputs, outputs []Port) (map[string]port, map[string]port) {
	in := make(map[string]port, len(inputs))
	for _, p := range inputs {
		in[p.Name] = port{address: p.Address, chunks: mathx.Max(p.Chunks, 1)}
	}
	out := make(map[string]port, len(outputs))
	for _, p := range outputs {
		out[p.Name] = port{address: p.Address, chunks: mathx.Max(p.Chunks, 1)}
	}
	return in, out
}

// WidgetKind implements widget.Widget.
func (p *PeekPoke) WidgetKind() widget.Kind { return widget.KindOf[*PeekPoke]() }

// Timeout reports whether the last poke/peek call timed out waiting
// for the widget to become ready.
func (p *PeekPoke) Timeout() bool { return p.reqTimeout }

// Unstable reports whether the last blocking peek observed an
// unstable (not-yet-settled) value.
func (p *PeekPoke) Unstable() bool { return p.reqUnstable }

func (p *PeekPoke) waitOn(ctx context.Context, addr uint64, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		v, err := p.io.MMIORead(ctx, addr)
		if err != nil {
			return false, err
		}
		if v != 0 {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}
	}
}

// Poke writes a 32-bit value to the named input port. If blocking, it
// waits up to 10s for the widget to signal ready first; on timeout,
// Timeout() reports true and nothing is written.
func (p *PeekPoke) Poke(ctx context.Context, name string, value uint32, blocking bool) error {
	p.reqTimeout = false
	p.reqUnstable = false

	prt, ok := p.inputs[name]
	if !ok {
		return fmt.Errorf("peekpoke: poke: unknown input port %q", name)
	}

	if blocking {
		ready, err := p.waitOn(ctx, p.addrs.Done, blockingTimeout)
		if err != nil {
			return err
		}
		if !ready {
			p.reqTimeout = true
			return nil
		}
	}

	return p.io.MMIOWrite(ctx, prt.address, value)
}

// Peek reads a 32-bit value from the named output port. If blocking,
// it waits up to 10s for readiness, then a further 100ms for the
// precise-peekable flag; Unstable() reports whether that second wait
// timed out.
func (p *PeekPoke) Peek(ctx context.Context, name string, blocking bool) (uint32, error) {
	p.reqTimeout = false
	p.reqUnstable = false

	prt, ok := p.outputs[name]
	if !ok {
		return 0, fmt.Errorf("peekpoke: peek: unknown output port %q", name)
	}

	if blocking {
		ready, err := p.waitOn(ctx, p.addrs.Done, blockingTimeout)
		if err != nil {
			return 0, err
		}
		if !ready {
			p.reqTimeout = true
			return 0, nil
		}
		stable, err := p.waitOn(ctx, p.addrs.PrecisePeekable, stableTimeout)
		if err != nil {
			return 0, err
		}
		p.reqUnstable = !stable
	}

	return p.io.MMIORead(ctx, prt.address)
}

// SampleValue is a non-blocking Peek.
func (p *PeekPoke) SampleValue(ctx context.Context, name string) (uint32, error) {
	return p.Peek(ctx, name, false)
}

// PokeWide writes an arbitrary-precision value across the named input
// port's chunk run, one 32-bit little-endian word per MMIO offset
// (chunk 0 at address, chunk 1 at address+4, ...). Chunks beyond the
// value's width are zero-filled.
func (p *PeekPoke) PokeWide(ctx context.Context, name string, value *big.Int) error {
	p.reqTimeout = false
	p.reqUnstable = false

	prt, ok := p.inputs[name]
	if !ok {
		return fmt.Errorf("peekpoke: poke: unknown input port %q", name)
	}

	chunks := bigword.ToChunks(value, int(prt.chunks))
	for i, word := range chunks {
		if err := p.io.MMIOWrite(ctx, prt.address+uint64(i)*4, word); err != nil {
			return err
		}
	}
	return nil
}

// PeekWide reads an arbitrary-precision value across the named output
// port's chunk run.
func (p *PeekPoke) PeekWide(ctx context.Context, name string) (*big.Int, error) {
	p.reqTimeout = false
	p.reqUnstable = false

	prt, ok := p.outputs[name]
	if !ok {
		return nil, fmt.Errorf("peekpoke: peek: unknown output port %q", name)
	}

	chunks := make([]uint32, prt.chunks)
	for i := range chunks {
		v, err := p.io.MMIORead(ctx, prt.address+uint64(i)*4)
		if err != nil {
			return nil, err
		}
		chunks[i] = v
	}
	return bigword.FromChunks(chunks), nil
}

// IsDone defers to the master widget.
func (p *PeekPoke) IsDone(ctx context.Context) (bool, error) { return p.master.IsDone(ctx) }

// Step defers to the master widget.
func (p *PeekPoke) Step(ctx context.Context, n uint32, blocking bool) error {
	return p.master.Step(ctx, n, blocking)
}
