// Package replay implements the snapshot/replay bridge: a
// newline-delimited record file that drives PeekPoke and asserts
// expected values, so a simulation can be scripted without a
// per-target test harness.
//
// Record grammar, one per line, hex values throughout:
//
//	STEP <n>                drive the master forward n target cycles
//	EXPECT <signal> <value> peek <signal>; mismatch is fatal (exit 1)
//	<signal> <value>        poke <signal> with <value>
//	dram[<addr>] <value>    write_mem(<addr>, <value>) via loadmem
//	// ...                  comment; ignored
//
// Blank lines are ignored.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"cosimdriver/loadmem"
	"cosimdriver/peekpoke"
	"cosimdriver/widget"
)

type recordKind int

const (
	recStep recordKind = iota
	recExpect
	recPoke
	recDRAM
)

type record struct {
	kind   recordKind
	signal string
	addr   uint64
	value  *big.Int
	n      uint32
}

// Bridge drives a replay file against PeekPoke (and LoadMem for
// dram[...] records) one record per Tick, terminating on the first
// EXPECT mismatch (nonzero exit code) or at end of file (exit code 0).
type Bridge struct {
	pp   *peekpoke.PeekPoke
	lm   *loadmem.LoadMem
	recs []record
	pos  int

	done     bool
	exitCode int
	mismatch string
}

// New parses path into a Bridge that will drive pp (and lm, for
// dram[...] records) through its records in order.
func New(pp *peekpoke.PeekPoke, lm *loadmem.LoadMem, path string) (*Bridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay: open %s: %w", path, err)
	}
	defer f.Close()

	var recs []record
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		r, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("replay: %s:%d: %w", path, lineNo, err)
		}
		recs = append(recs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("replay: reading %s: %w", path, err)
	}
	return &Bridge{pp: pp, lm: lm, recs: recs}, nil
}

func parseLine(line string) (record, error) {
	fields := strings.Fields(line)
	switch {
	case fields[0] == "STEP":
		if len(fields) != 2 {
			return record{}, fmt.Errorf("STEP wants 1 argument, got %d", len(fields)-1)
		}
		n, err := strconv.ParseUint(fields[1], 16, 32)
		if err != nil {
			return record{}, fmt.Errorf("STEP: %w", err)
		}
		return record{kind: recStep, n: uint32(n)}, nil

	case fields[0] == "EXPECT":
		if len(fields) != 3 {
			return record{}, fmt.Errorf("EXPECT wants 2 arguments, got %d", len(fields)-1)
		}
		v, ok := new(big.Int).SetString(fields[2], 16)
		if !ok {
			return record{}, fmt.Errorf("EXPECT: invalid hex value %q", fields[2])
		}
		return record{kind: recExpect, signal: fields[1], value: v}, nil

	case strings.HasPrefix(fields[0], "dram[") && strings.HasSuffix(fields[0], "]"):
		if len(fields) != 2 {
			return record{}, fmt.Errorf("dram[...] wants 1 argument, got %d", len(fields)-1)
		}
		addrStr := strings.TrimSuffix(strings.TrimPrefix(fields[0], "dram["), "]")
		addr, err := strconv.ParseUint(addrStr, 16, 64)
		if err != nil {
			return record{}, fmt.Errorf("dram[...]: invalid address %q: %w", addrStr, err)
		}
		v, ok := new(big.Int).SetString(fields[1], 16)
		if !ok {
			return record{}, fmt.Errorf("dram[...]: invalid hex value %q", fields[1])
		}
		return record{kind: recDRAM, addr: addr, value: v}, nil

	default:
		if len(fields) != 2 {
			return record{}, fmt.Errorf("poke record wants 2 fields, got %d", len(fields))
		}
		v, ok := new(big.Int).SetString(fields[1], 16)
		if !ok {
			return record{}, fmt.Errorf("invalid hex value %q", fields[1])
		}
		return record{kind: recPoke, signal: fields[0], value: v}, nil
	}
}

// WidgetKind implements widget.Widget.
func (b *Bridge) WidgetKind() widget.Kind { return widget.KindOf[*Bridge]() }

// Init is a no-op; PeekPoke and LoadMem are already initialized by the
// time bridges are initialized.
func (b *Bridge) Init(ctx context.Context) error { return nil }

// Tick processes exactly one record, dispatching it to PeekPoke or
// LoadMem. An EXPECT mismatch sets Terminate()=true with exit code 1;
// reaching end of file sets Terminate()=true with exit code 0.
func (b *Bridge) Tick(ctx context.Context) error {
	if b.done {
		return nil
	}
	if b.pos >= len(b.recs) {
		b.done = true
		return nil
	}
	r := b.recs[b.pos]
	b.pos++

	switch r.kind {
	case recStep:
		return b.pp.Step(ctx, r.n, true)

	case recPoke:
		v := uint32(r.value.Uint64())
		return b.pp.Poke(ctx, r.signal, v, true)

	case recExpect:
		got, err := b.pp.Peek(ctx, r.signal, true)
		if err != nil {
			return err
		}
		want := uint32(r.value.Uint64())
		if got != want {
			b.done = true
			b.exitCode = 1
			b.mismatch = fmt.Sprintf("EXPECT %s: got %#x, want %#x", r.signal, got, want)
			return nil
		}

	case recDRAM:
		if b.lm == nil {
			return fmt.Errorf("replay: dram[%#x] record but no LoadMem wired", r.addr)
		}
		return b.lm.WriteMem(ctx, r.addr, r.value)
	}
	return nil
}

// Terminate reports true once the file is exhausted or an EXPECT
// mismatched.
func (b *Bridge) Terminate() bool { return b.done || b.pos >= len(b.recs) }

// ExitCode is 0 on a clean end-of-file, 1 on the first EXPECT mismatch.
func (b *Bridge) ExitCode() int { return b.exitCode }

// Mismatch returns the diagnostic for the EXPECT record that failed,
// empty if none did.
func (b *Bridge) Mismatch() string { return b.mismatch }

func (b *Bridge) Finish(ctx context.Context) error { return nil }
