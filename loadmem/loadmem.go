// Package loadmem implements the DRAM-loader widget:
// initializing target DRAM from a hex image or from host-side write
// requests, either over MMIO or, in metasimulation, by writing directly
// into the shared memory backing the RTL DRAM model.
package loadmem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"

	"cosimdriver/bigword"
	"cosimdriver/hostio"
	"cosimdriver/widget"
)

// MMIOAddrs is the generated-header address map for this widget,
// mirroring LOADMEMWIDGET_struct.
type MMIOAddrs struct {
	WAddressH    uint64
	WAddressL    uint64
	WLength      uint64
	ZeroOutDRAM  uint64
	WData        uint64
	ZeroFinished uint64
	RAddressH    uint64
	RAddressL    uint64
	RData        uint64
}

// FastLoader is implemented by a metasimulation backend that can write
// an entire hex image directly into the shared host buffer backing the
// RTL DRAM model, bypassing MMIO entirely. Selected by +fastloadmem;
// it is a pure optimization and must produce
// byte-identical target state to the MMIO path.
type FastLoader interface {
	LoadMems(path string) error
}

// LoadMem is the widget that initializes and inspects target DRAM.
type LoadMem struct {
	io           hostio.HostIO
	addrs        MMIOAddrs
	memDataChunk uint64 // 32-bit words per MMIO beat
	memDataBits  uint64 // mem channel data width, for hex-file chunking

	fast FastLoader
}

// New constructs a LoadMem bound to io. memDataChunk is the number of
// 32-bit words read/written per R_DATA/W_DATA beat; memDataBits is the
// memory channel's AXI4 data width, used to size hex-file line chunks.
func New(io hostio.HostIO, addrs MMIOAddrs, memDataChunk, memDataBits uint64) *LoadMem {
	return &LoadMem{io: io, addrs: addrs, memDataChunk: memDataChunk, memDataBits: memDataBits}
}

// SetFastLoader installs a backend-provided fast path for
// LoadMemFromFile. Passing nil disables it.
func (l *LoadMem) SetFastLoader(f FastLoader) { l.fast = f }

// WidgetKind implements widget.Widget.
func (l *LoadMem) WidgetKind() widget.Kind { return widget.KindOf[*LoadMem]() }

// WriteMem writes a single MEM_DATA_CHUNK-word beat of value at addr.
func (l *LoadMem) WriteMem(ctx context.Context, addr uint64, value *big.Int) error {
	if err := l.io.MMIOWrite(ctx, l.addrs.WAddressH, uint32(addr>>32)); err != nil {
		return err
	}
	if err := l.io.MMIOWrite(ctx, l.addrs.WAddressL, uint32(addr)); err != nil {
		return err
	}
	if err := l.io.MMIOWrite(ctx, l.addrs.WLength, 1); err != nil {
		return err
	}
	return l.writeBeats(ctx, value, int(l.memDataChunk))
}

// WriteMemChunk writes ceil(bytes / (memDataChunk*4)) beats of value
// starting at addr.
func (l *LoadMem) WriteMemChunk(ctx context.Context, addr uint64, value *big.Int, bytes int) error {
	memDataChunkBytes := int(l.memDataChunk) * 4
	numBeats := ceilDiv(bytes, memDataChunkBytes)

	if err := l.io.MMIOWrite(ctx, l.addrs.WAddressH, uint32(addr>>32)); err != nil {
		return err
	}
	if err := l.io.MMIOWrite(ctx, l.addrs.WAddressL, uint32(addr)); err != nil {
		return err
	}
	if err := l.io.MMIOWrite(ctx, l.addrs.WLength, uint32(numBeats)); err != nil {
		return err
	}
	return l.writeBeats(ctx, value, numBeats*int(l.memDataChunk))
}

func (l *LoadMem) writeBeats(ctx context.Context, value *big.Int, totalWords int) error {
	words := bigword.ToChunks(value, totalWords)
	for _, w := range words {
		if err := l.io.MMIOWrite(ctx, l.addrs.WData, w); err != nil {
			return err
		}
	}
	return nil
}

// ReadMem reads a single MEM_DATA_CHUNK-word beat at addr.
func (l *LoadMem) ReadMem(ctx context.Context, addr uint64) (*big.Int, error) {
	if err := l.io.MMIOWrite(ctx, l.addrs.RAddressH, uint32(addr>>32)); err != nil {
		return nil, err
	}
	if err := l.io.MMIOWrite(ctx, l.addrs.RAddressL, uint32(addr)); err != nil {
		return nil, err
	}
	words := make([]uint32, l.memDataChunk)
	for i := range words {
		w, err := l.io.MMIORead(ctx, l.addrs.RData)
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return bigword.FromChunks(words), nil
}

// ZeroOutDRAM requests the target zero every DRAM byte and blocks until
// it reports completion.
func (l *LoadMem) ZeroOutDRAM(ctx context.Context) error {
	if err := l.io.MMIOWrite(ctx, l.addrs.ZeroOutDRAM, 1); err != nil {
		return err
	}
	for {
		v, err := l.io.MMIORead(ctx, l.addrs.ZeroFinished)
		if err != nil {
			return err
		}
		if v != 0 {
			return nil
		}
	}
}

// LoadMemFromFile parses a hex file and writes it to target DRAM
// starting at address 0. Each line is one or more beats of
// memDataBits/4 hex digits, most-significant beat first on the line;
// beats are written from the end of the line backwards, address
// advancing by half the chunk's digit count (bytes) per beat.
//
// If fastpath is true and a FastLoader has been installed, the file is
// instead handed to the backend directly (+fastloadmem).
func (l *LoadMem) LoadMemFromFile(ctx context.Context, path string, fastpath bool) error {
	if fastpath && l.fast != nil {
		return l.fast.LoadMems(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("loadmem: cannot open %s: %w", path, err)
	}
	defer f.Close()

	chunk := int(l.memDataBits / 4)
	var addr uint64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if len(line) == 0 {
			continue
		}
		if len(line)%chunk != 0 {
			return fmt.Errorf("loadmem: line length %d is not a multiple of chunk size %d", len(line), chunk)
		}
		for j := len(line) - chunk; j >= 0; j -= chunk {
			value, ok := new(big.Int).SetString(line[j:j+chunk], 16)
			if !ok {
				return fmt.Errorf("loadmem: invalid hex chunk %q", line[j:j+chunk])
			}
			if err := l.WriteMem(ctx, addr, value); err != nil {
				return err
			}
			addr += uint64(chunk / 2)
		}
	}
	if err := sc.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("loadmem: reading %s: %w", path, err)
	}
	return nil
}

func ceilDiv(a, b int) int { return (a-1)/b + 1 }
