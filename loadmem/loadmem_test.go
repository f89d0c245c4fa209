package loadmem

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

const testMemDataChunk = 2 // 64-bit beats (two 32-bit words)

// fakeDRAM is a minimal hostio.HostIO double that actually backs the
// loadmem register protocol with a byte array, unlike the generic
// metasim loopback model (which only echoes whatever was last written
// to a given address and has no notion of an MMIO-driven memory
// array). Constructing one of these per test keeps DRAM-model
// behavior out of the driver package.
type fakeDRAM struct {
	mem []byte

	writeAddrH, writeAddrL uint32
	writeWordIdx           int

	readAddrH, readAddrL uint32
	readWordIdx          int

	zeroFinished uint32
}

func newFakeDRAM(size int) *fakeDRAM { return &fakeDRAM{mem: make([]byte, size)} }

func (f *fakeDRAM) MMIOWrite(ctx context.Context, addr uint64, data uint32) error {
	switch addr {
	case 0x00: // WAddressH
		f.writeAddrH = data
	case 0x08: // WAddressL
		f.writeAddrL = data
	case 0x10: // WLength
		f.writeWordIdx = 0
	case 0x18: // ZeroOutDRAM
		for i := range f.mem {
			f.mem[i] = 0
		}
		f.zeroFinished = 1
	case 0x20: // WData
		base := (uint64(f.writeAddrH)<<32 | uint64(f.writeAddrL)) + uint64(f.writeWordIdx)*4
		putLE32(f.mem, base, data)
		f.writeWordIdx++
	case 0x30: // RAddressH
		f.readAddrH = data
		f.readWordIdx = 0
	case 0x38: // RAddressL
		f.readAddrL = data
		f.readWordIdx = 0
	}
	return nil
}

func (f *fakeDRAM) MMIORead(ctx context.Context, addr uint64) (uint32, error) {
	switch addr {
	case 0x28: // ZeroFinished
		return f.zeroFinished, nil
	case 0x40: // RData
		base := (uint64(f.readAddrH)<<32 | uint64(f.readAddrL)) + uint64(f.readWordIdx)*4
		v := getLE32(f.mem, base)
		f.readWordIdx++
		return v, nil
	}
	return 0, nil
}

func putLE32(mem []byte, addr uint64, v uint32) {
	for i := 0; i < 4; i++ {
		mem[addr+uint64(i)] = byte(v >> (8 * i))
	}
}

func getLE32(mem []byte, addr uint64) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(mem[addr+uint64(i)]) << (8 * i)
	}
	return v
}

func newTestLoadMem(t *testing.T) (*LoadMem, *fakeDRAM) {
	t.Helper()
	dram := newFakeDRAM(0x2000)
	addrs := MMIOAddrs{
		WAddressH: 0x00, WAddressL: 0x08, WLength: 0x10,
		ZeroOutDRAM: 0x18, WData: 0x20, ZeroFinished: 0x28,
		RAddressH: 0x30, RAddressL: 0x38, RData: 0x40,
	}
	return New(dram, addrs, testMemDataChunk, 64), dram
}

func TestWriteThenReadMemRoundTrips(t *testing.T) {
	l, _ := newTestLoadMem(t)
	ctx := context.Background()

	value := new(big.Int)
	value.SetString("123456789ABCDEF0", 16)

	if err := l.WriteMem(ctx, 0x1000, value); err != nil {
		t.Fatalf("WriteMem: %v", err)
	}
	got, err := l.ReadMem(ctx, 0x1000)
	if err != nil {
		t.Fatalf("ReadMem: %v", err)
	}
	if got.Cmp(value) != 0 {
		t.Errorf("ReadMem = %x, want %x", got, value)
	}
}

func TestZeroOutDRAMWaitsForFlag(t *testing.T) {
	l, dram := newTestLoadMem(t)
	ctx := context.Background()
	dram.mem[0] = 0xFF

	if err := l.ZeroOutDRAM(ctx); err != nil {
		t.Fatalf("ZeroOutDRAM: %v", err)
	}
	if dram.mem[0] != 0 {
		t.Errorf("ZeroOutDRAM did not clear memory")
	}
}

func TestLoadMemFromFileWritesEachBeat(t *testing.T) {
	l, _ := newTestLoadMem(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "image.hex")
	// Two 16-hex-digit (64-bit) beats on one line: second beat first
	// on the line (most-significant beat first), per the file format.
	contents := "22222222222222221111111111111111\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := l.LoadMemFromFile(ctx, path, false); err != nil {
		t.Fatalf("LoadMemFromFile: %v", err)
	}

	first, err := l.ReadMem(ctx, 0)
	if err != nil {
		t.Fatalf("ReadMem(0): %v", err)
	}
	want1 := new(big.Int)
	want1.SetString("1111111111111111", 16)
	if first.Cmp(want1) != 0 {
		t.Errorf("beat at addr 0 = %x, want %x", first, want1)
	}

	second, err := l.ReadMem(ctx, 8)
	if err != nil {
		t.Fatalf("ReadMem(8): %v", err)
	}
	want2 := new(big.Int)
	want2.SetString("2222222222222222", 16)
	if second.Cmp(want2) != 0 {
		t.Errorf("beat at addr 8 = %x, want %x", second, want2)
	}
}

type fakeFastLoader struct {
	path string
}

func (f *fakeFastLoader) LoadMems(path string) error {
	f.path = path
	return nil
}

func TestLoadMemFromFileUsesFastLoaderWhenRequested(t *testing.T) {
	l, _ := newTestLoadMem(t)
	fast := &fakeFastLoader{}
	l.SetFastLoader(fast)

	if err := l.LoadMemFromFile(context.Background(), "/tmp/whatever.hex", true); err != nil {
		t.Fatalf("LoadMemFromFile: %v", err)
	}
	if fast.path != "/tmp/whatever.hex" {
		t.Errorf("fast loader got path %q, want /tmp/whatever.hex", fast.path)
	}
}
