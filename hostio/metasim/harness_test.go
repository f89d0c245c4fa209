package metasim

import (
	"context"
	"testing"
	"time"
)

func newTestHarness(t *testing.T) (*Harness, *LoopbackModel) {
	t.Helper()
	bus := NewBusState(64, 1)
	model := NewLoopbackModel(64)
	h := New(context.Background(), bus, model, Config{Seed: 1, MaxHostDelay: 1})
	t.Cleanup(h.Stop)
	return h, model
}

func TestMMIORoundTrip(t *testing.T) {
	h, _ := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := h.MMIOWrite(ctx, 0x10, 0xCAFEBABE); err != nil {
		t.Fatalf("MMIOWrite: %v", err)
	}
	got, err := h.MMIORead(ctx, 0x10)
	if err != nil {
		t.Fatalf("MMIORead: %v", err)
	}
	if got != 0xCAFEBABE {
		t.Errorf("MMIORead = %#x, want %#x", got, 0xCAFEBABE)
	}
}

func TestMMIOUnwrittenRegisterReadsZero(t *testing.T) {
	h, _ := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := h.MMIORead(ctx, 0x40)
	if err != nil {
		t.Fatalf("MMIORead: %v", err)
	}
	if got != 0 {
		t.Errorf("MMIORead of unwritten register = %#x, want 0", got)
	}
}

func TestCPUManagedAXI4RoundTrip(t *testing.T) {
	h, _ := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := h.CPUManagedAXI4Write(ctx, 0, src, len(src))
	if err != nil {
		t.Fatalf("CPUManagedAXI4Write: %v", err)
	}
	if n != len(src) {
		t.Fatalf("CPUManagedAXI4Write wrote %d bytes, want %d", n, len(src))
	}

	dest := make([]byte, len(src))
	n, err = h.CPUManagedAXI4Read(ctx, 0, dest, len(dest))
	if err != nil {
		t.Fatalf("CPUManagedAXI4Read: %v", err)
	}
	if n != len(dest) {
		t.Fatalf("CPUManagedAXI4Read read %d bytes, want %d", n, len(dest))
	}
	for i := range src {
		if dest[i] != src[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, dest[i], src[i])
		}
	}
}

func TestCPUManagedAXI4OutOfRangeIsFatal(t *testing.T) {
	h, _ := newTestHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.CPUManagedAXI4Read(ctx, 1000, make([]byte, 8), 8)
	if err == nil {
		t.Fatal("expected error reading out-of-range address")
	}
}

func TestGetMemoryBaseAliasesSharedBuffer(t *testing.T) {
	h, _ := newTestHarness(t)
	base := h.GetMemoryBase()
	if len(base) != 64 {
		t.Fatalf("GetMemoryBase len = %d, want 64", len(base))
	}
	base[0] = 0x42
	if h.GetMemoryBase()[0] != 0x42 {
		t.Fatal("GetMemoryBase did not alias the shared buffer")
	}
}

func TestStopJoinsRtlsimGoroutine(t *testing.T) {
	bus := NewBusState(0, 0)
	model := NewLoopbackModel(0)
	h := New(context.Background(), bus, model, Config{Seed: 1, MaxHostDelay: 1})
	h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := h.MMIORead(ctx, 0); err == nil {
		t.Fatal("expected MMIORead after Stop to fail with a deadline error")
	}
}
