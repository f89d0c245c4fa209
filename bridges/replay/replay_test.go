package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cosimdriver/hostio/metasim"
	"cosimdriver/master"
	"cosimdriver/peekpoke"
)

func newTestPeekPoke(t *testing.T) *peekpoke.PeekPoke {
	t.Helper()
	bus := metasim.NewBusState(0, 0)
	model := metasim.NewLoopbackModel(0)
	h := metasim.New(context.Background(), bus, model, metasim.Config{Seed: 1, MaxHostDelay: 1})
	t.Cleanup(h.Stop)

	addrs := peekpoke.MMIOAddrs{Step: 0x00, Done: 0x08, PrecisePeekable: 0x10}
	m := master.New(h, master.MMIOAddrs{Step: 0x00, Done: 0x08, InitDone: 0x18})
	in, out := peekpoke.NewPorts(
		[]peekpoke.Port{{Name: "a", Address: 0x20, Chunks: 1}},
		[]peekpoke.Port{{Name: "b", Address: 0x28, Chunks: 1}},
	)

	// The loopback model only echoes register writes, so arm the done
	// and stable-peeks flags up front: blocking pokes/peeks and STEP's
	// is_done poll then complete immediately instead of spinning out
	// their timeouts against a register nothing ever sets.
	ctx := context.Background()
	if err := h.MMIOWrite(ctx, 0x08, 1); err != nil {
		t.Fatalf("MMIOWrite done: %v", err)
	}
	if err := h.MMIOWrite(ctx, 0x10, 1); err != nil {
		t.Fatalf("MMIOWrite precise-peekable: %v", err)
	}
	return peekpoke.New(h, addrs, m, in, out)
}

func writeReplayFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.txt")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReplayDrivesPokeAndStep(t *testing.T) {
	pp := newTestPeekPoke(t)
	path := writeReplayFile(t, "a 2a\nSTEP a\n// comment\n")

	b, err := New(pp, nil, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 2 && !b.Terminate(); i++ {
		if err := b.Tick(ctx); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if !b.Terminate() {
		t.Fatalf("want Terminate() true after exhausting file")
	}
	if b.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0", b.ExitCode())
	}
}

func TestReplayExpectMismatchFails(t *testing.T) {
	pp := newTestPeekPoke(t)
	// b's register is untouched (reads back 0 from the loopback model),
	// so expecting a nonzero value must mismatch.
	path := writeReplayFile(t, "EXPECT b 7\n")

	b, err := New(pp, nil, path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := b.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !b.Terminate() {
		t.Fatalf("want Terminate() true after a mismatch")
	}
	if b.ExitCode() != 1 {
		t.Fatalf("ExitCode() = %d, want 1", b.ExitCode())
	}
	if b.Mismatch() == "" {
		t.Fatalf("want a non-empty Mismatch() diagnostic")
	}
}

func TestReplayParseRejectsBadRecord(t *testing.T) {
	path := writeReplayFile(t, "STEP not-hex\n")
	if _, err := New(nil, nil, path); err == nil {
		t.Fatalf("want parse error for non-hex STEP argument")
	}
}
