package cliargs

import "testing"

func TestParseRecognizedOptions(t *testing.T) {
	a, err := Parse(`+max-cycles=1000000 +loadmem=/tmp/mem.hex +fastloadmem +zero-out-dram +seed=42 +fuzz-host-timing=5 +fuzz-seed=7 +slotid=0 +bus=pci +domain=0000:00:1d.0 +agfi=agfi-0123 +binary_file=/tmp/bin +debug`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	switch {
	case a.MaxCycles != 1000000:
		t.Errorf("MaxCycles = %d, want 1000000", a.MaxCycles)
	case a.LoadMem != "/tmp/mem.hex":
		t.Errorf("LoadMem = %q", a.LoadMem)
	case !a.FastLoadMem:
		t.Error("FastLoadMem = false, want true")
	case !a.ZeroOutDRAM:
		t.Error("ZeroOutDRAM = false, want true")
	case a.Seed != 42:
		t.Errorf("Seed = %d, want 42", a.Seed)
	case a.FuzzHostTiming != 5:
		t.Errorf("FuzzHostTiming = %d, want 5", a.FuzzHostTiming)
	case a.FuzzSeed != 7:
		t.Errorf("FuzzSeed = %d, want 7", a.FuzzSeed)
	case a.SlotID != 0:
		t.Errorf("SlotID = %d, want 0", a.SlotID)
	case a.Bus != "pci":
		t.Errorf("Bus = %q", a.Bus)
	case a.Domain != "0000:00:1d.0":
		t.Errorf("Domain = %q", a.Domain)
	case a.AGFI != "agfi-0123":
		t.Errorf("AGFI = %q", a.AGFI)
	case a.BinaryFile != "/tmp/bin":
		t.Errorf("BinaryFile = %q", a.BinaryFile)
	case !a.Debug:
		t.Error("Debug = false, want true")
	}
}

func TestFuzzHostTimingDefaultsToOne(t *testing.T) {
	a, err := Parse(`+max-cycles=10`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.FuzzHostTiming != 1 {
		t.Fatalf("FuzzHostTiming default = %d, want 1", a.FuzzHostTiming)
	}
}

func TestBridgePassThroughArgsPreserved(t *testing.T) {
	a, err := Parse(`+prog0=/tmp/prog0.bin +idle-counts=100 +peer-pcis-offset=0x1000 +batch-size=64 +cutbridgeidx0=2 +mm_label=foo +drj_dtb=/tmp/a.dtb +drj_rom=/tmp/a.rom +drj_bin=/tmp/a.bin`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]string{
		"prog0":            "/tmp/prog0.bin",
		"idle-counts":      "100",
		"peer-pcis-offset": "0x1000",
		"batch-size":       "64",
		"cutbridgeidx0":    "2",
		"mm_label":         "foo",
		"drj_dtb":          "/tmp/a.dtb",
		"drj_rom":          "/tmp/a.rom",
		"drj_bin":          "/tmp/a.bin",
	}
	for k, v := range want {
		got, ok := a.BridgeParam(k)
		if !ok {
			t.Errorf("BridgeParam(%q) missing", k)
			continue
		}
		if got != v {
			t.Errorf("BridgeParam(%q) = %q, want %q", k, got, v)
		}
	}
}

func TestQuotedBridgeValueSurvivesTokenizing(t *testing.T) {
	a, err := Parse(`+mm_label="two words"`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, ok := a.BridgeParam("mm_label")
	if !ok {
		t.Fatal("BridgeParam(mm_label) missing")
	}
	if got != "two words" {
		t.Fatalf("BridgeParam(mm_label) = %q, want %q", got, "two words")
	}
}

func TestBareFlagNotStartingWithPlusRejected(t *testing.T) {
	if _, err := ParseTokens([]string{"max-cycles=10"}); err == nil {
		t.Fatal("expected error for argument not starting with '+'")
	}
}

func TestUnrecognizedBareFlagRecorded(t *testing.T) {
	a, err := Parse(`+some-flag`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !a.Flags["some-flag"] {
		t.Fatal("expected Flags[\"some-flag\"] to be true")
	}
}

func TestInvalidIntegerValueErrors(t *testing.T) {
	if _, err := Parse(`+max-cycles=notanumber`); err == nil {
		t.Fatal("expected error for non-numeric +max-cycles")
	}
}
