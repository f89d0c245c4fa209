// Command cosim-driver is the host-side entry point: it parses the
// plus-arg command line, builds the widget registry against a backend,
// runs the master/bridge-tick loop to completion, and reports
// PASS/FAILED/timeout on exit.
//
// The only backend wired in here is metasimulation (hostio/metasim):
// a runnable demonstration against a minimal in-process RTL stand-in
// rather than a real FPGA image and its generated bridge-instance
// header. The default invocation is a bounded NOP run; +loadmem and
// +replay add the DRAM-preload and record-replay flows.
package main

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"

	"cosimdriver/bigword"
	"cosimdriver/bridges/replay"
	"cosimdriver/cliargs"
	"cosimdriver/clockmodule"
	"cosimdriver/hostio/metasim"
	"cosimdriver/loadmem"
	"cosimdriver/master"
	"cosimdriver/peekpoke"
	"cosimdriver/scheduler"
	"cosimdriver/simulation"
	"cosimdriver/target"
	"cosimdriver/widget"
)

// MMIO address map. A real build gets this from the FPGA toolchain's
// generated header; this demo binary hardcodes one.
const (
	addrStep        = 0x0000
	addrDone        = 0x0008
	addrInitDone    = 0x0010
	addrHCycleLatch = 0x0020
	addrHCycle0     = 0x0028
	addrHCycle1     = 0x0030
	addrTCycleLatch = 0x0038
	addrTCycle0     = 0x0040
	addrTCycle1     = 0x0048

	addrLMWAddrH    = 0x0100
	addrLMWAddrL    = 0x0108
	addrLMWLength   = 0x0110
	addrLMZeroOut   = 0x0118
	addrLMWData     = 0x0120
	addrLMZeroDone  = 0x0128
	addrLMRAddrH    = 0x0130
	addrLMRAddrL    = 0x0138
	addrLMRData     = 0x0140

	addrPPDone    = addrDone
	addrPPStep    = addrStep
	addrPPPrecise = 0x0200

	addrPortIn0  = 0x0300
	addrPortOut0 = 0x0308
)

// defaultDemoMaxCycles is the target-cycle horizon used when
// +max-cycles= is not given.
const defaultDemoMaxCycles = 10

func main() {
	os.Exit(run())
}

func run() int {
	args, err := cliargs.ParseTokens(os.Args[1:])
	if err != nil {
		log.Printf("cosim-driver: %v", err)
		return 1
	}

	tgt := target.New("", target.AXI4Config{IDBits: 4, AddrBits: 32, DataBits: 32},
		target.AXI4Config{IDBits: 4, AddrBits: 34, DataBits: 64}, 1, nil, nil)

	bus := metasim.NewBusState(0, tgt.MemNumChannels)
	model := newDemoModel(1<<20, demoModelAddrs{
		step: addrStep, done: addrDone,
		hcycle0: addrHCycle0, hcycle1: addrHCycle1,
		tcycle0: addrTCycle0, tcycle1: addrTCycle1,
		lmWAddrH: addrLMWAddrH, lmWAddrL: addrLMWAddrL, lmWLength: addrLMWLength,
		lmWData: addrLMWData, lmZeroOut: addrLMZeroOut, lmZeroDone: addrLMZeroDone,
		lmRAddrH: addrLMRAddrH, lmRAddrL: addrLMRAddrL, lmRData: addrLMRData,
	})
	harness := metasim.New(context.Background(), bus, model, metasim.Config{
		Seed:         args.FuzzSeed,
		MaxHostDelay: args.FuzzHostTiming,
	})
	defer harness.Stop()

	reg := widget.New()

	m := master.New(harness, master.MMIOAddrs{Step: addrStep, Done: addrDone, InitDone: addrInitDone})
	reg.AddWidget(m)

	clk := clockmodule.New(harness, clockmodule.MMIOAddrs{
		HCycle0: addrHCycle0, HCycle1: addrHCycle1, HCycleLatch: addrHCycleLatch,
		TCycle0: addrTCycle0, TCycle1: addrTCycle1, TCycleLatch: addrTCycleLatch,
	})
	reg.AddWidget(clk)

	lm := loadmem.New(harness, loadmem.MMIOAddrs{
		WAddressH: addrLMWAddrH, WAddressL: addrLMWAddrL, WLength: addrLMWLength,
		ZeroOutDRAM: addrLMZeroOut, WData: addrLMWData, ZeroFinished: addrLMZeroDone,
		RAddressH: addrLMRAddrH, RAddressL: addrLMRAddrL, RData: addrLMRData,
	}, uint64(tgt.MemDataChunk()), uint64(tgt.Mem.DataBits))
	reg.AddWidget(lm)

	ppAddrs := peekpoke.MMIOAddrs{Step: addrPPStep, Done: addrPPDone, PrecisePeekable: addrPPPrecise}
	in, out := peekpoke.NewPorts(
		[]peekpoke.Port{{Name: "io_in", Address: addrPortIn0, Chunks: 1}},
		[]peekpoke.Port{{Name: "io_out", Address: addrPortOut0, Chunks: 1}},
	)
	pp := peekpoke.New(harness, ppAddrs, m, in, out)
	reg.AddWidget(pp)

	sched := scheduler.New()
	maxCycles := args.MaxCycles
	if maxCycles == 0 {
		// Without a real generated header's task set there is nothing
		// to size the horizon from, so an unset +max-cycles= defaults
		// to a short bounded NOP run rather than the scheduler's own
		// unbounded default.
		maxCycles = defaultDemoMaxCycles
	}
	sched.SetMaxCycles(maxCycles)

	if args.ZeroOutDRAM {
		if err := lm.ZeroOutDRAM(context.Background()); err != nil {
			log.Printf("cosim-driver: zero-out-dram: %v", err)
			return 1
		}
	}
	if args.LoadMem != "" {
		if err := lm.LoadMemFromFile(context.Background(), args.LoadMem, args.FastLoadMem); err != nil {
			log.Printf("cosim-driver: loadmem: %v", err)
			return 1
		}
	}

	if path, ok := args.BridgeParam("replay"); ok {
		rb, err := replay.New(pp, lm, path)
		if err != nil {
			log.Printf("cosim-driver: replay: %v", err)
			return 1
		}
		reg.AddBridge(rb)
	}

	if args.Debug {
		logDebugRegisters(harness)
	}

	sim := simulation.New(reg, m, clk, sched)
	return sim.ExecuteSimulationFlow(context.Background())
}

// logDebugRegisters reads a fixed set of diagnostic registers at
// setup under +debug, formatting each with bigword.FormatWideHex.
func logDebugRegisters(h *metasim.Harness) {
	for _, addr := range []uint64{addrInitDone, addrDone} {
		v, err := h.MMIORead(context.Background(), addr)
		if err != nil {
			log.Printf("cosim-driver: debug read %#x: %v", addr, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "[debug] reg %#x = 0x%s\n", addr, bigword.FormatWideHex(big.NewInt(int64(v)), 1))
	}
}
