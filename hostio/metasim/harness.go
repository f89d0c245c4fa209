// Package metasim implements the in-process stand-in for a real FPGA:
// a second goroutine plays the role of the RTL simulator thread, and
// the two contexts hand off control on a strict turn-taking rendezvous
// instead of sharing mutable state.
//
// The handoff is a single-token protocol: driverTurn and rtlsimTurn
// are unbuffered channels, and a send/receive pair stands in for
// "set flag, notify, wait" between the two contexts. Because exactly
// one side ever holds the token, BusState needs no lock of its own:
// the handoff is the lock.
package metasim

import (
	"context"
	"math/rand"
)

// RTLModel is supplied by whatever component fakes the design under
// simulation. Tick is invoked once per DPI cycle from the rtlsim
// goroutine: it consumes the driver's outstanding requests from bus and
// writes back responses, exactly mirroring one Verilator/VCS eval.
type RTLModel interface {
	Tick(bus *BusState)
}

// Harness runs the rendezvous loop and exposes HostIO (and its optional
// DMA interfaces) to the driver.
type Harness struct {
	bus   *BusState
	model RTLModel

	driverTurn chan struct{}
	rtlsimTurn chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}

	rng          *rand.Rand
	maxHostDelay int
}

// Config selects the host-delay fuzzer. MaxHostDelay=1 makes ticking
// deterministic (exactly one RTL tick per do_tick); values above 1
// reproduce the jittered host-scheduling the real harness sees.
type Config struct {
	Seed         int64
	MaxHostDelay int
}

// New starts the rtlsim goroutine and returns a Harness bound to model
// and bus. Stop must be called to release the goroutine.
func New(ctx context.Context, bus *BusState, model RTLModel, cfg Config) *Harness {
	if cfg.MaxHostDelay < 1 {
		cfg.MaxHostDelay = 1
	}
	runCtx, cancel := context.WithCancel(ctx)
	h := &Harness{
		bus:          bus,
		model:        model,
		driverTurn:   make(chan struct{}),
		rtlsimTurn:   make(chan struct{}),
		cancel:       cancel,
		done:         make(chan struct{}),
		rng:          rand.New(rand.NewSource(cfg.Seed)),
		maxHostDelay: cfg.MaxHostDelay,
	}
	go h.run(runCtx)
	return h
}

func (h *Harness) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.driverTurn:
			delay := 1 + h.rng.Intn(h.maxHostDelay)
			for i := 0; i < delay; i++ {
				h.model.Tick(h.bus)
			}
			select {
			case h.rtlsimTurn <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// doTick is advance_target(): it hands the token to rtlsim and blocks
// until rtlsim hands it back, running one do_tick()/to_sim() round
// trip. Every MMIO/DMA call that does not immediately make progress
// loops through doTick until the backing request is satisfied.
func (h *Harness) doTick(ctx context.Context) error {
	select {
	case h.driverTurn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-h.rtlsimTurn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop sets the sticky finished flag and joins the rtlsim goroutine.
// After Stop returns, no further MMIO/DMA call is permitted: the
// target exists for exactly one run.
func (h *Harness) Stop() {
	h.cancel()
	<-h.done
}

// MMIORead implements hostio.HostIO.
func (h *Harness) MMIORead(ctx context.Context, addr uint64) (uint32, error) {
	h.bus.postCtrlRead(addr)
	for !h.bus.ctrlReady() {
		if err := h.doTick(ctx); err != nil {
			return 0, err
		}
	}
	return h.bus.takeCtrlResponse(), nil
}

// MMIOWrite implements hostio.HostIO.
func (h *Harness) MMIOWrite(ctx context.Context, addr uint64, data uint32) error {
	h.bus.postCtrlWrite(addr, data)
	for !h.bus.ctrlReady() {
		if err := h.doTick(ctx); err != nil {
			return err
		}
	}
	h.bus.takeCtrlResponse()
	return nil
}

// CPUManagedAXI4Read implements hostio.CPUManagedAXI4.
func (h *Harness) CPUManagedAXI4Read(ctx context.Context, addr uint64, dest []byte, size int) (int, error) {
	h.bus.postCPUManagedRead(addr, size)
	for !h.bus.cpuManagedReady() {
		if err := h.doTick(ctx); err != nil {
			return 0, err
		}
	}
	return h.bus.takeCPUManagedRead(dest)
}

// CPUManagedAXI4Write implements hostio.CPUManagedAXI4.
func (h *Harness) CPUManagedAXI4Write(ctx context.Context, addr uint64, src []byte, size int) (int, error) {
	h.bus.postCPUManagedWrite(addr, src, size)
	for !h.bus.cpuManagedReady() {
		if err := h.doTick(ctx); err != nil {
			return 0, err
		}
	}
	return h.bus.takeCPUManagedWrite()
}

// GetMemoryBase implements hostio.FPGAManagedMemory.
func (h *Harness) GetMemoryBase() []byte { return h.bus.fpgaManagedMem }

// SyncFromFPGA implements hostio.FPGAManagedMemory. The bus state is
// only ever mutated while this goroutine holds the token, and the token
// is back with the driver by the time SyncFromFPGA can run, so there is
// nothing to fence.
func (h *Harness) SyncFromFPGA() {}

// Tick exposes one manual driver→rtlsim round trip, for callers that
// need to advance target time without a pending MMIO request.
func (h *Harness) Tick(ctx context.Context) error { return h.doTick(ctx) }
