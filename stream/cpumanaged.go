package stream

import (
	"context"
	"fmt"

	"cosimdriver/hostio"
	"cosimdriver/x/mathx"
)

// CPUManagedParams is the generated-header parameter block for one
// CPU-managed stream.
type CPUManagedParams struct {
	Name           string
	DMAAddr        uint64
	CountAddr      uint64
	FPGABufferSize uint32 // beats
}

// CPUManagedIO is what a CPU-managed stream driver needs from its
// backend: the shared MMIO occupancy read plus the bulk DMA channel.
// Every real backend (hardware or metasim) implements both
// hostio.HostIO and hostio.CPUManagedAXI4 on the same receiver, so
// callers pass that one value in directly.
type CPUManagedIO interface {
	hostio.HostIO
	hostio.CPUManagedAXI4
}

// cpuManagedCore is the MMIO occupancy read shared by both
// directions.
type cpuManagedCore struct {
	io     CPUManagedIO
	params CPUManagedParams
}

func (c *cpuManagedCore) occupancy(ctx context.Context) (uint32, error) {
	return c.io.MMIORead(ctx, c.params.CountAddr)
}

// CPUToFPGADriver pushes beats from host memory to the FPGA over a
// host-mastered AXI4 write channel.
type CPUToFPGADriver struct {
	cpuManagedCore
}

// NewCPUToFPGADriver constructs a from-CPU stream driver bound to io.
func NewCPUToFPGADriver(io CPUManagedIO, params CPUManagedParams) *CPUToFPGADriver {
	return &CPUToFPGADriver{cpuManagedCore{io: io, params: params}}
}

// Init implements FromCPUDriver. CPU-managed streams need no one-time
// MMIO setup; the occupancy register is self-describing.
func (d *CPUToFPGADriver) Init(ctx context.Context) error { return nil }

// Push implements FromCPUDriver.
func (d *CPUToFPGADriver) Push(ctx context.Context, src []byte, numBytes, requiredBytes int) (int, error) {
	numBeats := numBytes / BeatBytes
	thresholdBeats := requiredBytes / BeatBytes

	occ, err := d.occupancy(ctx)
	if err != nil {
		return 0, err
	}
	spaceAvailable := int(d.params.FPGABufferSize) - int(occ)
	if spaceAvailable <= 0 || spaceAvailable < thresholdBeats {
		return 0, nil
	}

	pushBeats := mathx.Min(spaceAvailable, numBeats)
	pushBytes := pushBeats * BeatBytes
	n, err := d.io.CPUManagedAXI4Write(ctx, d.params.DMAAddr, src[:pushBytes], pushBytes)
	if err != nil {
		return 0, err
	}
	if n != pushBytes {
		return 0, fmt.Errorf("stream: push %s: short DMA write, wrote %d of %d bytes", d.params.Name, n, pushBytes)
	}
	return n, nil
}

// Flush implements FromCPUDriver. CPU-managed pushes are already
// host-initiated, so there is no producer-side batching to drain.
func (d *CPUToFPGADriver) Flush(ctx context.Context) error { return nil }

// FPGAToCPUDriver pulls beats from the FPGA over a host-mastered AXI4
// read channel.
type FPGAToCPUDriver struct {
	cpuManagedCore
}

// NewFPGAToCPUDriver constructs a to-CPU stream driver bound to io.
func NewFPGAToCPUDriver(io CPUManagedIO, params CPUManagedParams) *FPGAToCPUDriver {
	return &FPGAToCPUDriver{cpuManagedCore{io: io, params: params}}
}

// Init implements ToCPUDriver.
func (d *FPGAToCPUDriver) Init(ctx context.Context) error { return nil }

// Pull implements ToCPUDriver.
func (d *FPGAToCPUDriver) Pull(ctx context.Context, dest []byte, numBytes, requiredBytes int) (int, error) {
	numBeats := numBytes / BeatBytes
	thresholdBeats := requiredBytes / BeatBytes

	count, err := d.occupancy(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 || int(count) < thresholdBeats {
		return 0, nil
	}

	pullBeats := mathx.Min(int(count), numBeats)
	pullBytes := pullBeats * BeatBytes
	n, err := d.io.CPUManagedAXI4Read(ctx, d.params.DMAAddr, dest[:pullBytes], pullBytes)
	if err != nil {
		return 0, err
	}
	if n != pullBytes {
		return 0, fmt.Errorf("stream: pull %s: short DMA read, read %d of %d bytes", d.params.Name, n, pullBytes)
	}
	return n, nil
}

// Flush implements ToCPUDriver. Nothing is batched on the CPU-managed
// path; the occupancy register is always current.
func (d *FPGAToCPUDriver) Flush(ctx context.Context) error { return nil }
