// Package hostio defines the abstract transport between the driver and
// the FPGA or its emulation. Every widget talks to the
// target exclusively through a HostIO; the concrete backend (hardware
// PCIe/XDMA, or in-process metasimulation) is selected once at simif
// construction and is invisible to widget code from then on.
package hostio

import "context"

// HostIO is the mandatory control-bus interface every backend must
// provide: 32-bit MMIO reads and writes over the AXI4-lite control
// channel. The AXI4-lite size code is fixed to 2 (4-byte beats) for
// every backend.
type HostIO interface {
	// MMIORead performs a single 32-bit control-bus read.
	MMIORead(ctx context.Context, addr uint64) (uint32, error)

	// MMIOWrite performs a single 32-bit control-bus write.
	MMIOWrite(ctx context.Context, addr uint64, data uint32) error
}

// CPUManagedAXI4 is implemented by backends whose target config
// declares a CPU-managed DMA channel. The CPU-managed stream drivers
// take it together with HostIO as one value (stream.CPUManagedIO), so a
// backend without it cannot be passed to them.
type CPUManagedAXI4 interface {
	// CPUManagedAXI4Read performs a host-initiated bulk read of size
	// bytes starting at addr into dest. size must be a multiple of the
	// channel's beat width. A short transfer is always a fatal host
	// error — the backend is required to move exactly size bytes or
	// fail outright, never partially.
	CPUManagedAXI4Read(ctx context.Context, addr uint64, dest []byte, size int) (int, error)

	// CPUManagedAXI4Write is the write-direction symmetric operation.
	CPUManagedAXI4Write(ctx context.Context, addr uint64, src []byte, size int) (int, error)
}

// FPGAManagedMemory is implemented by backends whose target config
// declares an FPGA-managed DMA channel. GetMemoryBase exposes the
// FPGA-addressable host memory region directly so the stream driver can
// read/write it without a syscall per beat.
type FPGAManagedMemory interface {
	// GetMemoryBase returns the live, FPGA-addressable memory region.
	// The returned slice aliases backend state; callers must not retain
	// it past the backend's lifetime.
	GetMemoryBase() []byte

	// SyncFromFPGA issues whatever fence or barrier the backend needs
	// before reading GetMemoryBase's contents, e.g. to observe a write
	// the FPGA just performed. Backends with coherent memory may make
	// this a no-op.
	SyncFromFPGA()
}
