package stream

import (
	"context"
	"fmt"

	"cosimdriver/hostio"
	"cosimdriver/x/mathx"
)

// FPGAManagedParams is the generated-header parameter block for one
// FPGA-managed stream.
type FPGAManagedParams struct {
	Name           string
	BufferCapacity uint32 // bytes

	ToHostPhysAddrHigh uint64
	ToHostPhysAddrLow  uint64
	BytesAvailable     uint64
	BytesConsumed      uint64
	StreamDoneInit     uint64
	StreamFlush        uint64
	StreamFlushDone    uint64
}

// flushRetryCap bounds the poll in Flush; exceeding it is a fatal
// deadlock indication.
const flushRetryCap = 256

// FPGAManagedIO is what an FPGA-managed stream driver needs from its
// backend: MMIO for the register handshake plus the FPGA-addressable
// memory region the FPGA DMA-writes into.
type FPGAManagedIO interface {
	hostio.HostIO
	hostio.FPGAManagedMemory
}

// FPGAManagedToCPUDriver streams bytes the FPGA DMA-writes directly
// into a preallocated host-memory ring at bufferBaseFPGA. bufferOffset
// tracks the next unread byte modulo BufferCapacity, and Pull copies
// in one pass when the run is contiguous, tail-then-head when it
// wraps. Named distinctly from cpumanaged.go's FPGAToCPUDriver (same
// stream direction, different DMA style).
//
// This is not built on x/shmring.Ring: that package owns its backing
// array and tracks readable/writable extents with its own atomic
// indices, advanced only by its own WriteCommit/ReadRelease calls. The
// buffer here is owned by the backend (io.GetMemoryBase(), DMA-written
// by the FPGA model outside any call this driver makes), and the
// readable extent is reported by two MMIO registers, not by in-process
// bookkeeping a Ring could own. Reusing Ring would mean shadowing the
// MMIO-reported byte counts into a second, redundant set of ring
// indices for no behavioral gain, so the wraparound copy is done
// directly against the backend's slice instead.
type FPGAManagedToCPUDriver struct {
	io       FPGAManagedIO
	params   FPGAManagedParams
	fpgaBase uint64

	bufferOffset int
}

// NewFPGAManagedToCPUDriver constructs a to-CPU FPGA-managed stream
// driver. bufferBaseFPGA is the FPGA-visible address of the region
// io.GetMemoryBase() returns; it is written to ToHostPhysAddrHigh/Low
// at Init so the producer knows where to write.
func NewFPGAManagedToCPUDriver(io FPGAManagedIO, params FPGAManagedParams, bufferBaseFPGA uint64) *FPGAManagedToCPUDriver {
	return &FPGAManagedToCPUDriver{io: io, params: params, fpgaBase: bufferBaseFPGA}
}

// Init implements ToCPUDriver.
func (d *FPGAManagedToCPUDriver) Init(ctx context.Context) error {
	if err := d.io.MMIOWrite(ctx, d.params.ToHostPhysAddrHigh, uint32(d.fpgaBase>>32)); err != nil {
		return err
	}
	return d.io.MMIOWrite(ctx, d.params.ToHostPhysAddrLow, uint32(d.fpgaBase))
}

// Pull implements ToCPUDriver: read bytesAvailable, fence, copy out
// of the ring, advance the offset, release via bytesConsumed.
func (d *FPGAManagedToCPUDriver) Pull(ctx context.Context, dest []byte, numBytes, requiredBytes int) (int, error) {
	avail, err := d.io.MMIORead(ctx, d.params.BytesAvailable)
	if err != nil {
		return 0, err
	}
	bytesInBuffer := int(avail)
	if bytesInBuffer < requiredBytes {
		return 0, nil
	}

	d.io.SyncFromFPGA()

	capacity := int(d.params.BufferCapacity)
	base := d.io.GetMemoryBase()
	n := mathx.Min(bytesInBuffer, numBytes)

	firstCopy := n
	if d.bufferOffset+n > capacity {
		firstCopy = capacity - d.bufferOffset
	}
	copy(dest[:firstCopy], base[d.bufferOffset:d.bufferOffset+firstCopy])
	if firstCopy < n {
		copy(dest[firstCopy:n], base[:n-firstCopy])
	}
	d.bufferOffset = (d.bufferOffset + n) % capacity

	if err := d.io.MMIOWrite(ctx, d.params.BytesConsumed, uint32(n)); err != nil {
		return 0, err
	}
	return n, nil
}

// Flush implements ToCPUDriver: requests the producer drain any
// host-side batching, then polls StreamFlushDone up to flushRetryCap
// times. Exceeding the cap is a fatal target-side deadlock.
func (d *FPGAManagedToCPUDriver) Flush(ctx context.Context) error {
	if err := d.io.MMIOWrite(ctx, d.params.StreamFlush, 1); err != nil {
		return err
	}
	for attempt := 0; attempt < flushRetryCap; attempt++ {
		done, err := d.io.MMIORead(ctx, d.params.StreamFlushDone)
		if err != nil {
			return err
		}
		if done&1 != 0 {
			return nil
		}
	}
	return fmt.Errorf("stream: flush %s: stream flush deadlock after %d retries", d.params.Name, flushRetryCap)
}
