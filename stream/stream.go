// Package stream implements the token-stream engine: two
// independently-indexed vectors of unidirectional beat-FIFO drivers
// (to-CPU, from-CPU), each either CPU-managed (host-initiated DMA,
// cpumanaged.go) or FPGA-managed (FPGA-initiated writes into a
// preallocated host ring, fpgamanaged.go). The engine itself is a thin
// router that also rejects transfers that are not a whole number of
// beats; the threshold rules live in the two driver variants.
package stream

import (
	"context"
	"fmt"

	"cosimdriver/widget"
)

// BeatBytes is the process-wide stream quantum: every pull/push
// transfer size must be a multiple of this.
const BeatBytes = 64

// ToCPUDriver is a stream whose payload flows FPGA → host (pull-only).
type ToCPUDriver interface {
	Init(ctx context.Context) error
	Pull(ctx context.Context, dest []byte, numBytes, requiredBytes int) (int, error)
	Flush(ctx context.Context) error
}

// FromCPUDriver is a stream whose payload flows host → FPGA
// (push-only).
type FromCPUDriver interface {
	Init(ctx context.Context) error
	Push(ctx context.Context, src []byte, numBytes, requiredBytes int) (int, error)
	Flush(ctx context.Context) error
}

// Engine is the unique per-run StreamEngine widget. Stream indices
// are assigned at target build time and are simply positions into the
// two driver vectors.
type Engine struct {
	toCPU   []ToCPUDriver
	fromCPU []FromCPUDriver
}

// New returns an Engine over the given to-CPU and from-CPU drivers, in
// build-assigned index order.
func New(toCPU []ToCPUDriver, fromCPU []FromCPUDriver) *Engine {
	return &Engine{toCPU: toCPU, fromCPU: fromCPU}
}

// WidgetKind implements widget.Widget.
func (e *Engine) WidgetKind() widget.Kind { return widget.KindOf[*Engine]() }

// Init initializes every contained stream driver. This must run
// before any bridge that uses the engine is initialized.
func (e *Engine) Init(ctx context.Context) error {
	for i, d := range e.toCPU {
		if err := d.Init(ctx); err != nil {
			return fmt.Errorf("stream: init to-cpu[%d]: %w", i, err)
		}
	}
	for i, d := range e.fromCPU {
		if err := d.Init(ctx); err != nil {
			return fmt.Errorf("stream: init from-cpu[%d]: %w", i, err)
		}
	}
	return nil
}

func checkBeatAligned(numBytes int) error {
	if numBytes%BeatBytes != 0 {
		return fmt.Errorf("stream: num_bytes %d is not a multiple of beat_bytes %d", numBytes, BeatBytes)
	}
	return nil
}

// Pull implements widget.StreamHandle: dequeue up to len(dest) bytes
// from the to-CPU stream at idx, transferring zero bytes unless at
// least requiredBytes are available (all or nothing).
func (e *Engine) Pull(ctx context.Context, idx int, dest []byte, requiredBytes int) (int, error) {
	numBytes := len(dest)
	if err := checkBeatAligned(numBytes); err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(e.toCPU) {
		return 0, fmt.Errorf("stream: pull: index %d out of range [0,%d)", idx, len(e.toCPU))
	}
	return e.toCPU[idx].Pull(ctx, dest, numBytes, requiredBytes)
}

// Push implements widget.StreamHandle: enqueue up to len(src) bytes
// onto the from-CPU stream at idx.
func (e *Engine) Push(ctx context.Context, idx int, src []byte, requiredBytes int) (int, error) {
	numBytes := len(src)
	if err := checkBeatAligned(numBytes); err != nil {
		return 0, err
	}
	if idx < 0 || idx >= len(e.fromCPU) {
		return 0, fmt.Errorf("stream: push: index %d out of range [0,%d)", idx, len(e.fromCPU))
	}
	return e.fromCPU[idx].Push(ctx, src, numBytes, requiredBytes)
}

// PullFlush hints that stream idx should bypass host-side batching
// before the next pull. CPU-managed streams make this a no-op; see
// cpumanaged.go.
func (e *Engine) PullFlush(ctx context.Context, idx int) error {
	if idx < 0 || idx >= len(e.toCPU) {
		return fmt.Errorf("stream: pull_flush: index %d out of range [0,%d)", idx, len(e.toCPU))
	}
	return e.toCPU[idx].Flush(ctx)
}

// PushFlush is the from-CPU analogue of PullFlush.
func (e *Engine) PushFlush(ctx context.Context, idx int) error {
	if idx < 0 || idx >= len(e.fromCPU) {
		return fmt.Errorf("stream: push_flush: index %d out of range [0,%d)", idx, len(e.fromCPU))
	}
	return e.fromCPU[idx].Flush(ctx)
}
