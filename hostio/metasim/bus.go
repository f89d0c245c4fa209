package metasim

// BusState is the host-side mirror of the target's AXI4 interfaces:
// ctrl, the two optional DMA-style channels, N memory channels, and an
// optional QSFP link. It is touched by exactly one goroutine at a time
// by construction (the Harness token handoff), so it carries no lock
// of its own.
type BusState struct {
	ctrl ctrlQueue

	cpuManaged     cpuManagedQueue
	fpgaManagedMem []byte

	// MemChannels holds one simulated DRAM-timing-model queue per
	// memory channel declared in the target config. Individual
	// channel contents are opaque to the
	// harness; a RTLModel implementation interprets them.
	MemChannels []MemChannelState

	// QSFP is nil unless the target config declares a QSFP-backed NIC
	// bridge.
	QSFP *QSFPState
}

// MemChannelState is a placeholder for one DRAM-timing-model channel's
// request/response queues; content and timing are owned by whatever
// RTLModel is plugged in, not by the harness itself.
type MemChannelState struct {
	Pending []MemRequest
}

// MemRequest is one outstanding request on a memory channel.
type MemRequest struct {
	Addr  uint64
	Write bool
	Data  []byte
}

// QSFPState is a placeholder for the optional QSFP-backed network link.
type QSFPState struct {
	RXQueue [][]byte
	TXQueue [][]byte
}

// NewBusState allocates a BusState with a fpgaManagedSize-byte
// FPGA-addressable region and the given number of memory channels.
// fpgaManagedSize is 0 when the target config has no FPGA-managed
// stream.
func NewBusState(fpgaManagedSize int, memChannels int) *BusState {
	return &BusState{
		fpgaManagedMem: make([]byte, fpgaManagedSize),
		MemChannels:    make([]MemChannelState, memChannels),
	}
}

type ctrlQueue struct {
	pending  *ctrlRequest
	response uint32
	ready    bool
}

type ctrlRequest struct {
	write bool
	addr  uint64
	data  uint32
}

func (b *BusState) postCtrlRead(addr uint64) {
	b.ctrl.pending = &ctrlRequest{write: false, addr: addr}
	b.ctrl.ready = false
}

func (b *BusState) postCtrlWrite(addr uint64, data uint32) {
	b.ctrl.pending = &ctrlRequest{write: true, addr: addr, data: data}
	b.ctrl.ready = false
}

func (b *BusState) ctrlReady() bool { return b.ctrl.ready }

func (b *BusState) takeCtrlResponse() uint32 {
	b.ctrl.ready = false
	return b.ctrl.response
}

// CtrlPending returns the outstanding ctrl request, if any, for an
// RTLModel to service. ok is false once the model has answered it.
func (b *BusState) CtrlPending() (addr uint64, write bool, data uint32, ok bool) {
	if b.ctrl.pending == nil {
		return 0, false, 0, false
	}
	return b.ctrl.pending.addr, b.ctrl.pending.write, b.ctrl.pending.data, true
}

// CtrlRespond completes the outstanding ctrl request with the given
// read value (ignored for writes) and clears it.
func (b *BusState) CtrlRespond(data uint32) {
	b.ctrl.response = data
	b.ctrl.ready = true
	b.ctrl.pending = nil
}

type cpuManagedQueue struct {
	pending *cpuManagedRequest
	result  []byte
	n       int
	err     error
	ready   bool
}

type cpuManagedRequest struct {
	write bool
	addr  uint64
	size  int
	src   []byte
}

func (b *BusState) postCPUManagedRead(addr uint64, size int) {
	b.cpuManaged.pending = &cpuManagedRequest{write: false, addr: addr, size: size}
	b.cpuManaged.ready = false
}

func (b *BusState) postCPUManagedWrite(addr uint64, src []byte, size int) {
	cp := make([]byte, len(src))
	copy(cp, src)
	b.cpuManaged.pending = &cpuManagedRequest{write: true, addr: addr, size: size, src: cp}
	b.cpuManaged.ready = false
}

func (b *BusState) cpuManagedReady() bool { return b.cpuManaged.ready }

func (b *BusState) takeCPUManagedRead(dest []byte) (int, error) {
	b.cpuManaged.ready = false
	n := copy(dest, b.cpuManaged.result)
	return n, b.cpuManaged.err
}

func (b *BusState) takeCPUManagedWrite() (int, error) {
	b.cpuManaged.ready = false
	return b.cpuManaged.n, b.cpuManaged.err
}

// CPUManagedPending returns the outstanding CPU-managed request, if
// any, for an RTLModel to service.
func (b *BusState) CPUManagedPending() (addr uint64, write bool, size int, src []byte, ok bool) {
	p := b.cpuManaged.pending
	if p == nil {
		return 0, false, 0, nil, false
	}
	return p.addr, p.write, p.size, p.src, true
}

// CPUManagedRespond completes the outstanding CPU-managed request. For
// reads, data is the bytes read; for writes, n is the byte count
// accepted. A non-nil err is surfaced as a fatal DMA transfer error by
// the caller.
func (b *BusState) CPUManagedRespond(data []byte, n int, err error) {
	b.cpuManaged.result = data
	b.cpuManaged.n = n
	b.cpuManaged.err = err
	b.cpuManaged.ready = true
	b.cpuManaged.pending = nil
}
