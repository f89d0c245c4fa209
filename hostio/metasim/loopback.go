package metasim

// LoopbackModel is a minimal RTLModel used by package tests and by
// standalone widget tests that need a HostIO without a real simulator
// binary. It answers every ctrl request in the tick it was posted
// (a register file keyed by address) and every CPU-managed request
// against a backing byte buffer, so it behaves like a target that is
// always ready.
type LoopbackModel struct {
	Regs   map[uint64]uint32
	Memory []byte
}

// NewLoopbackModel returns a LoopbackModel backed by a memSize-byte
// CPU-managed memory image.
func NewLoopbackModel(memSize int) *LoopbackModel {
	return &LoopbackModel{
		Regs:   make(map[uint64]uint32),
		Memory: make([]byte, memSize),
	}
}

// Tick implements RTLModel.
func (m *LoopbackModel) Tick(bus *BusState) {
	if addr, write, data, ok := bus.CtrlPending(); ok {
		if write {
			m.Regs[addr] = data
			bus.CtrlRespond(0)
		} else {
			bus.CtrlRespond(m.Regs[addr])
		}
	}

	if addr, write, size, src, ok := bus.CPUManagedPending(); ok {
		end := int(addr) + size
		if end > len(m.Memory) {
			bus.CPUManagedRespond(nil, 0, errShortTransfer)
		} else if write {
			n := copy(m.Memory[addr:end], src)
			bus.CPUManagedRespond(nil, n, nil)
		} else {
			data := make([]byte, size)
			copy(data, m.Memory[addr:end])
			bus.CPUManagedRespond(data, size, nil)
		}
	}
}

var errShortTransfer = shortTransferError{}

type shortTransferError struct{}

func (shortTransferError) Error() string { return "metasim: request exceeds backing memory size" }
