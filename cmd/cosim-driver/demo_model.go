package main

import "cosimdriver/hostio/metasim"

// demoModel wraps a metasim.LoopbackModel with just enough of a target
// to let the default invocation run end to end: a step-register
// countdown that raises done and advances the clock counters, plus the
// loadmem register protocol backed by the model's memory image. The
// bare LoopbackModel never does this (it only echoes whatever register
// value it is given), which is the right behavior for package tests
// that set done by hand, but leaves this binary's own default run with
// nothing to ever set done and the blocking step loop in
// simulation.run spinning forever. Scoped to this demo binary only;
// nothing in the core packages depends on it.
type demoModel struct {
	*metasim.LoopbackModel

	addrs demoModelAddrs

	remaining uint32
	hcycle    uint64
	tcycle    uint64

	writeAddr    uint64
	writeWordIdx int
	readAddr     uint64
	readWordIdx  int
}

// demoModelAddrs is the subset of the demo MMIO map demoModel needs to
// drive on its own, independent of whatever bridges are registered.
type demoModelAddrs struct {
	step, done       uint64
	hcycle0, hcycle1 uint64
	tcycle0, tcycle1 uint64

	lmWAddrH, lmWAddrL, lmWLength  uint64
	lmWData, lmZeroOut, lmZeroDone uint64
	lmRAddrH, lmRAddrL, lmRData    uint64
}

func newDemoModel(memSize int, addrs demoModelAddrs) *demoModel {
	return &demoModel{
		LoopbackModel: metasim.NewLoopbackModel(memSize),
		addrs:         addrs,
	}
}

// Tick implements metasim.RTLModel. A write to the step register arms
// the countdown and clears done; loadmem register traffic is applied
// to the model's memory image; every other ctrl/CPU-managed request is
// handled by the embedded LoopbackModel exactly as before.
func (m *demoModel) Tick(bus *metasim.BusState) {
	if addr, write, data, ok := bus.CtrlPending(); ok && m.handleCtrl(bus, addr, write, data) {
		// handled above
	} else {
		m.LoopbackModel.Tick(bus)
	}

	m.hcycle++
	if m.remaining > 0 {
		m.tcycle++
		m.remaining--
		if m.remaining == 0 {
			m.Regs[m.addrs.done] = 1
		}
	}
	m.Regs[m.addrs.hcycle0] = uint32(m.hcycle)
	m.Regs[m.addrs.hcycle1] = uint32(m.hcycle >> 32)
	m.Regs[m.addrs.tcycle0] = uint32(m.tcycle)
	m.Regs[m.addrs.tcycle1] = uint32(m.tcycle >> 32)
}

func (m *demoModel) handleCtrl(bus *metasim.BusState, addr uint64, write bool, data uint32) bool {
	a := m.addrs
	switch {
	case write && addr == a.step:
		m.Regs[a.step] = data
		if data != 0 {
			m.remaining = data
			m.Regs[a.done] = 0
		}

	case write && addr == a.lmWAddrH:
		m.writeAddr = m.writeAddr&0xFFFFFFFF | uint64(data)<<32
	case write && addr == a.lmWAddrL:
		m.writeAddr = m.writeAddr&^uint64(0xFFFFFFFF) | uint64(data)
	case write && addr == a.lmWLength:
		m.writeWordIdx = 0
	case write && addr == a.lmWData:
		m.putWord(m.writeAddr+uint64(m.writeWordIdx)*4, data)
		m.writeWordIdx++
	case write && addr == a.lmZeroOut:
		for i := range m.Memory {
			m.Memory[i] = 0
		}
		m.Regs[a.lmZeroDone] = 1
	case write && addr == a.lmRAddrH:
		m.readAddr = m.readAddr&0xFFFFFFFF | uint64(data)<<32
		m.readWordIdx = 0
	case write && addr == a.lmRAddrL:
		m.readAddr = m.readAddr&^uint64(0xFFFFFFFF) | uint64(data)
		m.readWordIdx = 0

	case !write && addr == a.lmRData:
		bus.CtrlRespond(m.getWord(m.readAddr + uint64(m.readWordIdx)*4))
		m.readWordIdx++
		return true

	default:
		return false
	}
	bus.CtrlRespond(0)
	return true
}

func (m *demoModel) putWord(addr uint64, v uint32) {
	if addr+4 > uint64(len(m.Memory)) {
		return
	}
	for i := 0; i < 4; i++ {
		m.Memory[addr+uint64(i)] = byte(v >> (8 * i))
	}
}

func (m *demoModel) getWord(addr uint64) uint32 {
	if addr+4 > uint64(len(m.Memory)) {
		return 0
	}
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(m.Memory[addr+uint64(i)]) << (8 * i)
	}
	return v
}
