//go:build i2c_sideband

// Package hardware holds pluggable hardware backends. A full vendor
// backend (XDMA character devices, a PCIe BAR mapping) lives with the
// board support packages; what lives here is the interface seam
// itself, demonstrated against a board that exposes its control bus
// over I2C rather than a PCIe BAR.
package hardware

import (
	"context"
	"encoding/binary"

	"tinygo.org/x/drivers"
)

// I2CBackend implements hostio.HostIO by addressing a control bus
// exposed as an I2C peripheral: a 1-byte opcode (0=read, 1=write),
// an 8-byte big-endian address, and a 4-byte big-endian data word.
type I2CBackend struct {
	bus  drivers.I2C
	addr uint8
}

// NewI2CBackend binds a HostIO backend to bus at the peripheral address
// addr. The peripheral is expected to buffer one request at a time.
func NewI2CBackend(bus drivers.I2C, addr uint8) *I2CBackend {
	return &I2CBackend{bus: bus, addr: addr}
}

func (b *I2CBackend) MMIORead(ctx context.Context, addr uint64) (uint32, error) {
	req := make([]byte, 9)
	req[0] = 0
	binary.BigEndian.PutUint64(req[1:], addr)
	if err := b.bus.Tx(uint16(b.addr), req, nil); err != nil {
		return 0, err
	}
	resp := make([]byte, 4)
	if err := b.bus.Tx(uint16(b.addr), nil, resp); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(resp), nil
}

func (b *I2CBackend) MMIOWrite(ctx context.Context, addr uint64, data uint32) error {
	req := make([]byte, 13)
	req[0] = 1
	binary.BigEndian.PutUint64(req[1:9], addr)
	binary.BigEndian.PutUint32(req[9:], data)
	return b.bus.Tx(uint16(b.addr), req, nil)
}
