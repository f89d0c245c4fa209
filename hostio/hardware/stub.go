//go:build !i2c_sideband

// Package hardware holds pluggable hardware backends. Builds without
// the i2c_sideband tag get this stub so the package always compiles;
// the real implementation lives in i2c_backend.go behind the build
// tag.
package hardware

import (
	"context"
	"errors"
)

// ErrNoSidebandBackend is returned by every method of a backend built
// without a hardware tag.
var ErrNoSidebandBackend = errors.New("hostio/hardware: built without a sideband backend tag")

// I2CBackend is a type-compatible stand-in so callers can reference the
// type name regardless of build tags; every method fails.
type I2CBackend struct{}

func (*I2CBackend) MMIORead(ctx context.Context, addr uint64) (uint32, error) {
	return 0, ErrNoSidebandBackend
}

func (*I2CBackend) MMIOWrite(ctx context.Context, addr uint64, data uint32) error {
	return ErrNoSidebandBackend
}
