// Package bigword handles the arbitrary-width MMIO wire format: values
// wider than 32 bits are streamed through a single data register as a
// sequence of 32-bit chunks, least-significant chunk first.
//
// math/big.Int already provides arbitrary-precision integers with an
// explicit word-array interchange
// format, so this package is a thin adapter rather than a
// reimplementation of big-integer arithmetic.
package bigword

import "math/big"

const chunkBits = 32

// FromChunks reconstructs a *big.Int from chunks ordered
// least-significant-first, matching mpz_import(..., -1, 4, 0, 0, ...).
func FromChunks(chunks []uint32) *big.Int {
	v := new(big.Int)
	word := new(big.Int)
	for i := len(chunks) - 1; i >= 0; i-- {
		v.Lsh(v, chunkBits)
		word.SetUint64(uint64(chunks[i]))
		v.Or(v, word)
	}
	return v
}

// ToChunks exports v as exactly n 32-bit chunks, least-significant
// first, zero-padding beyond v's natural width and truncating any bits
// above n*32. A register run always receives its full chunk count no
// matter how narrow the value is.
func ToChunks(v *big.Int, n int) []uint32 {
	out := make([]uint32, n)
	tmp := new(big.Int).Set(v)
	mask := big.NewInt(0xFFFFFFFF)
	word := new(big.Int)
	for i := 0; i < n; i++ {
		word.And(tmp, mask)
		out[i] = uint32(word.Uint64())
		tmp.Rsh(tmp, chunkBits)
	}
	return out
}

// NumChunks returns the minimum number of 32-bit chunks needed to hold
// v without truncation (at least 1, matching mpz_export's minimum of
// one word for a zero value written through write_mem's W_LENGTH=1
// path).
func NumChunks(v *big.Int) int {
	bits := v.BitLen()
	if bits == 0 {
		return 1
	}
	return (bits + chunkBits - 1) / chunkBits
}
