package bigword

import (
	"math/big"

	"cosimdriver/x/conv"
)

// FormatWideHex renders v as n 32-bit chunks, most-significant chunk
// first, each as 8 uppercase hex digits with no separator — the same
// chunk order a hex loadmem line uses. Uses conv.U32Hex for the
// per-chunk digits instead of fmt.Sprintf.
func FormatWideHex(v *big.Int, n int) string {
	chunks := ToChunks(v, n)
	buf := make([]byte, 8)
	out := make([]byte, 0, n*8)
	for i := n - 1; i >= 0; i-- {
		digits := conv.U32Hex(buf, chunks[i])
		out = append(out, digits...)
	}
	return string(out)
}
