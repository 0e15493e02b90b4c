package jpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allOnesQuantTable() *QuantizationTable {
	var q QuantizationTable
	for i := range q {
		q[i] = 1
	}
	return &q
}

// TestIDCTAllZeroYields128: IDCT of an all-zero coefficient block with
// any quantization table yields a block of 128s.
func TestIDCTAllZeroYields128(t *testing.T) {
	var coeffs [64]int16
	quants := []*QuantizationTable{allOnesQuantTable(), {1: 16, 2: 11, 10: 50}}

	for _, q := range quants {
		for _, scale := range []int{8, 4, 2, 1} {
			out := make([]byte, scale*scale)
			dequantizeAndIDCT(&coeffs, q, scale, out, scale)
			for _, v := range out {
				assert.Equal(t, byte(128), v, "scale=%d", scale)
			}
		}
	}
}

func TestChooseIDCTSize(t *testing.T) {
	full := Dimensions{Width: 800, Height: 600}

	assert.Equal(t, 8, chooseIDCTSize(full, Dimensions{Width: 800, Height: 600}))
	assert.Equal(t, 1, chooseIDCTSize(full, Dimensions{Width: 10, Height: 10}))
	assert.Equal(t, 4, chooseIDCTSize(full, Dimensions{Width: 390, Height: 290}))

	assert.Panics(t, func() {
		chooseIDCTSize(Dimensions{Width: 0, Height: 10}, Dimensions{Width: 1, Height: 1})
	})
}

func TestIDCTClamps(t *testing.T) {
	var coeffs [64]int16
	coeffs[0] = 2000 // a large DC after dequantization should clamp, not wrap visibly
	q := allOnesQuantTable()
	out := make([]byte, 64)
	dequantizeAndIDCT8x8(&coeffs, q, out, 8)
	for i, v := range out {
		require.LessOrEqual(t, v, byte(255), "index %d", i)
		assert.Equal(t, byte(255), v, "a large enough DC-only block saturates every pixel")
	}
}

// TestIDCTDCOnlyConsistentAcrossScales pins the normalization shared by
// all four kernels: a DC-only block must decode to the same flat value
// (128 + dc*quant/8, half-rounded down) at every scale, since downscaling
// a constant block changes nothing but its size.
func TestIDCTDCOnlyConsistentAcrossScales(t *testing.T) {
	var coeffs [64]int16
	coeffs[0] = 80
	q := allOnesQuantTable()

	for _, scale := range []int{8, 4, 2, 1} {
		out := make([]byte, scale*scale)
		dequantizeAndIDCT(&coeffs, q, scale, out, scale)
		for i, v := range out {
			assert.Equal(t, byte(138), v, "scale=%d sample %d", scale, i)
		}
	}
}
