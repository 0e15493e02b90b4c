package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillSpec builds a ComponentSpec whose Decode writes the block's DC value
// into every output sample, which makes row/column placement visible in
// the result plane.
func fillSpec(blockWidth, blockHeight, scale int) ComponentSpec {
	return ComponentSpec{
		BlockWidth:  blockWidth,
		BlockHeight: blockHeight,
		DCTScale:    scale,
		Decode: func(coeffs *[64]int16, out []byte, stride int) {
			v := byte(coeffs[0])
			for y := 0; y < scale; y++ {
				for x := 0; x < scale; x++ {
					out[y*stride+x] = v
				}
			}
		},
	}
}

func buildRows(blockWidth, blockHeight int) [][]*[64]int16 {
	rows := make([][]*[64]int16, blockHeight)
	for by := range rows {
		row := make([]*[64]int16, blockWidth)
		for bx := range row {
			var block [64]int16
			block[0] = int16(by*blockWidth + bx)
			row[bx] = &block
		}
		rows[by] = row
	}
	return rows
}

func TestImmediatePlacesBlocksAtScaledOffsets(t *testing.T) {
	w := NewImmediate()
	spec := fillSpec(3, 2, 2)
	w.Start(0, spec)
	w.AppendRows(0, buildRows(3, 2))

	out := w.GetResult(0)
	require.Len(t, out, spec.Size())

	// Block (bx, by) fills the 2x2 region at (bx*2, by*2) with its index.
	stride := spec.Stride()
	for by := 0; by < 2; by++ {
		for bx := 0; bx < 3; bx++ {
			want := byte(by*3 + bx)
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					got := out[(by*2+dy)*stride+bx*2+dx]
					assert.Equal(t, want, got, "block (%d,%d) offset (%d,%d)", bx, by, dx, dy)
				}
			}
		}
	}
}

// TestPoolMatchesImmediate pins the determinism contract: the
// parallel backend must produce byte-identical planes to the synchronous
// one, because each row task writes a disjoint output region derived only
// from its row index.
func TestPoolMatchesImmediate(t *testing.T) {
	const blockWidth, blockHeight, scale = 7, 5, 8

	im := NewImmediate()
	im.Start(0, fillSpec(blockWidth, blockHeight, scale))
	im.AppendRows(0, buildRows(blockWidth, blockHeight))

	pool := NewPool(4)
	pool.Start(0, fillSpec(blockWidth, blockHeight, scale))
	pool.AppendRows(0, buildRows(blockWidth, blockHeight))

	assert.Equal(t, im.GetResult(0), pool.GetResult(0))
}

func TestPoolMultipleComponents(t *testing.T) {
	pool := NewPool(2)
	pool.Start(0, fillSpec(2, 2, 4))
	pool.Start(1, fillSpec(1, 1, 8))
	pool.AppendRows(0, buildRows(2, 2))
	pool.AppendRows(1, buildRows(1, 1))

	assert.Len(t, pool.GetResult(0), 2*4*2*4)
	assert.Len(t, pool.GetResult(1), 64)
}

func TestNilBlocksAreSkipped(t *testing.T) {
	w := NewImmediate()
	w.Start(0, fillSpec(2, 1, 1))
	w.AppendRow(0, 0, []*[64]int16{nil, {0: 9}})

	out := w.GetResult(0)
	assert.Equal(t, []byte{0, 9}, out)
}

func TestDefaultConcurrencyAtLeastOne(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultConcurrency(), 1)
}
