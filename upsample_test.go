package jpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUpsamplerRejectsNonIntegerRatio(t *testing.T) {
	_, err := newUpsampler(3, 1, 2, 1, 4, 4)
	require.Error(t, err)
	assert.IsType(t, UnsupportedError(""), err)
}

func TestNewUpsamplerRejectsUnsupportedRatio(t *testing.T) {
	_, err := newUpsampler(8, 1, 1, 1, 4, 4)
	require.Error(t, err)
	assert.IsType(t, UnsupportedError(""), err)
}

func TestUpsamplerSourceRowNoSubsampling(t *testing.T) {
	u, err := newUpsampler(2, 2, 2, 2, 4, 4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.Equal(t, i, u.sourceRow(i))
	}
}

func TestUpsamplerSourceRow2x1ClampsAtBottom(t *testing.T) {
	// 4:2:0-style component: half resolution vertically.
	u, err := newUpsampler(2, 2, 1, 1, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, u.sourceRow(0))
	assert.Equal(t, 1, u.sourceRow(2))
	assert.Equal(t, 1, u.sourceRow(3))
	// Request past the output bound derived from srcHeight still clamps.
	assert.Equal(t, 1, u.sourceRow(10))
}

func TestUpsamplerExpandRowReplicatesAtRatio1(t *testing.T) {
	u, err := newUpsampler(1, 1, 1, 1, 3, 1)
	require.NoError(t, err)
	dst := make([]byte, 3)
	u.expandRow([]byte{10, 20, 30}, dst, 3)
	assert.Equal(t, []byte{10, 20, 30}, dst)
}

func TestUpsamplerExpandRowRatio2ExactAtSourceSample(t *testing.T) {
	u, err := newUpsampler(2, 1, 1, 1, 2, 1)
	require.NoError(t, err)
	dst := make([]byte, 4)
	u.expandRow([]byte{0, 100}, dst, 4)
	// frac==0 positions land exactly on a source sample.
	assert.Equal(t, byte(0), dst[0])
	assert.Equal(t, byte(100), dst[2])
}

func TestUpsamplerExpandRowClampsPastSourceWidth(t *testing.T) {
	u, err := newUpsampler(1, 1, 1, 1, 2, 1)
	require.NoError(t, err)
	dst := make([]byte, 4)
	u.expandRow([]byte{5, 9}, dst, 4)
	assert.Equal(t, byte(9), dst[2])
	assert.Equal(t, byte(9), dst[3])
}
