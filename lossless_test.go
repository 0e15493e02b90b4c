package jpeg

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLosslessPredictAtStart(t *testing.T) {
	plane := newLosslessPlane(4, 4)
	assert.Equal(t, int32(128), losslessPredict(1, 8, 0, 0, 0, true, &plane))
	// precision <= pointTransform+1 predicts from zero.
	assert.Equal(t, int32(0), losslessPredict(1, 8, 7, 0, 0, true, &plane))
}

func TestLosslessPredictFirstRowAndColumn(t *testing.T) {
	plane := newLosslessPlane(4, 4)
	plane.set(0, 0, 10)
	plane.set(1, 0, 20)
	plane.set(0, 1, 30)

	assert.Equal(t, int32(10), losslessPredict(1, 8, 0, 1, 0, false, &plane), "first row predicts from left neighbor")
	assert.Equal(t, int32(10), losslessPredict(1, 8, 0, 0, 1, false, &plane), "first column predicts from above neighbor")
}

func TestLosslessPredictSelectors(t *testing.T) {
	plane := newLosslessPlane(4, 4)
	plane.set(0, 0, 100) // c
	plane.set(1, 0, 200) // b
	plane.set(0, 1, 50)  // a

	cases := []struct {
		selector uint8
		want     int32
	}{
		{1, 50},
		{2, 200},
		{3, 100},
		{4, 50 + 200 - 100},
		{5, 50 + ((200 - 100) >> 1)},
		{6, 200 + ((50 - 100) >> 1)},
		{7, (50 + 200) / 2},
	}
	for _, c := range cases {
		got := losslessPredict(c.selector, 8, 0, 1, 1, false, &plane)
		assert.Equal(t, c.want, got, "selector %d", c.selector)
	}
}

func TestDecodeLosslessSampleCategory16(t *testing.T) {
	var counts [16]byte
	counts[0] = 1
	table, err := buildHuffmanTable(counts, []byte{16})
	require.NoError(t, err)

	packed := buildPackedBits([]uint32{0}, []uint8{1})
	br := newBitReader(newSliceReader(append(packed, 0xFF, 0xD9)))

	st := &losslessScanState{
		br:           br,
		frame:        &FrameInfo{Precision: 8},
		scan:         &ScanInfo{ComponentIndices: []int{0}, DCTableIndices: []int{0}},
		dcTables:     [4]*HuffmanTable{table},
		pendingStart: map[int]bool{0: true},
	}
	plane := newLosslessPlane(2, 2)

	require.NoError(t, decodeLosslessSample(st, 0, &plane, 0, 0))
	// atStart with precision 8 predicts 128; diff is the category-16 special
	// case (32768), reconstructed modulo 2^16.
	assert.Equal(t, uint16(128+32768), plane.at(0, 0))
	assert.False(t, st.pendingStart[0], "pendingStart clears after the first sample")
}

// buildLosslessJPEG assembles a complete 2x2 single-component lossless
// stream (predictor 1, point transform 0) at the given precision. The
// samples walk one step up from the mid-range start prediction and back:
// diffs are +1, 0, -1, 0 in raster order.
func buildLosslessJPEG(precision byte) []byte {
	sb := &segmentBuilder{}
	sb.marker(SOI)

	sof := []byte{precision, 0x00, 0x02, 0x00, 0x02, 1, 1, 0x11, 0x00}
	sb.segment(SOF3, sof)

	sb.segment(DHT, twoSymbolDHT(0x00, 0x00, 0x01)) // DC: categories 0 and 1

	sos := []byte{1, 1, 0x00, 0x01, 0x00, 0x00}
	sb.segment(SOS, sos)

	// (0,0): category 1 ("01"), bit "1" -> diff +1 from the start value.
	// (1,0): category 0 ("00") -> copies its left neighbor.
	// (0,1): category 1 ("01"), bit "0" -> diff -1 from the above neighbor.
	// (1,1): category 0 ("00") -> copies its left neighbor.
	sb.raw(0x62, 0x3F)
	sb.marker(EOI)

	return sb.bytes()
}

func TestDecodeLossless8Bit(t *testing.T) {
	d := NewDecoder(newSliceReader(buildLosslessJPEG(8)))
	frame, err := d.ReadInfo()
	require.NoError(t, err)
	assert.Equal(t, Lossless, frame.CodingProcess)

	pix, err := d.Decode()
	require.NoError(t, err)
	// Start prediction is 1<<(8-1) = 128.
	assert.Equal(t, []byte{129, 129, 128, 128}, pix)

	layout := d.Layout()
	assert.Equal(t, 2, layout.Width)
	assert.Equal(t, 2, layout.Height)
	assert.Equal(t, 1, layout.Channels)
	assert.Equal(t, uint8(8), layout.Precision)
}

func TestDecodeLossless12BitPacksNativeEndian(t *testing.T) {
	d := NewDecoder(newSliceReader(buildLosslessJPEG(12)))
	pix, err := d.Decode()
	require.NoError(t, err)
	require.Len(t, pix, 2*2*2)

	layout := d.Layout()
	assert.Equal(t, uint8(16), layout.Precision)

	// Start prediction is 1<<(12-1) = 2048.
	want := []uint16{2049, 2049, 2048, 2048}
	for i, w := range want {
		assert.Equal(t, w, binary.NativeEndian.Uint16(pix[i*2:]), "sample %d", i)
	}
}
