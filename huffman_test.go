package jpeg

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPackedBits packs a slice of (code, length) pairs MSB-first into a
// byte slice, padding the final byte with 1s per JPEG convention.
func buildPackedBits(codes []uint32, lengths []uint8) []byte {
	var bits []byte
	for i, code := range codes {
		l := lengths[i]
		for b := int(l) - 1; b >= 0; b-- {
			bits = append(bits, byte((code>>uint(b))&1))
		}
	}
	for len(bits)%8 != 0 {
		bits = append(bits, 1)
	}
	out := make([]byte, len(bits)/8)
	for i, b := range bits {
		out[i/8] |= b << uint(7-i%8)
	}
	return stuffFFBytes(out)
}

// stuffFFBytes inserts the 0x00 stuffing byte after every literal 0xFF data
// byte, mirroring what a real encoder does and what bitReader.fill expects
// when it is not looking at a genuine marker.
func stuffFFBytes(in []byte) []byte {
	out := make([]byte, 0, len(in))
	for _, b := range in {
		out = append(out, b)
		if b == 0xFF {
			out = append(out, 0x00)
		}
	}
	return out
}

// TestHuffmanCanonicalRoundTrip: for a random length histogram within the
// canonical code budget, the built table must decode every symbol it was
// constructed from.
func TestHuffmanCanonicalRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 50; trial++ {
		var counts [16]byte
		total := 0
		// Keep the tree full enough to stay decodable (Kraft inequality)
		// by building increasingly specific lengths from a shrinking pool,
		// the same way a canonical encoder assigns codes.
		remaining := 1 << 16
		for l := 0; l < 16 && total < 64; l++ {
			maxAtLevel := remaining >> uint(16-l)
			if maxAtLevel <= 0 {
				continue
			}
			n := rng.Intn(min(maxAtLevel, 4) + 1)
			counts[l] = byte(n)
			total += n
			remaining -= n << uint(16-l)
		}
		if total == 0 {
			counts[7] = 1
			total = 1
		}

		values := make([]byte, total)
		for i := range values {
			values[i] = byte(i)
		}

		table, err := buildHuffmanTable(counts, values)
		require.NoError(t, err, "trial %d", trial)

		// Recompute canonical codes exactly as buildHuffmanTable does, to
		// drive the decoder with a known-correct bitstream.
		huffsize := make([]uint8, total)
		k := 0
		for l := 0; l < 16; l++ {
			for i := 0; i < int(counts[l]); i++ {
				huffsize[k] = uint8(l + 1)
				k++
			}
		}
		huffcode := make([]uint32, total)
		code := uint32(0)
		size := huffsize[0]
		k = 0
		for k < total {
			for k < total && huffsize[k] == size {
				huffcode[k] = code
				code++
				k++
			}
			code <<= 1
			size++
		}

		packed := buildPackedBits(huffcode, huffsize)
		br := newBitReader(newSliceReader(append(packed, 0xFF, 0xD9)))
		for i, want := range values {
			got, err := br.Decode(table)
			require.NoError(t, err, "trial %d symbol %d", trial, i)
			assert.Equal(t, want, got, "trial %d symbol %d", trial, i)
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func TestReceiveExtendRange(t *testing.T) {
	for n := uint8(0); n <= 15; n++ {
		lo := -(int32(1)<<n - 1)
		hi := int32(1)<<n - 1
		for _, raw := range []uint32{0, (1 << n) - 1, 1 << (n - 1)} {
			if n == 0 {
				raw = 0
			}
			v := extend(int32(raw), int(n))
			assert.GreaterOrEqual(t, v, lo, "n=%d raw=%d", n, raw)
			assert.LessOrEqual(t, v, hi, "n=%d raw=%d", n, raw)
		}
	}
}

func TestBuildHuffmanTableRejectsMismatch(t *testing.T) {
	var counts [16]byte
	counts[0] = 2
	_, err := buildHuffmanTable(counts, []byte{0})
	require.Error(t, err)
	assert.IsType(t, FormatError(""), err)
}

func TestParseDHTSlotWiseReplacement(t *testing.T) {
	var dc, ac [4]*HuffmanTable

	seg1 := &segmentBuilder{}
	seg1.raw(0x00) // class 0 (DC), dest 0
	counts := make([]byte, 16)
	counts[0] = 1
	seg1.raw(counts...)
	seg1.raw(0x05)
	b1 := seg1.bytes()
	require.NoError(t, parseDHT(newSliceReader(prependLength(b1)), &dc, &ac))
	require.NotNil(t, dc[0])
	first := dc[0]

	seg2 := &segmentBuilder{}
	seg2.raw(0x01) // class 0 (DC), dest 1
	seg2.raw(counts...)
	seg2.raw(0x07)
	b2 := seg2.bytes()
	require.NoError(t, parseDHT(newSliceReader(prependLength(b2)), &dc, &ac))

	assert.Same(t, first, dc[0], "slot 0 must survive a DHT segment that only defines slot 1")
	require.NotNil(t, dc[1])
}


// TestDecodeFastACAgreesWithSlowPath drives the Annex K.3 luminance AC
// table through both decode paths for a short run/size symbol: the
// combined fast-AC lookup must yield exactly what Decode followed by
// ReceiveExtend yields for the same bits.
func TestDecodeFastACAgreesWithSlowPath(t *testing.T) {
	table, err := buildHuffmanTable(mjpegLumaACCounts, mjpegLumaACValues)
	require.NoError(t, err)

	// Symbol 0x01 (run 0, size 1) is the first length-2 code, "00"; its
	// single magnitude bit follows. "1" extends to +1, "0" to -1.
	for _, tc := range []struct {
		bits  []byte
		value int16
	}{
		{[]byte{0x20}, 1},  // 001 00000
		{[]byte{0x00}, -1}, // 000 00000
	} {
		fast := newBitReader(newSliceReader(append(tc.bits, 0xFF, 0xD9)))
		run, value, ok, err := fast.DecodeFastAC(table)
		require.NoError(t, err)
		require.True(t, ok, "short code must hit the fast-AC table")
		assert.Equal(t, uint8(0), run)
		assert.Equal(t, tc.value, value)

		slow := newBitReader(newSliceReader(append(tc.bits, 0xFF, 0xD9)))
		rs, err := slow.Decode(table)
		require.NoError(t, err)
		require.Equal(t, byte(0x01), rs)
		v, err := slow.ReceiveExtend(rs & 0x0f)
		require.NoError(t, err)
		assert.Equal(t, int32(tc.value), v)
	}
}

// TestBitReaderStuffingAndMarkerCapture covers the two 0xFF escapes in
// entropy data: FF 00 contributes a literal 0xFF data byte, while FF
// followed by a marker code stops the bit supply (zero bits thereafter)
// until the scan consumer drains the marker.
func TestBitReaderStuffingAndMarkerCapture(t *testing.T) {
	br := newBitReader(newSliceReader([]byte{0xFF, 0x00, 0xFF, 0xD9}))

	v, err := br.ReceiveBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFF), v, "FF 00 must decode as a literal FF data byte")

	v, err = br.ReceiveBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v, "past the marker the reader supplies zero bits")

	m, err := br.Drain()
	require.NoError(t, err)
	assert.Equal(t, EOI, m)
}
