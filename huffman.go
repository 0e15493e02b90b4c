package jpeg

import "errors"

// HuffmanTable is a canonical Huffman table derived from the 16 code-length
// counts and the symbol values of a DHT segment (Annex C). It precomputes
// an 8-bit direct lookup table for the common case and a fast-AC table that
// resolves short zero-run/value AC pairs in a single lookup.
type HuffmanTable struct {
	// lutBits is the size of lut's index, fixed at 8.
	lut [256]lutEntry

	// maxcode[l] is the largest canonical code of length l+1 (Figure F.16),
	// or -1 if no code of that length exists. Used for the bit-by-bit
	// fallback when a code is longer than lutBits.
	maxcode [18]int32
	// valptr[l] indexes into values for the first symbol of length l+1.
	valptr [18]int32
	// mincode[l] is the smallest canonical code of length l+1.
	mincode [18]int32

	values []byte

	// fastAC[i], indexed the same as lut, decodes a short AC coefficient
	// in one step: zero run (4 bits), magnitude category satisfied, and
	// the coefficient value itself, when both the run/size byte and the
	// full magnitude fit within lutBits bits. Entries that don't qualify
	// are zero (fastACEntry.bits == 0).
	fastAC [256]fastACEntry
}

type lutEntry struct {
	// symbol is the decoded byte value; bits is the number of bits
	// consumed, or 0 if the code is longer than lutBits (lookup miss).
	symbol byte
	bits   uint8
}

type fastACEntry struct {
	run   uint8
	value int16
	bits  uint8
}

const lutBits = 8

// buildHuffmanTable derives a canonical Huffman table from counts (the 16
// per-length symbol counts of a DHT entry) and values (the symbols in
// code order), per T.81 Annex C figures C.1 and C.2.
func buildHuffmanTable(counts [16]byte, values []byte) (*HuffmanTable, error) {
	total := 0
	for _, c := range counts {
		total += int(c)
	}
	if total == 0 {
		return nil, FormatError("Huffman table defines no codes")
	}
	if total != len(values) {
		return nil, FormatError("Huffman table symbol count mismatch")
	}
	if total > 256 {
		return nil, FormatError("Huffman table defines more than 256 codes")
	}

	// huffsize: length of non-existent canonical code would be avoided by
	// only ever producing `total` number of entries; code and size per
	// symbol computed following Annex C.2.
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

	t := &HuffmanTable{values: values}
	for i := range t.maxcode {
		t.maxcode[i] = -1
	}

	p := 0
	for l := 0; l < 16; l++ {
		if counts[l] == 0 {
			continue
		}
		t.valptr[l] = int32(p)
		t.mincode[l] = int32(huffcode[p])
		p += int(counts[l])
		t.maxcode[l] = int32(huffcode[p-1])
	}

	for i, v := range values {
		size := int(huffsize[i])
		codeVal := huffcode[i]
		if size > lutBits {
			continue
		}
		// Fill every lutBits-bit index whose top `size` bits equal
		// codeVal: the remaining (lutBits-size) low bits are free.
		shift := lutBits - size
		base := int(codeVal) << shift
		for fill := 0; fill < 1<<shift; fill++ {
			t.lut[base+fill] = lutEntry{symbol: v, bits: uint8(size)}
		}
	}

	t.buildFastAC()
	return t, nil
}

// buildFastAC augments every lut entry that decodes an AC run/size byte
// with the extra bits for its magnitude, when both fit within lutBits,
// so a common short AC coefficient costs one table lookup instead of two.
func (t *HuffmanTable) buildFastAC() {
	for i := 0; i < 256; i++ {
		e := t.lut[i]
		if e.bits == 0 {
			continue
		}
		run := e.symbol >> 4
		magCategory := e.symbol & 0x0f
		if magCategory == 0 || magCategory > 10 {
			// ZRL, EOB or a magnitude too wide to fit alongside
			// the run/size byte within a byte-sized lookup.
			continue
		}
		totalBits := int(e.bits) + int(magCategory)
		if totalBits > lutBits {
			continue
		}
		extraShift := lutBits - int(e.bits)
		extraBits := (i >> (extraShift - int(magCategory))) & ((1 << magCategory) - 1)
		value := extend(int32(extraBits), int(magCategory))
		if value < -128 || value > 127 {
			continue
		}
		t.fastAC[i] = fastACEntry{
			run:   run,
			value: int16(value),
			bits:  uint8(totalBits),
		}
	}
}

// extend implements Figure F.12: sign-extends an s-bit magnitude value
// read as an unsigned integer into a signed one.
func extend(v int32, bits int) int32 {
	if bits == 0 {
		return 0
	}
	vt := int32(1) << (bits - 1)
	if v < vt {
		return v - (int32(1)<<bits - 1)
	}
	return v
}

// bitReader is a big-endian MSB-first bit reader over entropy-coded scan
// data. It transparently discards stuffed 0x00 bytes following 0xFF and
// stops consuming data (returning zero bits) once it encounters a marker,
// which the caller retrieves via ExpectMarker or Drain.
type bitReader struct {
	r Reader

	bits    uint32 // left-justified bit accumulator
	numBits uint8  // valid bits in bits, from the MSB down

	marker    Marker
	hasMarker bool
	eof       bool
}

func newBitReader(r Reader) *bitReader {
	return &bitReader{r: r}
}

// fill tops up the accumulator to at least n bits (n <= 25), or leaves it
// short if a marker or end of stream is hit, after which the consumers
// below supply zero bits. Only a non-EOF reader failure is an error:
// truncated entropy data decodes as far as it goes, libjpeg-style, and
// the truncation surfaces when the scan's terminating marker is missing.
func (b *bitReader) fill(n uint8) error {
	for b.numBits < n && !b.hasMarker && !b.eof {
		by, err := b.r.ReadU8()
		if err != nil {
			return b.noteReadEnd(err)
		}
		if by == 0xFF {
			next, err := b.r.ReadU8()
			if err != nil {
				return b.noteReadEnd(err)
			}
			// A run of extra 0xFF bytes may precede the real marker
			// code (fill bytes); discard them until a non-0xFF byte
			// settles what follows.
			for next == 0xFF {
				next, err = b.r.ReadU8()
				if err != nil {
					return b.noteReadEnd(err)
				}
			}
			if next == 0x00 {
				// byte-stuffing: the 0xFF itself is data.
			} else {
				m, _ := MarkerFromByte(next)
				b.marker = m
				b.hasMarker = true
				break
			}
		}
		b.bits |= uint32(by) << (24 - b.numBits)
		b.numBits += 8
	}
	return nil
}

// noteReadEnd converts an end-of-stream failure into the zero-bit-supply
// state; any other reader failure propagates.
func (b *bitReader) noteReadEnd(err error) error {
	if errors.Is(err, ErrUnexpectedEOF) {
		b.eof = true
		return nil
	}
	return err
}

// ResetMarker clears a captured marker so the reader can resume after the
// caller has consumed it (used only at RST boundaries).
func (b *bitReader) ResetMarker() {
	b.marker = 0
	b.hasMarker = false
}

// ExpectMarker discards any buffered padding bits (entropy data is byte-
// aligned before every marker) and returns the next marker, whether it was
// already captured during a fill or its bytes are still unread. The
// captured-marker state is cleared, so the stream can resume after a
// restart.
func (b *bitReader) ExpectMarker() (Marker, error) {
	b.bits = 0
	b.numBits = 0
	if b.hasMarker {
		m := b.marker
		b.ResetMarker()
		return m, nil
	}
	return nextMarker(b.r)
}

// Reset discards any buffered bits, used when a restart marker realigns
// the stream to a byte boundary.
func (b *bitReader) Reset() {
	b.bits = 0
	b.numBits = 0
	b.ResetMarker()
}

// Drain discards any leftover padding bits and surfaces the marker that
// terminates the scan's entropy-coded data. Called once a scan's MCU loop
// is done, so the caller learns what comes next without a redundant
// top-level marker read. Stray bytes between the last data byte and the
// marker are skipped with the same leniency nextMarker applies between
// segments.
func (b *bitReader) Drain() (Marker, error) {
	b.bits = 0
	b.numBits = 0
	if b.hasMarker {
		m := b.marker
		b.ResetMarker()
		return m, nil
	}
	return nextMarker(b.r)
}

// ReceiveBits reads n raw bits (0 <= n <= 16) as an unsigned value. It
// returns fewer bits with no error if the stream hit a marker early,
// mirroring libjpeg's lenient handling of truncated entropy data: the
// caller must be prepared for a zero-filled tail.
func (b *bitReader) ReceiveBits(n uint8) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if err := b.fill(n); err != nil {
		return 0, err
	}
	got := n
	if b.numBits < n {
		got = b.numBits
	}
	v := b.bits >> (32 - got)
	b.bits <<= got
	b.numBits -= got
	if got < n {
		v <<= n - got
	}
	return v, nil
}

// ReceiveExtend reads an n-bit magnitude and sign-extends it per Figure
// F.12 (the DC/AC coefficient decode primitive).
func (b *bitReader) ReceiveExtend(n uint8) (int32, error) {
	if n == 0 {
		return 0, nil
	}
	v, err := b.ReceiveBits(n)
	if err != nil {
		return 0, err
	}
	return extend(int32(v), int(n)), nil
}

// Decode reads one Huffman-coded symbol using t, via the 8-bit LUT fast
// path and falling back to bit-by-bit search (Figure F.16) for codes
// longer than lutBits.
func (b *bitReader) Decode(t *HuffmanTable) (byte, error) {
	if err := b.fill(lutBits); err != nil {
		return 0, err
	}
	peek := b.bits >> (32 - lutBits)
	if e := t.lut[peek]; e.bits != 0 && e.bits <= b.numBits {
		b.bits <<= e.bits
		b.numBits -= e.bits
		return e.symbol, nil
	}
	return b.decodeSlow(t)
}

// DecodeFastAC attempts the combined run/value fast path; ok is false if
// the code doesn't qualify and the caller must fall back to Decode plus
// ReceiveExtend.
func (b *bitReader) DecodeFastAC(t *HuffmanTable) (run uint8, value int16, ok bool, err error) {
	if err = b.fill(lutBits); err != nil {
		return 0, 0, false, err
	}
	peek := b.bits >> (32 - lutBits)
	e := t.fastAC[peek]
	if e.bits == 0 || e.bits > b.numBits {
		return 0, 0, false, nil
	}
	b.bits <<= e.bits
	b.numBits -= e.bits
	return e.run, e.value, true, nil
}

func (b *bitReader) decodeSlow(t *HuffmanTable) (byte, error) {
	code := int32(0)
	for l := 0; l < 16; l++ {
		bit, err := b.ReceiveBits(1)
		if err != nil {
			return 0, err
		}
		code = (code << 1) | int32(bit)
		if t.maxcode[l] >= 0 && code <= t.maxcode[l] && code >= t.mincode[l] {
			idx := t.valptr[l] + (code - t.mincode[l])
			if int(idx) >= len(t.values) {
				return 0, FormatError("Huffman code index out of range")
			}
			return t.values[idx], nil
		}
	}
	return 0, FormatError("invalid Huffman code")
}

// parseDHT reads a DHT segment, which may define multiple tables across
// up to 4 DC slots and 4 AC slots. Tables are replaced slot-wise: a slot
// not named in this segment keeps whatever table (if any) it already has.
func parseDHT(r Reader, dcTables, acTables *[4]*HuffmanTable) error {
	length, err := readLength(r, DHT)
	if err != nil {
		return err
	}

	for length > 0 {
		if length < 17 {
			return FormatError("DHT segment too short for table header")
		}
		b, err := r.ReadU8()
		if err != nil {
			return err
		}
		class := b >> 4
		index := int(b & 0x0f)
		if class > 1 {
			return FormatError("invalid Huffman table class")
		}
		if index > 3 {
			return FormatError("invalid Huffman table destination")
		}

		var counts [16]byte
		total := 0
		for i := range counts {
			c, err := r.ReadU8()
			if err != nil {
				return err
			}
			counts[i] = c
			total += int(c)
		}
		length -= 17

		if length < total {
			return FormatError("DHT segment too short for declared symbols")
		}
		values := make([]byte, total)
		if err := r.ReadExact(values); err != nil {
			return err
		}
		length -= total

		table, err := buildHuffmanTable(counts, values)
		if err != nil {
			return err
		}
		if class == 0 {
			dcTables[index] = table
		} else {
			acTables[index] = table
		}
	}

	if length != 0 {
		return FormatError("trailing bytes in DHT segment")
	}
	return nil
}

// The following four tables are the fixed default Huffman tables of T.81
// Annex K.3, used by Motion JPEG streams that omit their own DHT segments
// and instead signal an AVI1 APP0 marker.
var (
	mjpegLumaDCCounts   = [16]byte{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0}
	mjpegLumaDCValues   = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	mjpegChromaDCCounts = [16]byte{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0}
	mjpegChromaDCValues = []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	mjpegLumaACCounts = [16]byte{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 0x7d}
	mjpegLumaACValues = []byte{
		0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
		0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
		0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
		0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
		0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
		0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
		0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
		0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
		0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
		0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
		0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
		0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
		0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
		0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
		0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
		0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
		0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
		0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
		0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
		0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
		0xf9, 0xfa,
	}

	mjpegChromaACCounts = [16]byte{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 0x77}
	mjpegChromaACValues = []byte{
		0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
		0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
		0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
		0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
		0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
		0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
		0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
		0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
		0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
		0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
		0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
		0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
		0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
		0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
		0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
		0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
		0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
		0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
		0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
		0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
		0xf9, 0xfa,
	}
)

// installMJPEGDefaults fills any empty DC/AC slot 0 or 1 with the Annex
// K.3 default tables. Slots already defined by a DHT segment are left
// untouched, and slots 2/3 are never touched since MJPEG only ever
// references 0 and 1.
func installMJPEGDefaults(dcTables, acTables *[4]*HuffmanTable) error {
	if dcTables[0] == nil {
		t, err := buildHuffmanTable(mjpegLumaDCCounts, mjpegLumaDCValues)
		if err != nil {
			return err
		}
		dcTables[0] = t
	}
	if dcTables[1] == nil {
		t, err := buildHuffmanTable(mjpegChromaDCCounts, mjpegChromaDCValues)
		if err != nil {
			return err
		}
		dcTables[1] = t
	}
	if acTables[0] == nil {
		t, err := buildHuffmanTable(mjpegLumaACCounts, mjpegLumaACValues)
		if err != nil {
			return err
		}
		acTables[0] = t
	}
	if acTables[1] == nil {
		t, err := buildHuffmanTable(mjpegChromaACCounts, mjpegChromaACValues)
		if err != nil {
			return err
		}
		acTables[1] = t
	}
	return nil
}
