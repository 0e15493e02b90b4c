package jpeg

// chooseIDCTSize picks the smallest DCT scale in {1, 2, 4, 8} such that the
// scaled image meets or exceeds requested on at least one axis, falling
// back to full resolution (8) when no smaller scale suffices. full.Width
// must be nonzero.
func chooseIDCTSize(full, requested Dimensions) int {
	if full.Width == 0 {
		panic("jpeg: chooseIDCTSize called with zero-width image")
	}
	for _, scale := range [3]int{1, 2, 4} {
		w := ceilDiv(int(full.Width)*scale-1, 8) + 1
		h := ceilDiv(int(full.Height)*scale-1, 8) + 1
		if w >= int(requested.Width) || h >= int(requested.Height) {
			return scale
		}
	}
	return 8
}

// idctKernel is the dispatch hook a platform-specific SIMD implementation
// may replace; it always defaults to the portable kernel below.
var idctKernel = dequantizeAndIDCT8x8

// dequantizeAndIDCT dispatches to the kernel matching scale, which must be
// one of {1, 2, 4, 8}.
func dequantizeAndIDCT(coeffs *[64]int16, quant *QuantizationTable, scale int, out []byte, stride int) {
	switch scale {
	case 8:
		idctKernel(coeffs, quant, out, stride)
	case 4:
		dequantizeAndIDCT4x4(coeffs, quant, out, stride)
	case 2:
		dequantizeAndIDCT2x2(coeffs, quant, out, stride)
	case 1:
		dequantizeAndIDCT1x1(coeffs, quant, out, stride)
	default:
		panic("jpeg: invalid IDCT scale")
	}
}

const (
	constBits = 12
	pass1Bits = 2
	fixScale  = 1 << constBits
)

func f2f(x float64) int32 {
	return int32(x*fixScale + 0.5)
}

func fsh(x int32) int32 {
	return x << constBits
}

func clamp255(x int32) byte {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return byte(x)
}

// dequantizeAndIDCT8x8 is the portable stb_image-derived fixed-point 8x8
// IDCT. Every intermediate uses wrapping 32-bit arithmetic, so a malicious
// or corrupted coefficient block can never panic, only produce garbage
// pixels.
func dequantizeAndIDCT8x8(coeffs *[64]int16, quant *QuantizationTable, out []byte, stride int) {
	var val [64]int32

	// Per-column pass.
	for col := 0; col < 8; col++ {
		s0 := int32(coeffs[0*8+col]) * int32(quant[0*8+col])
		s1 := int32(coeffs[1*8+col]) * int32(quant[1*8+col])
		s2 := int32(coeffs[2*8+col]) * int32(quant[2*8+col])
		s3 := int32(coeffs[3*8+col]) * int32(quant[3*8+col])
		s4 := int32(coeffs[4*8+col]) * int32(quant[4*8+col])
		s5 := int32(coeffs[5*8+col]) * int32(quant[5*8+col])
		s6 := int32(coeffs[6*8+col]) * int32(quant[6*8+col])
		s7 := int32(coeffs[7*8+col]) * int32(quant[7*8+col])

		if s1 == 0 && s2 == 0 && s3 == 0 && s4 == 0 && s5 == 0 && s6 == 0 && s7 == 0 {
			// Matches the full path's net scale: constants carry 12
			// fractional bits, the >>10 below leaves pass1Bits extra.
			dc := s0 << pass1Bits
			for row := 0; row < 8; row++ {
				val[row*8+col] = dc
			}
			continue
		}

		p2 := s2
		p3 := s6
		p1 := (p2 + p3) * f2f(0.5411961)
		t2 := p1 + p3*f2f(-1.847759065)
		t3 := p1 + p2*f2f(0.765366865)
		p2 = s0
		p3 = s4
		t0 := fsh(p2 + p3)
		t1 := fsh(p2 - p3)
		x0 := t0 + t3
		x3 := t0 - t3
		x1 := t1 + t2
		x2 := t1 - t2

		t0 = s7
		t1 = s5
		t2 = s3
		t3 = s1
		p3 = t0 + t2
		p4 := t1 + t3
		p1 = t0 + t3
		p2 = t1 + t2
		p5 := (p3 + p4) * f2f(1.175875602)

		t0 *= f2f(0.298631336)
		t1 *= f2f(2.053119869)
		t2 *= f2f(3.072711026)
		t3 *= f2f(1.501321110)
		p1 = p5 + p1*f2f(-0.899976223)
		p2 = p5 + p2*f2f(-2.562915447)
		p3 *= f2f(-1.961570560)
		p4 *= f2f(-0.390180644)

		t3 += p1 + p4
		t2 += p2 + p3
		t1 += p2 + p4
		t0 += p1 + p3

		x0 += 512
		x1 += 512
		x2 += 512
		x3 += 512

		val[0*8+col] = (x0 + t3) >> 10
		val[7*8+col] = (x0 - t3) >> 10
		val[1*8+col] = (x1 + t2) >> 10
		val[6*8+col] = (x1 - t2) >> 10
		val[2*8+col] = (x2 + t1) >> 10
		val[5*8+col] = (x2 - t1) >> 10
		val[3*8+col] = (x3 + t0) >> 10
		val[4*8+col] = (x3 - t0) >> 10
	}

	// Per-row pass.
	for row := 0; row < 8; row++ {
		base := row * 8
		s0, s1, s2, s3 := val[base+0], val[base+1], val[base+2], val[base+3]
		s4, s5, s6, s7 := val[base+4], val[base+5], val[base+6], val[base+7]

		p2 := s2
		p3 := s6
		p1 := (p2 + p3) * f2f(0.5411961)
		t2 := p1 + p3*f2f(-1.847759065)
		t3 := p1 + p2*f2f(0.765366865)
		p2 = s0
		p3 = s4
		t0 := fsh(p2 + p3)
		t1 := fsh(p2 - p3)
		x0 := t0 + t3
		x3 := t0 - t3
		x1 := t1 + t2
		x2 := t1 - t2

		t0 = s7
		t1 = s5
		t2 = s3
		t3 = s1
		p3 = t0 + t2
		p4 := t1 + t3
		p1 = t0 + t3
		p2 = t1 + t2
		p5 := (p3 + p4) * f2f(1.175875602)

		t0 *= f2f(0.298631336)
		t1 *= f2f(2.053119869)
		t2 *= f2f(3.072711026)
		t3 *= f2f(1.501321110)
		p1 = p5 + p1*f2f(-0.899976223)
		p2 = p5 + p2*f2f(-2.562915447)
		p3 *= f2f(-1.961570560)
		p4 *= f2f(-0.390180644)

		t3 += p1 + p4
		t2 += p2 + p3
		t1 += p2 + p4
		t0 += p1 + p3

		const bias = 65536 + (128 << 17)
		x0 += bias
		x1 += bias
		x2 += bias
		x3 += bias

		rowOut := out[row*stride : row*stride+8]
		rowOut[0] = clamp255((x0 + t3) >> 17)
		rowOut[7] = clamp255((x0 - t3) >> 17)
		rowOut[1] = clamp255((x1 + t2) >> 17)
		rowOut[6] = clamp255((x1 - t2) >> 17)
		rowOut[2] = clamp255((x2 + t1) >> 17)
		rowOut[5] = clamp255((x2 - t1) >> 17)
		rowOut[3] = clamp255((x3 + t0) >> 17)
		rowOut[4] = clamp255((x3 - t0) >> 17)
	}
}

// dequantizeAndIDCT4x4 is the Dugad/Ahuja scaled variant (Rakesh Dugad and
// Narendra Ahuja, "A Fast Scheme for Image Size Change in the Compressed
// Domain", 2001): only the top-left 4x4 sub-block of coefficients
// contributes, at reduced pass shifts.
func dequantizeAndIDCT4x4(coeffs *[64]int16, quant *QuantizationTable, out []byte, stride int) {
	const finalBits = constBits + pass1Bits + 3

	var temp [16]int32

	for col := 0; col < 4; col++ {
		s0 := int32(coeffs[col+8*0]) * int32(quant[col+8*0])
		s1 := int32(coeffs[col+8*1]) * int32(quant[col+8*1])
		s2 := int32(coeffs[col+8*2]) * int32(quant[col+8*2])
		s3 := int32(coeffs[col+8*3]) * int32(quant[col+8*3])

		x0 := (s0 + s2) << pass1Bits
		x2 := (s0 - s2) << pass1Bits

		p1 := (s1 + s3) * f2f(0.541196100)
		t0 := (p1 + s3*f2f(-1.847759065) + 512) >> (constBits - pass1Bits)
		t2 := (p1 + s1*f2f(0.765366865) + 512) >> (constBits - pass1Bits)

		temp[col+4*0] = x0 + t2
		temp[col+4*3] = x0 - t2
		temp[col+4*1] = x2 + t0
		temp[col+4*2] = x2 - t0
	}

	for row := 0; row < 4; row++ {
		s0, s1, s2, s3 := temp[row*4+0], temp[row*4+1], temp[row*4+2], temp[row*4+3]

		x0 := (s0 + s2) << constBits
		x2 := (s0 - s2) << constBits

		p1 := (s1 + s3) * f2f(0.541196100)
		t0 := p1 + s3*f2f(-1.847759065)
		t2 := p1 + s1*f2f(0.765366865)

		x0 += (1 << (finalBits - 1)) + (128 << finalBits)
		x2 += (1 << (finalBits - 1)) + (128 << finalBits)

		rowOut := out[row*stride : row*stride+4]
		rowOut[0] = clamp255((x0 + t2) >> finalBits)
		rowOut[3] = clamp255((x0 - t2) >> finalBits)
		rowOut[1] = clamp255((x2 + t0) >> finalBits)
		rowOut[2] = clamp255((x2 - t0) >> finalBits)
	}
}

// dequantizeAndIDCT2x2 evaluates only the top-left 2x2 coefficients (DC,
// (1,0), (0,1) and (1,1)), producing a 2x2 output block.
func dequantizeAndIDCT2x2(coeffs *[64]int16, quant *QuantizationTable, out []byte, stride int) {
	const scaleBits = 3

	s00 := int32(coeffs[8*0]) * int32(quant[8*0])
	s10 := int32(coeffs[8*1]) * int32(quant[8*1])
	x0 := s00 + s10
	x2 := s00 - s10

	s01 := int32(coeffs[8*0+1]) * int32(quant[8*0+1])
	s11 := int32(coeffs[8*1+1]) * int32(quant[8*1+1])
	x1 := s01 + s11
	x3 := s01 - s11

	x0 += (1 << (scaleBits - 1)) + (128 << scaleBits)
	x2 += (1 << (scaleBits - 1)) + (128 << scaleBits)

	out[0] = clamp255((x0 + x1) >> scaleBits)
	out[1] = clamp255((x0 - x1) >> scaleBits)
	out[stride+0] = clamp255((x2 + x3) >> scaleBits)
	out[stride+1] = clamp255((x2 - x3) >> scaleBits)
}

// dequantizeAndIDCT1x1 evaluates only the DC coefficient, producing a
// single averaged output sample.
func dequantizeAndIDCT1x1(coeffs *[64]int16, quant *QuantizationTable, out []byte, stride int) {
	_ = stride
	s0 := (int32(coeffs[0])*int32(quant[0]) + 128*8) / 8
	out[0] = clamp255(s0)
}
