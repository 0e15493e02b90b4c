package jpeg

// ColorSpace identifies how to interpret a frame's component planes.
type ColorSpace int

const (
	ColorGrayscale ColorSpace = iota
	ColorYCbCr
	ColorRGB
	ColorCMYK
	ColorYCCK
)

// chooseColorSpace selects a ColorSpace from component count, an explicit
// Adobe transform (if present), and component identifiers, per the
// heuristic used when no transform was declared.
func chooseColorSpace(components []Component, data *AppData) (ColorSpace, error) {
	switch len(components) {
	case 1:
		return ColorGrayscale, nil
	case 3:
		if data.HasAdobe {
			switch data.AdobeTransform {
			case AdobeTransformYCbCr:
				return ColorYCbCr, nil
			case AdobeTransformUnknown:
				return ColorRGB, nil
			}
		}
		if components[0].Identifier == 'R' && components[1].Identifier == 'G' && components[2].Identifier == 'B' {
			return ColorRGB, nil
		}
		return ColorYCbCr, nil
	case 4:
		if data.HasAdobe && data.AdobeTransform == AdobeTransformUnknown {
			return ColorCMYK, nil
		}
		return ColorYCCK, nil
	default:
		return 0, UnsupportedError("unsupported component count")
	}
}

// Fixed-point BT.601 YCbCr->RGB constants, shift 20, rounded to nearest
// (round(k * 2^20)).
const (
	ccShift     = 20
	ccHalf      = 1 << (ccShift - 1)
	ccCrToR     = 1470104  // 1.402
	ccCbToGNeg  = 360853   // 0.344136
	ccCrToGNeg  = 748826   // 0.714136
	ccCbToB     = 1858077  // 1.772
)

// ycbcrToRGB converts one pixel from YCbCr to RGB using fixed-point
// BT.601 coefficients, half-rounded to the nearest integer.
func ycbcrToRGB(y, cb, cr byte) (r, g, b byte) {
	yy := int32(y) << ccShift
	c := int32(cb) - 128
	d := int32(cr) - 128

	r32 := (yy + ccCrToR*d + ccHalf) >> ccShift
	g32 := (yy - ccCbToGNeg*c - ccCrToGNeg*d + ccHalf) >> ccShift
	b32 := (yy + ccCbToB*c + ccHalf) >> ccShift

	return clamp255(r32), clamp255(g32), clamp255(b32)
}

// colorConvertLine converts one row of component samples, given as one
// separate row per component in planes (one byte per pixel each), into
// the interleaved output pixel format for space, writing into out.
func colorConvertLine(space ColorSpace, planes [][]byte, width int, out []byte) {
	switch space {
	case ColorGrayscale:
		copy(out[:width], planes[0][:width])
	case ColorRGB:
		r, g, b := planes[0], planes[1], planes[2]
		for x := 0; x < width; x++ {
			out[x*3+0] = r[x]
			out[x*3+1] = g[x]
			out[x*3+2] = b[x]
		}
	case ColorYCbCr:
		y, cb, cr := planes[0], planes[1], planes[2]
		for x := 0; x < width; x++ {
			r, g, b := ycbcrToRGB(y[x], cb[x], cr[x])
			out[x*3+0] = r
			out[x*3+1] = g
			out[x*3+2] = b
		}
	case ColorCMYK:
		c, m, yy, k := planes[0], planes[1], planes[2], planes[3]
		for x := 0; x < width; x++ {
			out[x*4+0] = 255 - c[x]
			out[x*4+1] = 255 - m[x]
			out[x*4+2] = 255 - yy[x]
			out[x*4+3] = 255 - k[x]
		}
	case ColorYCCK:
		y, cb, cr, k := planes[0], planes[1], planes[2], planes[3]
		for x := 0; x < width; x++ {
			r, g, b := ycbcrToRGB(y[x], cb[x], cr[x])
			out[x*4+0] = 255 - r
			out[x*4+1] = 255 - g
			out[x*4+2] = 255 - b
			out[x*4+3] = 255 - k[x]
		}
	default:
		panic("jpeg: unhandled color space")
	}
}

// bytesPerPixel returns the output stride in bytes per pixel for space.
func bytesPerPixel(space ColorSpace) int {
	switch space {
	case ColorGrayscale:
		return 1
	case ColorRGB, ColorYCbCr:
		return 3
	case ColorCMYK, ColorYCCK:
		return 4
	default:
		panic("jpeg: unhandled color space")
	}
}
