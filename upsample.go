package jpeg

// upsampler resamples one component's plane up to the frame's maximum
// sampling resolution. Supported ratios (h_max/h_i, v_max/v_i) are
// integers in {1, 2, 4}; anything else is rejected by newUpsampler as an
// unsupported, non-integer subsampling ratio.
type upsampler struct {
	hRatio, vRatio int
	srcWidth       int
	srcHeight      int
}

func newUpsampler(maxH, maxV, compH, compV uint8, srcWidth, srcHeight int) (*upsampler, error) {
	if int(maxH)%int(compH) != 0 || int(maxV)%int(compV) != 0 {
		return nil, UnsupportedError("non-integer chroma subsampling ratio")
	}
	hRatio := int(maxH) / int(compH)
	vRatio := int(maxV) / int(compV)
	if !isSupportedRatio(hRatio) || !isSupportedRatio(vRatio) {
		return nil, UnsupportedError("chroma subsampling ratio outside {1, 2, 4}")
	}
	return &upsampler{hRatio: hRatio, vRatio: vRatio, srcWidth: srcWidth, srcHeight: srcHeight}, nil
}

func isSupportedRatio(r int) bool {
	return r == 1 || r == 2 || r == 4
}

// sourceRow maps an output row index to the source plane row, using
// cosited (midpoint) mapping for subsampled rows: the sample taken is the
// one nearest the center of the corresponding source region.
func (u *upsampler) sourceRow(outRow int) int {
	if u.vRatio == 1 {
		if outRow >= u.srcHeight {
			return u.srcHeight - 1
		}
		return outRow
	}
	row := (outRow + u.vRatio/2) / u.vRatio
	if row >= u.srcHeight {
		row = u.srcHeight - 1
	}
	return row
}

// expandRow upsamples one source row (length u.srcWidth) horizontally by
// hRatio into dst (length outWidth), replicating samples for a ratio of 1
// and linearly blending neighbors otherwise to avoid blocky artifacts at
// subsampled boundaries.
func (u *upsampler) expandRow(src []byte, dst []byte, outWidth int) {
	if len(src) == 0 {
		for i := 0; i < outWidth; i++ {
			dst[i] = 128
		}
		return
	}
	if u.hRatio == 1 {
		n := outWidth
		if n > len(src) {
			n = len(src)
		}
		copy(dst[:n], src[:n])
		for i := n; i < outWidth; i++ {
			dst[i] = src[len(src)-1]
		}
		return
	}

	for x := 0; x < outWidth; x++ {
		srcX := x / u.hRatio
		if srcX >= len(src) {
			srcX = len(src) - 1
		}
		frac := x % u.hRatio
		if frac == 0 || u.hRatio == 1 {
			dst[x] = src[srcX]
			continue
		}
		left := src[srcX]
		right := left
		if srcX+1 < len(src) {
			right = src[srcX+1]
		}
		// Blend weighted toward the left sample for the first half of
		// the run and the right sample for the second half, centering
		// the transition between source samples (cosited upsampling).
		weight := int32(frac)*2 + 1
		total := int32(u.hRatio) * 2
		v := (int32(left)*(total-weight) + int32(right)*weight + total/2) / total
		dst[x] = byte(v)
	}
}
