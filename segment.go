package jpeg

// parseSOF reads a SOFn segment into a FrameInfo. marker identifies which
// SOFn was seen and therefore the frame's coding process; arithmetic and
// hierarchical (differential) variants are recognized but rejected as
// unsupported rather than misparsed.
func parseSOF(r Reader, marker Marker) (*FrameInfo, error) {
	if marker.IsArithmeticSOF() {
		return nil, UnsupportedError("arithmetic entropy coding")
	}
	if marker.IsDifferentialSOF() {
		return nil, UnsupportedError("differential (hierarchical) frames")
	}

	length, err := readLength(r, marker)
	if err != nil {
		return nil, err
	}
	if length < 6 {
		return nil, FormatError("SOF segment too short")
	}

	precision, err := r.ReadU8()
	if err != nil {
		return nil, err
	}

	var coding CodingProcess
	switch marker {
	case SOF0, SOF1:
		coding = DctSequential
	case SOF2:
		coding = DctProgressive
	case SOF3:
		coding = Lossless
	default:
		return nil, UnsupportedError("unsupported SOF marker")
	}

	switch coding {
	case Lossless:
		if precision < 2 || precision > 16 {
			return nil, FormatError("invalid sample precision for lossless frame")
		}
	default:
		if precision != 8 && precision != 12 {
			return nil, FormatError("invalid sample precision")
		}
		if precision == 12 {
			return nil, UnsupportedError("12-bit sample precision")
		}
	}

	height, err := r.ReadU16BE()
	if err != nil {
		return nil, err
	}
	width, err := r.ReadU16BE()
	if err != nil {
		return nil, err
	}
	if width == 0 {
		return nil, FormatError("image width is zero")
	}

	componentCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if componentCount == 0 {
		return nil, FormatError("frame declares no components")
	}
	if coding == DctProgressive && componentCount > 4 {
		return nil, FormatError("progressive frame with more than 4 components")
	}
	if length != 6+3*int(componentCount) {
		return nil, FormatError("SOF segment length does not match component count")
	}

	maxH, maxV := uint8(0), uint8(0)
	components := make([]Component, componentCount)
	for i := range components {
		id, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		for _, c := range components[:i] {
			if c.Identifier == id {
				return nil, FormatError("duplicate component identifier")
			}
		}

		sampling, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		h, v := sampling>>4, sampling&0x0f
		if h == 0 || h > 4 || v == 0 || v > 4 {
			return nil, FormatError("invalid component sampling factors")
		}
		if h > maxH {
			maxH = h
		}
		if v > maxV {
			maxV = v
		}

		quantIndex, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if quantIndex > 3 {
			return nil, FormatError("invalid quantization table destination")
		}
		if coding == Lossless && quantIndex != 0 {
			return nil, FormatError("lossless frame component must use quantization table 0")
		}

		components[i] = Component{
			Identifier: id,
			HSampling:  h,
			VSampling:  v,
			QuantIndex: int(quantIndex),
			DCTScale:   8,
		}
	}

	// Lossless frames have no 8x8 blocking: the MCU grid is measured
	// directly in samples, one sample per component per (h_i, v_i) unit.
	unit := 8
	if coding == Lossless {
		unit = 1
	}
	mcuWidth := int(maxH) * unit
	mcuHeight := int(maxV) * unit
	mcuCols := ceilDiv(int(width), mcuWidth)
	mcuRows := ceilDiv(int(height), mcuHeight)

	for i := range components {
		c := &components[i]
		sizeW := ceilDiv(int(width)*int(c.HSampling), int(maxH))
		sizeH := ceilDiv(int(height)*int(c.VSampling), int(maxV))
		c.Size = Dimensions{Width: uint16(sizeW), Height: uint16(sizeH)}
		c.BlockSize = Dimensions{
			Width:  uint16(mcuCols * int(c.HSampling) * unit),
			Height: uint16(mcuRows * int(c.VSampling) * unit),
		}
	}

	return &FrameInfo{
		IsBaseline:    marker == SOF0,
		CodingProcess: coding,
		EntropyCoding: Huffman,
		Precision:     precision,
		ImageSize:     Dimensions{Width: width, Height: height},
		MCUSize:       Dimensions{Width: uint16(mcuCols), Height: uint16(mcuRows)},
		Components:    components,
	}, nil
}

// ceilDiv mirrors libjpeg's component-size formula: ceil(a / b).
func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// parseSOS reads a SOS segment header (not the entropy-coded data that
// follows it) into a ScanInfo, validating it against the already-parsed
// frame.
func parseSOS(r Reader, frame *FrameInfo) (*ScanInfo, error) {
	length, err := readLength(r, SOS)
	if err != nil {
		return nil, err
	}
	if length < 1 {
		return nil, FormatError("SOS segment too short")
	}

	componentCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	if componentCount == 0 || componentCount > 4 {
		return nil, FormatError("invalid scan component count")
	}
	if length != 4+2*int(componentCount) {
		return nil, FormatError("SOS segment length does not match component count")
	}

	componentIndices := make([]int, componentCount)
	dcIndices := make([]int, componentCount)
	acIndices := make([]int, componentCount)
	lastFrameIndex := -1

	for i := 0; i < int(componentCount); i++ {
		id, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		frameIndex := frame.ComponentIndex(id)
		if frameIndex < 0 {
			return nil, FormatError("scan references unknown component identifier")
		}
		if frameIndex <= lastFrameIndex {
			return nil, FormatError("scan components must appear in frame order with no repeats")
		}
		lastFrameIndex = frameIndex
		componentIndices[i] = frameIndex

		tables, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		dc, ac := tables>>4, tables&0x0f
		if dc > 3 || ac > 3 {
			return nil, FormatError("invalid entropy table destination")
		}
		if frame.IsBaseline && (dc > 1 || ac > 1) {
			return nil, FormatError("baseline frame may only use Huffman tables 0 and 1")
		}
		dcIndices[i] = int(dc)
		acIndices[i] = int(ac)
	}

	if componentCount > 1 {
		blocksPerMCU := 0
		for _, idx := range componentIndices {
			blocksPerMCU += frame.Components[idx].BlocksPerMCU()
		}
		if blocksPerMCU > 10 {
			return nil, FormatError("MCU exceeds 10 data units with multiple scan components")
		}
	}

	ss, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	se, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	ahal, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	ah, al := ahal>>4, ahal&0x0f

	scan := &ScanInfo{
		ComponentIndices: componentIndices,
		DCTableIndices:   dcIndices,
		ACTableIndices:   acIndices,
	}

	switch frame.CodingProcess {
	case Lossless:
		if ss == 0 || ss > 7 {
			return nil, FormatError("invalid lossless predictor selection")
		}
		scan.Predictor = ss
		scan.PointTransform = al
	case DctProgressive:
		if se > 63 {
			return nil, FormatError("spectral selection end out of range")
		}
		if ss > se {
			return nil, FormatError("spectral selection start exceeds end")
		}
		if ss == 0 && se != 0 {
			return nil, FormatError("DC scan must have spectral selection end of 0")
		}
		if ss > 0 && componentCount != 1 {
			return nil, FormatError("AC progressive scan must be non-interleaved")
		}
		if ah > 13 || al > 13 {
			return nil, FormatError("successive approximation out of range")
		}
		if ah != 0 && ah != al+1 {
			return nil, FormatError("successive approximation high must equal low+1 on refinement")
		}
		scan.SpectralSelectionStart = ss
		scan.SpectralSelectionEnd = se
		scan.SuccessiveApproxHigh = ah
		scan.SuccessiveApproxLow = al
	default:
		if ss != 0 || se != 63 || ah != 0 || al != 0 {
			return nil, FormatError("sequential scan must span the full spectral range")
		}
		scan.SpectralSelectionStart = 0
		scan.SpectralSelectionEnd = 63
	}

	return scan, nil
}

// parseDRI reads a DRI segment, returning the restart interval in MCUs (0
// disables restart markers).
func parseDRI(r Reader) (int, error) {
	length, err := readLength(r, DRI)
	if err != nil {
		return 0, err
	}
	if length != 2 {
		return 0, FormatError("DRI segment must be exactly 2 bytes")
	}
	v, err := r.ReadU16BE()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// parseCOM reads a COM segment's opaque comment bytes.
func parseCOM(r Reader) ([]byte, error) {
	length, err := readLength(r, COM)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	if err := r.ReadExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// skipSegment discards a length-prefixed segment's payload without
// interpreting it, used for markers the decoder has no handler for.
func skipSegment(r Reader, marker Marker) error {
	length, err := readLength(r, marker)
	if err != nil {
		return err
	}
	return r.Skip(length)
}
