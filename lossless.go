package jpeg

// losslessPlane is one component's reconstructed sample plane from a
// lossless scan, stored as the 16-bit values the predictor reconstructs
// before the final precision-dependent packing.
type losslessPlane struct {
	width, height int
	samples       []uint16
}

func newLosslessPlane(width, height int) losslessPlane {
	return losslessPlane{width: width, height: height, samples: make([]uint16, width*height)}
}

func (p *losslessPlane) at(x, y int) uint16 {
	if x < 0 || y < 0 {
		return 0
	}
	return p.samples[y*p.width+x]
}

func (p *losslessPlane) set(x, y int, v uint16) {
	p.samples[y*p.width+x] = v
}

// losslessPredict implements the T.81 Annex H prediction rule selection:
// the first sample of the scan (or of any restart interval) predicts from
// a fixed value derived from precision and point transform; the first row
// predicts from the left neighbor; the first column from the neighbor
// above; everywhere else one of the seven numbered predictors applies.
func losslessPredict(selector uint8, precision uint8, pointTransform uint8, x, y int, atStart bool, plane *losslessPlane) int32 {
	if atStart {
		if precision > pointTransform+1 {
			return int32(1) << (precision - pointTransform - 1)
		}
		return 0
	}
	if y == 0 && x > 0 {
		return int32(plane.at(x-1, y))
	}
	if x == 0 && y > 0 {
		return int32(plane.at(x, y-1))
	}

	a := int32(plane.at(x-1, y))
	b := int32(plane.at(x, y-1))
	c := int32(plane.at(x-1, y-1))

	switch selector {
	case 1:
		return a
	case 2:
		return b
	case 3:
		return c
	case 4:
		return a + b - c
	case 5:
		return a + ((b - c) >> 1)
	case 6:
		return b + ((a - c) >> 1)
	case 7:
		return (a + b) / 2
	default:
		return 0
	}
}

// losslessScanState carries the per-component running state reset at scan
// start and at every restart marker, mirroring the DCT scan's dc
// predictors and EOB-run reset.
type losslessScanState struct {
	br              *bitReader
	r               Reader
	frame           *FrameInfo
	scan            *ScanInfo
	dcTables        [4]*HuffmanTable
	restartInterval int
	mcusUntilReset  int
	expectedRST     uint8

	// pendingStart tracks, per component index, whether the next sample
	// decoded for that component is the scan's first or immediately
	// follows a restart, the only case the fixed start-value prediction
	// applies, independent of MCU/sample-within-MCU position.
	pendingStart map[int]bool
}

// decodeLossless runs an entire lossless scan, returning one plane per
// frame component, indexed like frame.Components; only the components
// referenced by the scan are reconstructed (the others are left as
// zero-value planes with no samples).
func decodeLossless(r Reader, frame *FrameInfo, scan *ScanInfo, dcTables [4]*HuffmanTable, restartInterval int) ([]losslessPlane, Marker, error) {
	planes := make([]losslessPlane, len(frame.Components))
	for _, idx := range scan.ComponentIndices {
		c := frame.Components[idx]
		planes[idx] = newLosslessPlane(int(c.Size.Width), int(c.Size.Height))
	}

	st := &losslessScanState{
		br:              newBitReader(r),
		r:               r,
		frame:           frame,
		scan:            scan,
		dcTables:        dcTables,
		restartInterval: restartInterval,
		mcusUntilReset:  restartInterval,
		pendingStart:    make(map[int]bool, len(scan.ComponentIndices)),
	}
	for _, idx := range scan.ComponentIndices {
		st.pendingStart[idx] = true
	}

	mcuCols := int(frame.MCUSize.Width)
	mcuRows := int(frame.MCUSize.Height)

	for mcuY := 0; mcuY < mcuRows; mcuY++ {
		for mcuX := 0; mcuX < mcuCols; mcuX++ {
			for _, idx := range scan.ComponentIndices {
				c := frame.Components[idx]
				plane := &planes[idx]
				for sy := 0; sy < int(c.VSampling); sy++ {
					for sx := 0; sx < int(c.HSampling); sx++ {
						x := mcuX*int(c.HSampling) + sx
						y := mcuY*int(c.VSampling) + sy
						if x >= plane.width || y >= plane.height {
							continue
						}
						if err := decodeLosslessSample(st, idx, plane, x, y); err != nil {
							return nil, 0, err
						}
					}
				}
			}

			isLast := mcuY == mcuRows-1 && mcuX == mcuCols-1
			if err := advanceLosslessMCU(st, isLast); err != nil {
				return nil, 0, err
			}
		}
	}

	trailing, err := st.br.Drain()
	if err != nil {
		return nil, 0, err
	}
	return planes, trailing, nil
}

func decodeLosslessSample(st *losslessScanState, compIdx int, plane *losslessPlane, x, y int) error {
	table := st.dcTables[0]
	for i, idx := range st.scan.ComponentIndices {
		if idx == compIdx {
			table = st.dcTables[st.scan.DCTableIndices[i]]
			break
		}
	}
	if table == nil {
		return FormatError("lossless scan references an undefined DC table")
	}

	category, err := st.br.Decode(table)
	if err != nil {
		return err
	}
	if category > 16 {
		return FormatError("invalid lossless DC category")
	}

	var diff int32
	if category == 16 {
		diff = 32768
	} else if category > 0 {
		diff, err = st.br.ReceiveExtend(category)
		if err != nil {
			return err
		}
	}

	atStart := st.pendingStart[compIdx]
	st.pendingStart[compIdx] = false
	prediction := losslessPredict(st.scan.Predictor, st.frame.Precision, st.scan.PointTransform, x, y, atStart, plane)
	sample := uint16((prediction+diff)&0xFFFF) << st.scan.PointTransform
	plane.set(x, y, sample)
	return nil
}

// advanceLosslessMCU accounts one MCU against the restart interval and,
// when it elapses, expects and consumes the matching RST marker, resetting
// the Huffman bit buffer so the next sample again predicts from the
// start-of-interval constant. A valid stream never emits a restart marker
// after the scan's last MCU, so isLastMCU suppresses the expectation then.
func advanceLosslessMCU(st *losslessScanState, isLastMCU bool) error {
	if st.restartInterval == 0 {
		return nil
	}
	st.mcusUntilReset--
	if st.mcusUntilReset > 0 {
		return nil
	}
	if isLastMCU {
		return nil
	}

	m, err := st.br.ExpectMarker()
	if err != nil {
		return err
	}
	if !m.IsRST() || m.RSTNumber() != st.expectedRST {
		return FormatError("unexpected restart marker")
	}
	st.br.Reset()
	st.expectedRST = (st.expectedRST + 1) % 8
	st.mcusUntilReset = st.restartInterval
	for idx := range st.pendingStart {
		st.pendingStart[idx] = true
	}
	return nil
}
