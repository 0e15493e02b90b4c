package jpeg

// coeffPlane is a flat, block-raster array of DCT coefficients for one
// component of a DCT frame (sequential or progressive), plus a per-block completion mask
// recording which frequencies some scan has coded down to bit plane zero.
type coeffPlane struct {
	blockWidth, blockHeight int
	coeffs                  []int16
	completion              []uint64
}

func newCoeffPlane(blockWidth, blockHeight int) coeffPlane {
	return coeffPlane{
		blockWidth:  blockWidth,
		blockHeight: blockHeight,
		coeffs:      make([]int16, blockWidth*blockHeight*64),
		completion:  make([]uint64, blockWidth*blockHeight),
	}
}

func (p *coeffPlane) block(bx, by int) *[64]int16 {
	idx := (by*p.blockWidth + bx) * 64
	return (*[64]int16)(p.coeffs[idx : idx+64 : idx+64])
}

func (p *coeffPlane) mask(bx, by int) *uint64 {
	return &p.completion[by*p.blockWidth+bx]
}

// spectralMask returns a bitmask with bits [ss, se] set, used to track
// which frequencies a scan finalizes.
func spectralMask(ss, se uint8) uint64 {
	if se >= 63 {
		return ^uint64(0) << ss
	}
	lo := ^uint64(0) << ss
	hi := (uint64(1) << (se + 1)) - 1
	return lo & hi
}

const fullCompletion = ^uint64(0)

// scanCoordinator drives one DCT scan's MCU iteration: restart handling,
// per-component Huffman table selection, and routing each block to the
// baseline or progressive-refinement decoder.
type scanCoordinator struct {
	br              *bitReader
	frame           *FrameInfo
	scan            *ScanInfo
	dcTables        [4]*HuffmanTable
	acTables        [4]*HuffmanTable
	restartInterval int
	st              blockScanState
	mcusUntilReset  int
	expectedRST     uint8
}

// rowDispatch is invoked by decodeScan as soon as a component's block row
// has every coefficient this scan contributes: after each MCU row for
// interleaved scans, after each block row otherwise. The decoder uses it
// to stream completed rows of fully-decoded components to the IDCT worker
// while the scan is still running.
type rowDispatch func(compIdx, blockRow int)

// decodeScan runs a complete DCT (non-lossless) scan, writing decoded
// coefficients into planes (indexed by frame component index), and
// returns the marker terminating the scan's entropy-coded data.
func decodeScan(r Reader, frame *FrameInfo, scan *ScanInfo, dcTables, acTables [4]*HuffmanTable, restartInterval int, planes []coeffPlane, onRowComplete rowDispatch) (Marker, error) {
	sc := &scanCoordinator{
		br:              newBitReader(r),
		frame:           frame,
		scan:            scan,
		dcTables:        dcTables,
		acTables:        acTables,
		restartInterval: restartInterval,
		mcusUntilReset:  restartInterval,
	}
	if onRowComplete == nil {
		onRowComplete = func(int, int) {}
	}

	if scan.IsInterleaved() {
		if err := sc.decodeInterleaved(planes, onRowComplete); err != nil {
			return 0, err
		}
	} else {
		if err := sc.decodeNonInterleaved(planes, onRowComplete); err != nil {
			return 0, err
		}
	}

	return sc.br.Drain()
}

func (sc *scanCoordinator) decodeInterleaved(planes []coeffPlane, onRowComplete rowDispatch) error {
	mcuCols := int(sc.frame.MCUSize.Width)
	mcuRows := int(sc.frame.MCUSize.Height)

	for my := 0; my < mcuRows; my++ {
		for mx := 0; mx < mcuCols; mx++ {
			for ci, idx := range sc.scan.ComponentIndices {
				comp := sc.frame.Components[idx]
				plane := &planes[idx]
				for v := 0; v < int(comp.VSampling); v++ {
					for h := 0; h < int(comp.HSampling); h++ {
						bx := mx*int(comp.HSampling) + h
						by := my*int(comp.VSampling) + v
						if err := sc.decodeBlock(plane, idx, ci, bx, by); err != nil {
							return err
						}
					}
				}
			}
			isLast := my == mcuRows-1 && mx == mcuCols-1
			if err := sc.advanceMCU(isLast); err != nil {
				return err
			}
		}

		// One MCU row covers VSampling block rows of each component.
		for _, idx := range sc.scan.ComponentIndices {
			comp := sc.frame.Components[idx]
			for v := 0; v < int(comp.VSampling); v++ {
				onRowComplete(idx, my*int(comp.VSampling)+v)
			}
		}
	}
	return nil
}

func (sc *scanCoordinator) decodeNonInterleaved(planes []coeffPlane, onRowComplete rowDispatch) error {
	idx := sc.scan.ComponentIndices[0]
	comp := sc.frame.Components[idx]
	plane := &planes[idx]

	// Non-interleaved scans iterate only the blocks that cover the
	// component's actual pixel extent, not the full MCU-padded grid.
	usedCols := ceilDiv(int(comp.Size.Width), 8)
	usedRows := ceilDiv(int(comp.Size.Height), 8)

	for by := 0; by < usedRows; by++ {
		for bx := 0; bx < usedCols; bx++ {
			if err := sc.decodeBlock(plane, idx, 0, bx, by); err != nil {
				return err
			}
			isLast := by == usedRows-1 && bx == usedCols-1
			if err := sc.advanceMCU(isLast); err != nil {
				return err
			}
		}
		onRowComplete(idx, by)
	}
	return nil
}

func (sc *scanCoordinator) decodeBlock(plane *coeffPlane, compIdx, scanPos, bx, by int) error {
	coef := plane.block(bx, by)
	dc := sc.dcTables[sc.scan.DCTableIndices[scanPos]]
	ac := sc.acTables[sc.scan.ACTableIndices[scanPos]]
	ss, se := sc.scan.SpectralSelectionStart, sc.scan.SpectralSelectionEnd
	ah, al := sc.scan.SuccessiveApproxHigh, sc.scan.SuccessiveApproxLow

	if ah == 0 {
		if ss == 0 {
			if dc == nil {
				return FormatError("scan references an undefined DC table")
			}
			if err := decodeDCFirst(sc.br, dc, &sc.st, compIdx, al, coef); err != nil {
				return err
			}
		}
		if se == 0 {
			return nil
		}
		if ac == nil {
			return FormatError("scan references an undefined AC table")
		}
		acStart := ss
		if acStart == 0 {
			acStart = 1
		}
		return decodeACFirst(sc.br, ac, &sc.st, acStart, se, al, coef)
	}

	// Refinement pass (ah > 0).
	if ss == 0 {
		return decodeDCRefine(sc.br, al, coef)
	}
	if ac == nil {
		return FormatError("scan references an undefined AC table")
	}
	return decodeACRefine(sc.br, ac, &sc.st, ss, se, al, coef)
}

// advanceMCU accounts one MCU against the restart interval, resetting the
// DC predictors, EOB run, and Huffman bit buffer at every expected RST
// marker. A valid stream never emits a restart marker
// after the scan's last MCU, so isLastMCU suppresses the expectation then.
func (sc *scanCoordinator) advanceMCU(isLastMCU bool) error {
	if sc.restartInterval == 0 {
		return nil
	}
	sc.mcusUntilReset--
	if sc.mcusUntilReset > 0 {
		return nil
	}
	if isLastMCU {
		return nil
	}

	m, err := sc.br.ExpectMarker()
	if err != nil {
		return err
	}
	if !m.IsRST() || m.RSTNumber() != sc.expectedRST {
		return FormatError("unexpected or out-of-sequence restart marker")
	}
	sc.br.Reset()
	sc.expectedRST = (sc.expectedRST + 1) % 8
	sc.mcusUntilReset = sc.restartInterval
	sc.st = blockScanState{}
	return nil
}
