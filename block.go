package jpeg

// blockScanState is the per-scan mutable state block decoders read and
// update: one DC predictor per component and a shared EOB run (progressive
// AC scans only span one component, so a single counter suffices).
type blockScanState struct {
	dcPredictors [4]int32
	eobRun       uint32
}

// decodeDCFirst decodes a DC coefficient on a first (Ah=0) pass: baseline,
// sequential, or progressive DC-first scans all share this rule. coef must
// be zeroed by the caller.
func decodeDCFirst(br *bitReader, dcTable *HuffmanTable, st *blockScanState, compIdx int, al uint8, coef *[64]int16) error {
	category, err := br.Decode(dcTable)
	if err != nil {
		return err
	}
	if category > 11 {
		return FormatError("DC category exceeds 11")
	}

	var diff int32
	if category > 0 {
		diff, err = br.ReceiveExtend(category)
		if err != nil {
			return err
		}
	}

	st.dcPredictors[compIdx] += diff
	coef[0] = int16(st.dcPredictors[compIdx] << al)
	return nil
}

// decodeDCRefine applies a single successive-approximation refinement bit
// to an already-decoded DC coefficient.
func decodeDCRefine(br *bitReader, al uint8, coef *[64]int16) error {
	bit, err := br.ReceiveBits(1)
	if err != nil {
		return err
	}
	if bit != 0 {
		coef[0] |= int16(1) << al
	}
	return nil
}

// decodeACFirst decodes an AC spectral band on a first (Ah=0) pass,
// spanning zigzag positions [ss, se]. It handles EOB runs, the fast-AC
// accelerator, ZRL (16-zero skip), and the explicit run/size fallback.
func decodeACFirst(br *bitReader, acTable *HuffmanTable, st *blockScanState, ss, se, al uint8, coef *[64]int16) error {
	if st.eobRun > 0 {
		st.eobRun--
		return nil
	}

	k := int(ss)
	if k < 1 {
		k = 1
	}
	for k <= int(se) {
		run, value, ok, err := br.DecodeFastAC(acTable)
		if err != nil {
			return err
		}
		if ok {
			k += int(run)
			if k <= int(se) {
				coef[unzigzag[k]] = value << al
				k++
			}
			continue
		}

		rs, err := br.Decode(acTable)
		if err != nil {
			return err
		}
		r, s := rs>>4, rs&0x0f

		if s == 0 {
			if r == 15 {
				k += 16
				continue
			}
			extra, err := br.ReceiveBits(r)
			if err != nil {
				return err
			}
			st.eobRun = (uint32(1)<<r - 1) + extra
			return nil
		}

		k += int(r)
		if k > int(se) {
			return nil
		}
		v, err := br.ReceiveExtend(s)
		if err != nil {
			return err
		}
		coef[unzigzag[k]] = int16(v << al)
		k++
	}
	return nil
}

// decodeACRefine applies a successive-approximation refinement pass over
// [ss, se], interleaving zero-run consumption with correction bits for
// coefficients earlier passes already made nonzero (Annex G.1.2.3).
func decodeACRefine(br *bitReader, acTable *HuffmanTable, st *blockScanState, ss, se, al uint8, coef *[64]int16) error {
	bit := int16(1) << al
	k := int(ss)

	if st.eobRun > 0 {
		st.eobRun--
		_, err := refineNonZeroesRun(br, &k, int(se), 64, bit, coef)
		return err
	}

	for k <= int(se) {
		rs, err := br.Decode(acTable)
		if err != nil {
			return err
		}
		r, s := int(rs>>4), rs&0x0f

		switch {
		case s == 0 && r == 15:
			// ZRL: a 16-zero run with no new coefficient.
			newPos, err := refineNonZeroesRun(br, &k, int(se), 15, bit, coef)
			if err != nil {
				return err
			}
			k = newPos + 1

		case s == 0:
			extra, err := br.ReceiveBits(uint8(r))
			if err != nil {
				return err
			}
			st.eobRun = (uint32(1)<<uint(r) - 1) + extra
			if _, err := refineNonZeroesRun(br, &k, int(se), 64, bit, coef); err != nil {
				return err
			}
			return nil

		case s == 1:
			sbit, err := br.ReceiveBits(1)
			if err != nil {
				return err
			}
			var value int16
			if sbit != 0 {
				value = bit
			} else {
				value = -bit
			}
			newPos, err := refineNonZeroesRun(br, &k, int(se), r, bit, coef)
			if err != nil {
				return err
			}
			if newPos <= int(se) {
				coef[unzigzag[newPos]] = value
			}
			k = newPos + 1

		default:
			return FormatError("invalid AC refinement run/size byte")
		}
	}
	return nil
}

// refineNonZeroesRun walks zigzag positions starting at *k, refining every
// already-nonzero coefficient encountered (adding ±bit per its next
// refinement bit) and consuming zrl zero-runs, stopping either when zrl
// is exhausted (returning the position for a new coefficient) or se is
// reached.
func refineNonZeroesRun(br *bitReader, k *int, se, zrl int, bit int16, coef *[64]int16) (int, error) {
	for *k <= se {
		pos := unzigzag[*k]
		if coef[pos] != 0 {
			refBit, err := br.ReceiveBits(1)
			if err != nil {
				return 0, err
			}
			if refBit != 0 && coef[pos]&bit == 0 {
				if coef[pos] > 0 {
					if err := addChecked(&coef[pos], bit); err != nil {
						return 0, err
					}
				} else {
					if err := addChecked(&coef[pos], -bit); err != nil {
						return 0, err
					}
				}
			}
			*k++
			continue
		}
		if zrl == 0 {
			return *k, nil
		}
		zrl--
		*k++
	}
	return *k, nil
}

// addChecked adds delta to *v, reporting a format error on signed 16-bit
// overflow: a refinement bit may only nudge a coefficient, never wrap it.
func addChecked(v *int16, delta int16) error {
	sum := int32(*v) + int32(delta)
	if sum < -32768 || sum > 32767 {
		return FormatError("AC coefficient refinement overflow")
	}
	*v = int16(sum)
	return nil
}
