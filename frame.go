package jpeg

// Dimensions is a width/height pair used for the logical image size, for
// component sizes in samples and for the frame's size counted in MCUs.
type Dimensions struct {
	Width, Height uint16
}

// CodingProcess classifies how a frame's coefficients are coded.
type CodingProcess int

const (
	DctSequential CodingProcess = iota
	DctProgressive
	Lossless
)

func (c CodingProcess) String() string {
	switch c {
	case DctSequential:
		return "sequential DCT"
	case DctProgressive:
		return "progressive DCT"
	case Lossless:
		return "lossless"
	default:
		return "unknown coding process"
	}
}

// EntropyCoding classifies a frame's entropy coder. Only Huffman is
// supported; Arithmetic frames are rejected by parseSOF.
type EntropyCoding int

const (
	Huffman EntropyCoding = iota
	Arithmetic
)

func (e EntropyCoding) String() string {
	if e == Arithmetic {
		return "arithmetic"
	}
	return "Huffman"
}

// Component describes one color/luma/chroma plane of a frame, as declared
// by its SOFn entry and elaborated with derived sizes.
type Component struct {
	Identifier byte

	HSampling uint8
	VSampling uint8

	QuantIndex int

	// Size is the component's pixel size at full (1x) scale: ceil(image
	// size * sampling / max sampling) per axis.
	Size Dimensions
	// BlockSize is the sample area the frame's MCUs cover for this
	// component: MCU count times the sampling factor times the block edge
	// (8, or 1 for lossless). It can exceed Size rounded up to whole blocks.
	BlockSize Dimensions

	// DCTScale is the scaled IDCT's output sub-block edge length,
	// one of {1, 2, 4, 8}. It defaults to 8 and is only changed by
	// Decoder.Scale.
	DCTScale int
}

// BlocksPerMCU returns the number of 8x8 blocks this component contributes
// to every MCU.
func (c Component) BlocksPerMCU() int {
	return int(c.HSampling) * int(c.VSampling)
}

// PixelSize returns the component's pixel dimensions at its current
// DCTScale: BlockSize (full-scale samples, a multiple of 8) divided into
// 8x8 blocks and scaled back up by the reduced block edge length.
func (c Component) PixelSize() Dimensions {
	return Dimensions{
		Width:  uint16(int(c.BlockSize.Width) / 8 * c.DCTScale),
		Height: uint16(int(c.BlockSize.Height) / 8 * c.DCTScale),
	}
}

// FrameInfo is the decoded content of a SOFn segment plus derived fields.
type FrameInfo struct {
	IsBaseline     bool
	IsDifferential bool
	CodingProcess  CodingProcess
	EntropyCoding  EntropyCoding
	Precision      uint8

	ImageSize  Dimensions
	MCUSize    Dimensions
	Components []Component
}

// ComponentIndex returns the index into Components whose Identifier
// matches id, or -1 if none matches.
func (f *FrameInfo) ComponentIndex(id byte) int {
	for i, c := range f.Components {
		if c.Identifier == id {
			return i
		}
	}
	return -1
}

// ScanInfo is the decoded content of a SOS segment.
type ScanInfo struct {
	ComponentIndices []int
	DCTableIndices   []int
	ACTableIndices   []int

	// SpectralSelectionStart/End are Ss/Se for DCT scans.
	SpectralSelectionStart uint8
	SpectralSelectionEnd   uint8

	// SuccessiveApproxHigh/Low are Ah/Al for DCT scans.
	SuccessiveApproxHigh uint8
	SuccessiveApproxLow  uint8

	// Predictor and PointTransform are only meaningful for lossless
	// frames (CodingProcess == Lossless); Predictor selects one of the
	// seven T.81 Annex H predictors (0..7), PointTransform is Pt.
	Predictor      uint8
	PointTransform uint8
}

// IsInterleaved reports whether the scan covers more than one component,
// in which case MCUs interleave blocks from every scan component.
func (s *ScanInfo) IsInterleaved() bool {
	return len(s.ComponentIndices) > 1
}

// unzigzag maps a zigzag-order index (0..63, the order coefficients are
// entropy-coded in) to its natural row-major position within an 8x8 block.
var unzigzag = [64]uint8{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}
