package jpeg

import (
	"encoding/binary"

	"github.com/kdriscoll-eng/jpegcodec/internal/worker"
)

// Decoder decodes a single JPEG bitstream read from a Reader. It is not
// safe for concurrent use, and is not reusable after a fatal error or
// after Decode returns.
type Decoder struct {
	r Reader

	frame *FrameInfo

	quantTables [4]*QuantizationTable
	dcTables    [4]*HuffmanTable
	acTables    [4]*HuffmanTable

	restartInterval int
	appData         AppData
	metadata        Metadata

	mjpegFallback bool // APP0 AVI1 seen: missing Huffman tables use MJPEG defaults
	sofSeen       bool
	firstScanDone bool

	coeffPlanes    []coeffPlane
	losslessPlanes []losslessPlane

	requestedSize  Dimensions
	maxDecodedSize int64 // 0 means unbounded

	workerConcurrency int // 0 selects the default pool size

	layout OutputLayout
}

// OutputLayout describes how to interpret the byte slice Decode returns:
// an interleaved raster of Width*Height pixels, Channels samples each,
// Precision bits per sample (8, or 16 for a lossless frame with precision
// greater than 8). Valid only after Decode returns successfully.
type OutputLayout struct {
	Width, Height int
	Channels      int
	Precision     uint8
}

// Layout returns the geometry of the buffer most recently produced by
// Decode.
func (d *Decoder) Layout() OutputLayout { return d.layout }

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithMaxDecodedSize rejects frames whose components*width*height sample
// count would exceed limit, before any output buffer is allocated. A
// limit of 0 (the default) leaves the decoder unbounded.
func WithMaxDecodedSize(limit int64) Option {
	return func(d *Decoder) { d.maxDecodedSize = limit }
}

// WithDeinterleaveWorkers sets the goroutine concurrency used by the
// parallel worker backend for images large enough to use it. A value <= 0
// leaves the default (GOMAXPROCS) in place.
func WithDeinterleaveWorkers(n int) Option {
	return func(d *Decoder) { d.workerConcurrency = n }
}

// NewDecoder constructs a Decoder reading from r.
func NewDecoder(r Reader, opts ...Option) *Decoder {
	d := &Decoder{r: r, requestedSize: Dimensions{Width: 0xFFFF, Height: 0xFFFF}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ReadInfo advances the stream past the SOI marker, any leading
// application/table segments, and the first SOFn, then returns the parsed
// frame. It stops immediately after the SOF segment; Decode resumes from
// there. Subsequent calls return the already-parsed frame without reading.
func (d *Decoder) ReadInfo() (*FrameInfo, error) {
	if d.sofSeen {
		return d.frame, nil
	}

	if err := d.readSOI(); err != nil {
		return nil, err
	}

	for {
		m, err := nextMarker(d.r)
		if err != nil {
			return nil, err
		}

		if m.IsSOF() {
			frame, err := parseSOF(d.r, m)
			if err != nil {
				return nil, forwardError("SOF", err)
			}
			d.frame = frame
			d.sofSeen = true
			// A Scale request made before the header was parsed takes
			// effect now; the default request is larger than any JPEG
			// so this leaves DCTScale at 8 otherwise.
			scale := chooseIDCTSize(frame.ImageSize, d.requestedSize)
			for i := range frame.Components {
				frame.Components[i].DCTScale = scale
			}
			return frame, nil
		}

		if m == EOI {
			return nil, FormatError("no frame found")
		}

		if err := d.handleTableMarker(m); err != nil {
			return nil, err
		}
	}
}

// readSOI requires the stream to start with exactly FF D8; nothing may
// precede the SOI marker.
func (d *Decoder) readSOI() error {
	b0, err := d.r.ReadU8()
	if err != nil {
		return err
	}
	b1, err := d.r.ReadU8()
	if err != nil {
		return err
	}
	if b0 != 0xFF || Marker(b1) != SOI {
		return FormatError("stream does not start with SOI")
	}
	return nil
}

// nextMarker scans forward for the next marker, tolerating any stray
// non-FF bytes and runs of 0xFF fill bytes preceding it, the same leniency
// libjpeg applies between segments.
func nextMarker(r Reader) (Marker, error) {
	for {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			continue
		}
		for {
			b2, err := r.ReadU8()
			if err != nil {
				return 0, err
			}
			if b2 == 0xFF {
				continue
			}
			if b2 == 0x00 {
				break // stray stuffing outside entropy data; keep scanning
			}
			return Marker(b2), nil
		}
	}
}

// handleTableMarker processes a marker that only updates decoder state
// (quantization/Huffman tables, restart interval, metadata, comments) and
// carries no frame/scan semantics of its own.
func (d *Decoder) handleTableMarker(m Marker) error {
	switch {
	case m == DQT:
		return forwardError("DQT", parseDQT(d.r, &d.quantTables))
	case m == DHT:
		return forwardError("DHT", parseDHT(d.r, &d.dcTables, &d.acTables))
	case m == DRI:
		interval, err := parseDRI(d.r)
		if err != nil {
			return forwardError("DRI", err)
		}
		d.restartInterval = interval
		return nil
	case m == COM:
		com, err := parseCOM(d.r)
		if err != nil {
			return forwardError("COM", err)
		}
		d.metadata.Comments = append(d.metadata.Comments, com)
		return nil
	case m.IsAPPn():
		if err := parseAPP(d.r, m, &d.appData, &d.metadata); err != nil {
			return forwardError("APPn", err)
		}
		if d.appData.IsAVI1 {
			d.mjpegFallback = true
		}
		return nil
	case m == DAC:
		return UnsupportedError("arithmetic coding conditioning tables")
	case m == DHP || m == EXP:
		return UnsupportedError("hierarchical mode")
	case m.HasLength():
		return skipSegment(d.r, m)
	default:
		return FormatError("unexpected marker outside a scan: " + m.String())
	}
}

// Scale requests the decoder produce output at approximately requested
// size, choosing the smallest DCT scale per component that meets or
// exceeds it on some axis. May be called before or after ReadInfo (a
// request made before the header is parsed is applied by ReadInfo), but
// must be called before Decode.
func (d *Decoder) Scale(width, height int) {
	d.requestedSize = Dimensions{Width: uint16(width), Height: uint16(height)}
	if d.frame == nil {
		return
	}
	scale := chooseIDCTSize(d.frame.ImageSize, d.requestedSize)
	for i := range d.frame.Components {
		d.frame.Components[i].DCTScale = scale
	}
}

// Decode runs every remaining scan to completion and returns the
// interleaved output raster in the format implied by the frame's
// component count and precision.
func (d *Decoder) Decode() ([]byte, error) {
	if !d.sofSeen {
		if _, err := d.ReadInfo(); err != nil {
			return nil, err
		}
	}

	if err := d.checkMemoryBound(); err != nil {
		return nil, err
	}

	if d.frame.CodingProcess == Lossless {
		return d.decodeLosslessFrame()
	}
	return d.decodeDCTFrame()
}

func (d *Decoder) checkMemoryBound() error {
	if d.maxDecodedSize == 0 {
		return nil
	}
	estimate := int64(len(d.frame.Components)) * int64(d.frame.ImageSize.Width) * int64(d.frame.ImageSize.Height)
	if estimate > d.maxDecodedSize {
		return FormatError("decoded image exceeds the configured memory bound")
	}
	return nil
}

func (d *Decoder) decodeDCTFrame() ([]byte, error) {
	if d.coeffPlanes == nil {
		d.coeffPlanes = make([]coeffPlane, len(d.frame.Components))
		for i, c := range d.frame.Components {
			d.coeffPlanes[i] = newCoeffPlane(int(c.BlockSize.Width)/8, int(c.BlockSize.Height)/8)
		}
	}

	pool := d.newWorkerPool()
	dispatched := make([]bool, len(d.frame.Components))
	started := make([]bool, len(d.frame.Components))

	marker, err := nextMarker(d.r)
	if err != nil {
		return nil, err
	}

	for marker != EOI {
		switch {
		case marker == SOS:
			if err := d.ensureMjpegDefaults(); err != nil {
				return nil, err
			}
			scan, err := parseSOS(d.r, d.frame)
			if err != nil {
				return nil, forwardError("SOS", err)
			}
			if err := d.checkTablesPresent(scan); err != nil {
				return nil, err
			}

			// Components this scan finalizes stream their block rows to
			// the worker as the rows complete, overlapping entropy
			// decoding with dequantize+IDCT.
			finishedNow := d.markCompletion(scan)
			for idx := range finishedNow {
				if dispatched[idx] {
					delete(finishedNow, idx)
					continue
				}
				d.startComponent(pool, idx)
				started[idx] = true
			}

			trailing, err := decodeScan(d.r, d.frame, scan, d.dcTables, d.acTables, d.restartInterval, d.coeffPlanes,
				func(compIdx, blockRow int) {
					if finishedNow[compIdx] {
						d.dispatchRow(pool, compIdx, blockRow)
					}
				})
			if err != nil {
				// Outstanding IDCT tasks are drained before the scan's
				// error propagates: they operate on owned row
				// copies, so waiting for them is safe and keeps the
				// pool's goroutines from outliving the decode call.
				for i, s := range started {
					if s {
						pool.GetResult(i)
					}
				}
				return nil, forwardError("scan", err)
			}
			d.firstScanDone = true

			for idx := range finishedNow {
				dispatched[idx] = true
			}

			marker = trailing
			continue

		case marker == DNL:
			if !d.firstScanDone {
				return nil, FormatError("DNL before any scan")
			}
			return nil, UnsupportedError("DNL (dynamically redefined image height)")

		case marker.IsSOF():
			return nil, UnsupportedError("second frame header (hierarchical mode)")

		case marker.IsRST():
			return nil, FormatError("restart marker outside a scan")

		default:
			if err := d.handleTableMarker(marker); err != nil {
				return nil, err
			}
			next, err := nextMarker(d.r)
			if err != nil {
				return nil, err
			}
			marker = next
			continue
		}
	}

	// Progressive components whose refinements never completed still get
	// dequantized and transformed from whatever coefficients the scans
	// delivered.
	for i := range d.frame.Components {
		if !dispatched[i] {
			if !started[i] {
				d.startComponent(pool, i)
				started[i] = true
			}
			for by := 0; by < d.coeffPlanes[i].blockHeight; by++ {
				d.dispatchRow(pool, i, by)
			}
		}
	}

	return d.compose(pool)
}

// markCompletion records the spectral range a scan finalizes in each scan
// component's completion mask and reports which components just became
// fully complete. A frequency is final only once its lowest bit plane has
// been coded (Al = 0): that covers both single-pass scans and the last
// refinement of a successive-approximation chain. Marking on Ah = 0
// instead would hand components to the IDCT stage with refinements still
// pending.
func (d *Decoder) markCompletion(scan *ScanInfo) map[int]bool {
	finished := make(map[int]bool, len(scan.ComponentIndices))
	if scan.SuccessiveApproxLow != 0 {
		return finished
	}
	mask := spectralMask(scan.SpectralSelectionStart, scan.SpectralSelectionEnd)
	for _, idx := range scan.ComponentIndices {
		plane := &d.coeffPlanes[idx]
		allDone := true
		for i := range plane.completion {
			plane.completion[i] |= mask
			if plane.completion[i] != fullCompletion {
				allDone = false
			}
		}
		if allDone {
			finished[idx] = true
		}
	}
	return finished
}

// ensureMjpegDefaults installs the standard JPEG reference Huffman tables
// into every DC/AC slot 0 and 1 that no DHT has defined yet, whichever
// slots the next scan uses, when the stream declared itself AVI1/MJPEG.
func (d *Decoder) ensureMjpegDefaults() error {
	if !d.mjpegFallback {
		return nil
	}
	return installMJPEGDefaults(&d.dcTables, &d.acTables)
}

func (d *Decoder) checkTablesPresent(scan *ScanInfo) error {
	for i, idx := range scan.ComponentIndices {
		c := d.frame.Components[idx]
		if d.quantTables[c.QuantIndex] == nil {
			return FormatError("scan references an undefined quantization table")
		}
		if d.dcTables[scan.DCTableIndices[i]] == nil {
			return FormatError("scan references an undefined DC Huffman table")
		}
		if scan.SpectralSelectionEnd > 0 && d.acTables[scan.ACTableIndices[i]] == nil {
			return FormatError("scan references an undefined AC Huffman table")
		}
	}
	return nil
}

// startComponent registers a component's geometry and dequantize+IDCT
// kernel with the worker. The quantization table handle is captured here,
// when checkTablesPresent has already guaranteed it exists, so no task
// ever reads decoder state that a later DQT segment could replace.
func (d *Decoder) startComponent(pool worker.Worker, idx int) {
	c := d.frame.Components[idx]
	quant := d.quantTables[c.QuantIndex]
	scale := c.DCTScale
	pool.Start(idx, worker.ComponentSpec{
		BlockWidth:  int(c.BlockSize.Width) / 8,
		BlockHeight: int(c.BlockSize.Height) / 8,
		DCTScale:    scale,
		Decode: func(coeffs *[64]int16, out []byte, stride int) {
			dequantizeAndIDCT(coeffs, quant, scale, out, stride)
		},
	})
}

// dispatchRow hands one block row of a component's coefficient plane to
// the worker. The blocks are copied, so worker tasks own their
// coefficients outright and a malformed stream that keeps writing to the
// plane in a later scan cannot race the IDCT stage.
func (d *Decoder) dispatchRow(pool worker.Worker, idx, blockRow int) {
	plane := &d.coeffPlanes[idx]
	row := make([]*[64]int16, plane.blockWidth)
	for bx := 0; bx < plane.blockWidth; bx++ {
		block := *plane.block(bx, blockRow)
		row[bx] = &block
	}
	pool.AppendRow(idx, blockRow, row)
}

func (d *Decoder) newWorkerPool() worker.Worker {
	area := int(d.frame.ImageSize.Width) * int(d.frame.ImageSize.Height)
	if area <= 128*128 {
		return worker.NewImmediate()
	}
	return worker.NewPool(d.workerConcurrency)
}

func (d *Decoder) compose(pool worker.Worker) ([]byte, error) {
	samplePlanes := make([][]byte, len(d.frame.Components))
	for i := range d.frame.Components {
		samplePlanes[i] = pool.GetResult(i)
	}
	return d.composeFromSamples(samplePlanes)
}

func (d *Decoder) decodeLosslessFrame() ([]byte, error) {
	marker, err := nextMarker(d.r)
	if err != nil {
		return nil, err
	}
	if marker != SOS {
		if err := d.handleTableMarker(marker); err != nil {
			return nil, err
		}
		return d.decodeLosslessFrame()
	}

	scan, err := parseSOS(d.r, d.frame)
	if err != nil {
		return nil, forwardError("SOS", err)
	}
	if len(scan.ComponentIndices) != len(d.frame.Components) {
		return nil, UnsupportedError("lossless frame split across multiple scans")
	}
	for i := range scan.ComponentIndices {
		if d.dcTables[scan.DCTableIndices[i]] == nil {
			return nil, FormatError("lossless scan references an undefined DC table")
		}
	}

	planes, trailing, err := decodeLossless(d.r, d.frame, scan, d.dcTables, d.restartInterval)
	if err != nil {
		return nil, forwardError("lossless scan", err)
	}
	d.losslessPlanes = planes

	if trailing != EOI {
		return nil, FormatError("lossless frame must end at EOI after its single scan")
	}

	return d.packLossless(planes)
}

func (d *Decoder) packLossless(planes []losslessPlane) ([]byte, error) {
	width := int(d.frame.ImageSize.Width)
	height := int(d.frame.ImageSize.Height)
	n := len(d.frame.Components)

	precision := uint8(8)
	if d.frame.Precision > 8 {
		precision = 16
	}
	d.layout = OutputLayout{Width: width, Height: height, Channels: n, Precision: precision}

	if d.frame.Precision <= 8 {
		out := make([]byte, width*height*n)
		for ci := range d.frame.Components {
			plane := planes[ci]
			for y := 0; y < height; y++ {
				for x := 0; x < width; x++ {
					out[(y*width+x)*n+ci] = byte(plane.at(x, y))
				}
			}
		}
		return out, nil
	}

	out := make([]byte, width*height*n*2)
	for ci := range d.frame.Components {
		plane := planes[ci]
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				idx := ((y*width+x)*n + ci) * 2
				binary.NativeEndian.PutUint16(out[idx:], plane.at(x, y))
			}
		}
	}
	return out, nil
}

// Metadata returns the opaque application-segment payloads collected so
// far (valid after ReadInfo; Exif/XMP/ICC/comment slices may still grow
// as later segments are parsed during Decode).
func (d *Decoder) Metadata() *Metadata { return &d.metadata }

// FrameInfo returns the parsed frame header, or nil before ReadInfo.
func (d *Decoder) FrameInfo() *FrameInfo { return d.frame }
