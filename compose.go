package jpeg

import (
	"sync"

	"github.com/kdriscoll-eng/jpegcodec/internal/worker"
)

// composeFromSamples assembles one interleaved output raster from a DCT
// frame's per-component sample planes (as produced by the worker pool's
// IDCT stage, each at its own subsampled resolution and current DCTScale),
// upsampling every subsampled component to the frame's maximum sampling
// resolution and color-converting each row in turn.
//
// For images above the same size threshold that selects the parallel
// worker backend, row ranges are composed concurrently: every row writes
// a disjoint slice of the output raster, so the goroutines share nothing
// but the read-only sample planes.
func (d *Decoder) composeFromSamples(samplePlanes [][]byte) ([]byte, error) {
	space, err := chooseColorSpace(d.frame.Components, &d.appData)
	if err != nil {
		return nil, err
	}

	scale := 8
	if len(d.frame.Components) > 0 {
		scale = d.frame.Components[0].DCTScale
	}

	outWidth := ceilDiv(int(d.frame.ImageSize.Width)*scale, 8)
	outHeight := ceilDiv(int(d.frame.ImageSize.Height)*scale, 8)

	maxH, maxV := uint8(0), uint8(0)
	for _, c := range d.frame.Components {
		if c.HSampling > maxH {
			maxH = c.HSampling
		}
		if c.VSampling > maxV {
			maxV = c.VSampling
		}
	}

	upsamplers := make([]*upsampler, len(d.frame.Components))
	srcWidths := make([]int, len(d.frame.Components))
	for i, c := range d.frame.Components {
		srcW := ceilDiv(int(c.Size.Width)*scale, 8)
		srcH := ceilDiv(int(c.Size.Height)*scale, 8)
		srcWidths[i] = srcW
		u, err := newUpsampler(maxH, maxV, c.HSampling, c.VSampling, srcW, srcH)
		if err != nil {
			return nil, err
		}
		upsamplers[i] = u
	}

	bpp := bytesPerPixel(space)
	out := make([]byte, outWidth*outHeight*bpp)

	renderRows := func(yFrom, yTo int) {
		rowPlanes := make([][]byte, len(d.frame.Components))
		for i := range rowPlanes {
			rowPlanes[i] = make([]byte, outWidth)
		}
		for y := yFrom; y < yTo; y++ {
			for i, c := range d.frame.Components {
				u := upsamplers[i]
				srcRow := u.sourceRow(y)
				planeStride := int(c.BlockSize.Width) / 8 * scale
				rowStart := srcRow * planeStride
				rowEnd := rowStart + srcWidths[i]
				if rowEnd > len(samplePlanes[i]) {
					rowEnd = len(samplePlanes[i])
				}
				var srcRowBytes []byte
				if rowStart < rowEnd {
					srcRowBytes = samplePlanes[i][rowStart:rowEnd]
				}
				u.expandRow(srcRowBytes, rowPlanes[i], outWidth)
			}
			colorConvertLine(space, rowPlanes, outWidth, out[y*outWidth*bpp:(y+1)*outWidth*bpp])
		}
	}

	area := int(d.frame.ImageSize.Width) * int(d.frame.ImageSize.Height)
	concurrency := d.workerConcurrency
	if concurrency <= 0 {
		concurrency = worker.DefaultConcurrency()
	}
	if area <= 128*128 || concurrency == 1 || outHeight < concurrency {
		renderRows(0, outHeight)
	} else {
		var wg sync.WaitGroup
		rowsPerTask := ceilDiv(outHeight, concurrency)
		for y := 0; y < outHeight; y += rowsPerTask {
			end := y + rowsPerTask
			if end > outHeight {
				end = outHeight
			}
			wg.Add(1)
			go func(from, to int) {
				defer wg.Done()
				renderRows(from, to)
			}(y, end)
		}
		wg.Wait()
	}

	d.layout = OutputLayout{Width: outWidth, Height: outHeight, Channels: bpp, Precision: 8}
	return out, nil
}
