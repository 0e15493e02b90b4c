package worker

// Immediate runs every block decode synchronously within AppendRow,
// avoiding goroutine start overhead for small images (spec: width*height
// <= 128*128).
type Immediate struct {
	specs   map[int]ComponentSpec
	results map[int][]byte
}

// NewImmediate returns a ready-to-use synchronous Worker.
func NewImmediate() *Immediate {
	return &Immediate{
		specs:   make(map[int]ComponentSpec),
		results: make(map[int][]byte),
	}
}

func (w *Immediate) Start(component int, spec ComponentSpec) {
	w.specs[component] = spec
	w.results[component] = make([]byte, spec.Size())
}

func (w *Immediate) AppendRow(component, blockRow int, blocks []*[64]int16) {
	spec := w.specs[component]
	out := w.results[component]
	stride := spec.Stride()
	rowOffset := blockRow * spec.DCTScale * stride

	for bx, block := range blocks {
		if block == nil {
			continue
		}
		blockOffset := rowOffset + bx*spec.DCTScale
		spec.Decode(block, out[blockOffset:], stride)
	}
}

func (w *Immediate) AppendRows(component int, rows [][]*[64]int16) {
	appendRowsDefault(w, component, rows)
}

func (w *Immediate) GetResult(component int) []byte {
	return w.results[component]
}
