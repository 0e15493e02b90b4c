package worker

import "sync"

// Pool fans block decode work out across a bounded set of goroutines. Each
// AppendRow call is scheduled as an independent task; tasks write into
// disjoint slices of the component's result buffer (one block-row's pixel
// rows never overlap another's), so no locking guards the writes
// themselves, only the bookkeeping around starting/draining tasks.
type Pool struct {
	maxConcurrency int

	mu      sync.Mutex
	specs   map[int]ComponentSpec
	results map[int][]byte
	wg      map[int]*sync.WaitGroup

	sem chan struct{}
}

// NewPool returns a Worker that runs up to maxConcurrency block-row tasks
// at a time. A value <= 0 defaults to runtime.GOMAXPROCS(0).
func NewPool(maxConcurrency int) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency()
	}
	return &Pool{
		maxConcurrency: maxConcurrency,
		specs:          make(map[int]ComponentSpec),
		results:        make(map[int][]byte),
		wg:             make(map[int]*sync.WaitGroup),
		sem:            make(chan struct{}, maxConcurrency),
	}
}

func (p *Pool) Start(component int, spec ComponentSpec) {
	p.mu.Lock()
	p.specs[component] = spec
	p.results[component] = make([]byte, spec.Size())
	p.wg[component] = &sync.WaitGroup{}
	p.mu.Unlock()
}

func (p *Pool) AppendRow(component, blockRow int, blocks []*[64]int16) {
	p.mu.Lock()
	spec := p.specs[component]
	out := p.results[component]
	wg := p.wg[component]
	p.mu.Unlock()

	wg.Add(1)
	p.sem <- struct{}{}
	go func() {
		defer wg.Done()
		defer func() { <-p.sem }()

		stride := spec.Stride()
		rowOffset := blockRow * spec.DCTScale * stride
		for bx, block := range blocks {
			if block == nil {
				continue
			}
			blockOffset := rowOffset + bx*spec.DCTScale
			spec.Decode(block, out[blockOffset:], stride)
		}
	}()
}

func (p *Pool) AppendRows(component int, rows [][]*[64]int16) {
	appendRowsDefault(p, component, rows)
}

func (p *Pool) GetResult(component int) []byte {
	p.mu.Lock()
	wg := p.wg[component]
	out := p.results[component]
	p.mu.Unlock()

	wg.Wait()
	return out
}
