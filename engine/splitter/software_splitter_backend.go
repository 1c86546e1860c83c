package splitter

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
)

// groupsPerTask is the number of LocalSizeX wide groups one worker task processes.
const groupsPerTask = 32

type softwareSplitterBackend struct {
	pool   worker.DynamicWorkerPool
	points pointcloud.Data

	elements buffer.HostBuffer
	sparse   buffer.HostBuffer

	// cache holds one RenderModel per point for CachingCache and CachingPrecompute.
	cache []uint32
	// marks, local and groupSums are the prefix sum scratch.
	marks     []uint32
	local     []uint32
	groupSums [][3]uint32

	counts  [3]uint32
	cursors [3]uint32
	offsets [3]uint32
}

var _ splitterBackend = &softwareSplitterBackend{}

func newSoftwareSplitterBackend(points pointcloud.Data, pool worker.DynamicWorkerPool) *softwareSplitterBackend {
	return &softwareSplitterBackend{
		pool:     pool,
		points:   points,
		elements: buffer.NewHostBuffer("Splitter Elements", buffer.WithUsage(buffer.UsageStorage|buffer.UsageIndex)),
	}
}

func (b *softwareSplitterBackend) Elements() buffer.Buffer {
	return b.elements
}

func (b *softwareSplitterBackend) SparseElements() buffer.Buffer {
	if b.sparse == nil {
		return nil
	}
	return b.sparse
}

func (b *softwareSplitterBackend) Release() {
	b.elements.Release()
	if b.sparse != nil {
		b.sparse.Release()
	}
	b.cache, b.marks, b.local, b.groupSums = nil, nil, nil, nil
}

func (b *softwareSplitterBackend) Run(ctx context.Context, job splitterJob) (splitterResult, error) {
	records, err := pointcloud.FrameRecords(b.points, job.input.Frame)
	if err != nil {
		return splitterResult{}, fmt.Errorf("software splitter: %w", err)
	}
	n := len(records) / 4
	if err := b.allocate(n, job.props); err != nil {
		return splitterResult{}, fmt.Errorf("software splitter: %w", err)
	}

	run := &softwareRun{backend: b, job: job, records: records, n: n, caching: job.props.Caching()}
	var steps []func()
	if job.precompute {
		steps = append(steps, run.precompute)
	}
	steps = append(steps, run.reset)
	switch job.props.CullingStrategy() {
	case StrategyPrefixSum:
		steps = append(steps, run.mark, run.group, run.scan, run.prefixOffset, run.prefixWrite)
	case StrategyRestartPrimitive:
		steps = append(steps, run.count, run.restartOffset, run.restartWrite)
	default:
		steps = append(steps, run.count, run.atomicOffset, run.atomicWrite)
	}

	res := splitterResult{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return splitterResult{}, err
		}
		step()
		res.dispatches++
	}
	for i := range Models {
		res.counters[i] = Counter{Count: b.counts[i], Offset: b.offsets[i]}
	}
	return res, nil
}

func (b *softwareSplitterBackend) allocate(n int, props Properties) error {
	size := uint64(n) * 4
	if _, err := b.elements.Grow(size); err != nil {
		return err
	}
	if props.CullingStrategy() == StrategyRestartPrimitive {
		if b.sparse == nil {
			b.sparse = buffer.NewHostBuffer("Splitter Sparse Elements", buffer.WithUsage(buffer.UsageStorage|buffer.UsageIndex))
		}
		if _, err := b.sparse.Grow(size); err != nil {
			return err
		}
	}
	if props.Caching() != CachingForget && len(b.cache) < n {
		b.cache = make([]uint32, n)
	}
	if props.CullingStrategy() == StrategyPrefixSum && len(b.marks) < n {
		b.marks = make([]uint32, n)
		b.local = make([]uint32, n)
		b.groupSums = make([][3]uint32, int(common.CeilDiv(uint32(n), LocalSizeX)))
	}
	return nil
}

// softwareRun holds the state of one Run. Every step mirrors one compute dispatch.
type softwareRun struct {
	backend *softwareSplitterBackend
	job     splitterJob
	records []float32
	n       int
	caching Caching
}

func (r *softwareRun) point(i int) [3]float32 {
	return [3]float32{r.records[4*i], r.records[4*i+1], r.records[4*i+2]}
}

// countModel returns the model of point i in the first step that needs it.
func (r *softwareRun) countModel(i int) RenderModel {
	switch r.caching {
	case CachingCache:
		m := r.job.classifier.classify(r.point(i))
		r.backend.cache[i] = uint32(m)
		return m
	case CachingPrecompute:
		return RenderModel(r.backend.cache[i])
	default:
		return r.job.classifier.classify(r.point(i))
	}
}

// writeModel returns the model of point i in the write step.
func (r *softwareRun) writeModel(i int) RenderModel {
	if r.caching == CachingForget {
		return r.job.classifier.classify(r.point(i))
	}
	return RenderModel(r.backend.cache[i])
}

func (r *softwareRun) parallel(fn func(lo, hi int)) {
	common.ParallelFor(r.backend.pool, r.n, LocalSizeX*groupsPerTask, func(_, lo, hi int) {
		fn(lo, hi)
	})
}

func (r *softwareRun) precompute() {
	r.parallel(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			r.backend.cache[i] = uint32(r.job.classifier.classify(r.point(i)))
		}
	})
}

func (r *softwareRun) reset() {
	b := r.backend
	b.counts, b.cursors, b.offsets = [3]uint32{}, [3]uint32{}, [3]uint32{}
}

func (r *softwareRun) count() {
	b := r.backend
	r.parallel(func(lo, hi int) {
		var local [3]uint32
		for i := lo; i < hi; i++ {
			if m := r.countModel(i); m != RenderModelNone {
				local[m]++
			}
		}
		for m, c := range local {
			if c > 0 {
				atomic.AddUint32(&b.counts[m], c)
			}
		}
	})
}

func (r *softwareRun) atomicOffset() {
	b := r.backend
	b.offsets[RenderModelInstance] = 0
	b.offsets[RenderModelImpostor] = b.counts[RenderModelInstance]
	b.offsets[RenderModelPoint] = b.counts[RenderModelInstance] + b.counts[RenderModelImpostor]
}

func (r *softwareRun) atomicWrite() {
	b := r.backend
	elements := b.elements.Uint32s()
	r.parallel(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			m := r.writeModel(i)
			if m == RenderModelNone {
				continue
			}
			r.place(elements, m, i)
		}
	})
}

func (r *softwareRun) restartOffset() {
	b := r.backend
	b.offsets[RenderModelInstance] = 0
	b.offsets[RenderModelImpostor] = 0
	b.offsets[RenderModelPoint] = b.counts[RenderModelInstance]
}

func (r *softwareRun) restartWrite() {
	b := r.backend
	elements := b.elements.Uint32s()
	sparse := b.sparse.Uint32s()
	r.parallel(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			m := r.writeModel(i)
			sparse[i] = RestartIndex
			switch m {
			case RenderModelNone:
			case RenderModelImpostor:
				sparse[i] = uint32(i)
			default:
				r.place(elements, m, i)
			}
		}
	})
}

// place appends point i to the range of m. A slot past the range is dropped so a
// classification that changed between count and write cannot write out of bounds.
func (r *softwareRun) place(elements []uint32, m RenderModel, i int) {
	b := r.backend
	slot := atomic.AddUint32(&b.cursors[m], 1) - 1
	if slot >= b.counts[m] {
		return
	}
	elements[b.offsets[m]+slot] = uint32(i)
}

func (r *softwareRun) mark() {
	b := r.backend
	r.parallel(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			b.marks[i] = uint32(r.countModel(i))
		}
	})
}

func (r *softwareRun) group() {
	b := r.backend
	r.parallel(func(lo, hi int) {
		for g0 := lo; g0 < hi; g0 += LocalSizeX {
			var running [3]uint32
			for i := g0; i < min(g0+LocalSizeX, hi); i++ {
				m := b.marks[i]
				if m >= uint32(RenderModelNone) {
					continue
				}
				b.local[i] = running[m]
				running[m]++
			}
			b.groupSums[g0/LocalSizeX] = running
		}
	})
}

// scan turns the group sums into exclusive group bases and totals them.
func (r *softwareRun) scan() {
	groups := int(common.CeilDiv(uint32(r.n), LocalSizeX))
	r.backend.counts = scanGroupSums(r.backend.groupSums[:groups])
}

// scanGroupSums rewrites sums as exclusive prefix sums in place and returns the total.
// Like the scan kernel it splits sums into LocalSizeX contiguous runs, bases each run on
// the runs before it and then walks the run, so the serial chain is len(sums)/LocalSizeX long.
func scanGroupSums(sums [][3]uint32) [3]uint32 {
	run := int(common.CeilDiv(uint32(len(sums)), LocalSizeX))
	var lanes [LocalSizeX][3]uint32
	for lane := range lanes {
		first, last := min(lane*run, len(sums)), min((lane+1)*run, len(sums))
		for _, s := range sums[first:last] {
			for m := range s {
				lanes[lane][m] += s[m]
			}
		}
	}

	var base [3]uint32
	for lane := range lanes {
		total := base
		first, last := min(lane*run, len(sums)), min((lane+1)*run, len(sums))
		for g := first; g < last; g++ {
			s := sums[g]
			sums[g] = total
			for m := range total {
				total[m] += s[m]
			}
		}
		for m := range base {
			base[m] += lanes[lane][m]
		}
	}
	return base
}

func (r *softwareRun) prefixOffset() {
	r.atomicOffset()
}

func (r *softwareRun) prefixWrite() {
	b := r.backend
	elements := b.elements.Uint32s()
	r.parallel(func(lo, hi int) {
		for i := lo; i < hi; i++ {
			m := b.marks[i]
			if m >= uint32(RenderModelNone) {
				continue
			}
			elements[b.offsets[m]+b.groupSums[i/LocalSizeX][m]+b.local[i]] = uint32(i)
		}
	})
}
