package culling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
)

// splatChunk is the number of points one worker task rasterizes.
const splatChunk = 4096

// softwareInputKey is the comparable part of an Input. A Render with the same key as the
// previous one leaves the map and its generation untouched.
type softwareInputKey struct {
	points                  pointcloud.Data
	frame                   uint32
	model, view, projection [16]float32
	radius, scale           float32
	zPrepass                bool
	width, height           int
}

type softwarePass struct {
	mu *sync.Mutex

	pool     worker.DynamicWorkerPool
	ownsPool bool
	workers  int
	bias     float32
	hasBias  bool

	occluders *softwareOccluderMap
	last      softwareInputKey
	rendered  bool
}

var _ Pass = &softwarePass{}

// NewSoftwarePass creates a Pass that rasterizes the occluder map on the host, one quarter
// of the viewport resolution on each axis like the GPU target. It feeds the software splitter.
//
// Parameters:
//   - width: the viewport width in pixels
//   - height: the viewport height in pixels
//   - options: variadic SoftwarePassBuilderOption functions
//
// Returns:
//   - Pass: the software pass
func NewSoftwarePass(width, height int, options ...SoftwarePassBuilderOption) Pass {
	p := &softwarePass{
		mu:      &sync.Mutex{},
		workers: 4,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.pool == nil && p.workers > 1 {
		p.pool = worker.NewDynamicWorkerPool(p.workers, 256, 1*time.Second)
		p.ownsPool = true
	}
	p.occluders = newSoftwareOccluderMap(1, 1)
	p.resize(width, height)
	return p
}

func (p *softwarePass) Render(ctx context.Context, in Input) (OccluderMap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if in.Points == nil {
		return nil, fmt.Errorf("occlusion pass: %w", ErrUnavailable)
	}
	key := softwareInputKey{
		points:     in.Points,
		frame:      in.Frame,
		model:      in.Model,
		view:       in.View,
		projection: in.Projection,
		radius:     in.GrainRadius,
		scale:      in.SpriteScale,
		zPrepass:   in.ZPrepass,
		width:      p.occluders.width,
		height:     p.occluders.height,
	}
	if p.rendered && key == p.last {
		return p.occluders, nil
	}

	records, err := pointcloud.FrameRecords(in.Points, in.Frame)
	if err != nil {
		return nil, fmt.Errorf("occlusion pass: %w", err)
	}

	var mvp, mv [16]float32
	common.Mul4(mv[:], in.View[:], in.Model[:])
	common.Mul4(mvp[:], in.Projection[:], mv[:])

	m := p.occluders
	m.clear()
	m.bias = in.GrainRadius
	if p.hasBias {
		m.bias = p.bias
	}

	radius := in.GrainRadius * in.SpriteScale
	halfW, halfH := float32(m.width)*0.5, float32(m.height)*0.5
	n := len(records) / 4
	common.ParallelFor(p.pool, n, splatChunk, func(_, lo, hi int) {
		if ctx.Err() != nil {
			return
		}
		for i := lo; i < hi; i++ {
			r := records[4*i : 4*i+3]
			clip := common.TransformPoint(mvp[:], [3]float32{r[0], r[1], r[2]})
			if clip[3] <= 0 {
				continue
			}
			rx := radius * in.Projection[0] / clip[3] * halfW
			ry := radius * in.Projection[5] / clip[3] * halfH
			m.splat(clip, rx, ry, !in.ZPrepass)
		}
	})
	if err := ctx.Err(); err != nil {
		p.rendered = false
		return nil, err
	}

	m.generation++
	p.last = key
	p.rendered = true
	return m, nil
}

func (p *softwarePass) Resize(width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resize(width, height)
}

func (p *softwarePass) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.occluders.depth = nil
	p.rendered = false
	if p.ownsPool {
		p.pool.Stop()
		p.pool, p.ownsPool = nil, false
	}
}

func (p *softwarePass) resize(width, height int) {
	spec := framebuffer.KindSpec(framebuffer.ScratchOccluderMap, width, height)
	if spec.Width == p.occluders.width && spec.Height == p.occluders.height && p.occluders.depth != nil {
		return
	}
	p.occluders.resize(spec.Width, spec.Height)
	p.occluders.generation++
	p.rendered = false
}
