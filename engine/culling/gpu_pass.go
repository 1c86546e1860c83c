package culling

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderName is the library entry of the occluder map program.
const ShaderName = "OcclusionCulling"

// Variant flags of the occluder map program, in bit order.
const (
	FlagZPrepass uint32 = 1 << iota
)

// FlagNames are the defines matching the variant flags.
var FlagNames = []string{"Z_PREPASS"}

// gpuOccluderMap is the depth attachment of the occlusion scratch target.
type gpuOccluderMap struct {
	target     framebuffer.Framebuffer
	generation uint64
}

var _ OccluderMap = &gpuOccluderMap{}

func (m *gpuOccluderMap) Width() int {
	w, _ := m.target.Size()
	return w
}

func (m *gpuOccluderMap) Height() int {
	_, h := m.target.Size()
	return h
}

func (m *gpuOccluderMap) Generation() uint64 {
	return m.generation
}

func (m *gpuOccluderMap) Occludes([4]float32) bool {
	return false
}

func (m *gpuOccluderMap) TextureView() *wgpu.TextureView {
	return m.target.DepthView()
}

type gpuPass struct {
	mu *sync.Mutex

	renderer renderer.Renderer
	scratch  framebuffer.ScratchPool
	variants shader.VariantCache
	bindings renderer.BindingSet

	generation uint64
}

var _ Pass = &gpuPass{}
var _ shader.Reloader = &gpuPass{}

// NewGPUPass creates a Pass rendering the occluder map on the GPU into the scratch target
// owned by framebuffer.PassOcclusion. Each Render submits its own offscreen frame so the
// map is complete before the splitter's compute frame is encoded.
//
// Parameters:
//   - r: the renderer
//   - scratch: the scratch pool holding the occlusion target
//   - compiler: the shader compiler for the OcclusionCulling variants
//
// Returns:
//   - Pass: the GPU pass
func NewGPUPass(r renderer.Renderer, scratch framebuffer.ScratchPool, compiler shader.Compiler) Pass {
	return &gpuPass{
		mu:       &sync.Mutex{},
		renderer: r,
		scratch:  scratch,
		variants: shader.NewVariantCache(ShaderName, FlagNames, compiler),
		bindings: renderer.NewBindingSet(r, ShaderName),
	}
}

// Reload drops the compiled variants and their pipelines so the next Render recompiles.
func (p *gpuPass) Reload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variants.Reload()
	p.renderer.EvictPipelines(ShaderName)
}

func (p *gpuPass) Render(ctx context.Context, in Input) (OccluderMap, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Points == nil {
		return nil, fmt.Errorf("occlusion pass: %w", ErrUnavailable)
	}
	vertices, ok := in.Points.Vertices().(buffer.DeviceBuffer)
	if !ok {
		return nil, fmt.Errorf("occlusion pass: points are not device resident: %w", ErrUnavailable)
	}

	var flags uint32
	if in.ZPrepass {
		flags |= FlagZPrepass
	}
	prog := p.variants.Get(flags)
	if prog == nil {
		return nil, fmt.Errorf("occlusion pass: %w", ErrUnavailable)
	}
	if p.renderer.Pipeline(prog.Name()) == nil {
		err := p.renderer.RegisterPipelines(pipeline.NewPipeline(prog.Name(), pipeline.PipelineTypeRender,
			pipeline.WithProgram(prog),
			pipeline.WithDepthOnly(),
			pipeline.WithDepthFormat(framebuffer.DepthFormat),
		))
		if err != nil {
			log.Printf("[Occlusion] failed to create pipeline %s: %v", prog.Name(), err)
			return nil, fmt.Errorf("occlusion pass: %w", ErrUnavailable)
		}
	}

	target, err := p.scratch.Checkout(framebuffer.PassOcclusion)
	if err != nil {
		return nil, fmt.Errorf("occlusion pass: %w", err)
	}

	groups, err := p.bindings.Bind(prog, map[string]renderer.Resource{
		"occlusion": {Data: packOcclusionUniforms(in)},
		"points":    {Buffer: vertices.GPUBuffer()},
	})
	if err != nil {
		return nil, fmt.Errorf("occlusion pass: %w", err)
	}

	if err := p.renderer.BeginOffscreenFrame(); err != nil {
		return nil, fmt.Errorf("occlusion pass: %w", err)
	}
	defer p.renderer.EndFrame()
	if err := p.renderer.BeginPass(renderer.PassDescriptor{Label: "Occluder Map", Target: target}); err != nil {
		return nil, fmt.Errorf("occlusion pass: %w", err)
	}
	if n := in.Points.PointCount(); n > 0 {
		err = p.renderer.DrawCall(prog.Name(), renderer.DrawArgs{
			VertexCount:   6,
			InstanceCount: n,
			BindGroups:    groups,
		})
	}
	p.renderer.EndPass()
	if err != nil {
		return nil, fmt.Errorf("occlusion pass: %w", err)
	}

	p.generation++
	return &gpuOccluderMap{target: target, generation: p.generation}, nil
}

func (p *gpuPass) Resize(int, int) {}

func (p *gpuPass) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings.Release()
}

// packOcclusionUniforms lays out the OcclusionUniforms block: the model view projection
// matrix, the sprite radius in clip units per axis, and the first record of the frame.
func packOcclusionUniforms(in Input) []byte {
	var mv, mvp [16]float32
	common.Mul4(mv[:], in.View[:], in.Model[:])
	common.Mul4(mvp[:], in.Projection[:], mv[:])

	radius := in.GrainRadius * in.SpriteScale
	buf := make([]byte, 0, 80)
	for _, v := range mvp {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(radius*in.Projection[0]))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(radius*in.Projection[5]))
	frame := in.Frame % max(in.Points.FrameCount(), 1)
	buf = binary.LittleEndian.AppendUint32(buf, frame*in.Points.PointCount()+in.Points.PointOffset())
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	return buf
}
