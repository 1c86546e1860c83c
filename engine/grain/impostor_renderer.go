package grain

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/grain-go/engine/property"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/cogentcore/webgpu/wgpu"
)

// Variant flags of the ImpostorSand shader, in bit order.
const (
	ImpostorNoDiscard uint32 = 1 << iota
	ImpostorPassShadowMap
	ImpostorPassBlitToMainFbo
	ImpostorNoInterpolation
	ImpostorPrecomputeViewMatrices
	ImpostorPrecomputeInVertex
	ImpostorSphere
)

// ImpostorFlagNames are the ImpostorSand defines, in bit order.
var ImpostorFlagNames = []string{
	"NO_DISCARD",
	"PASS_SHADOW_MAP",
	"PASS_BLIT_TO_MAIN_FBO",
	"NO_INTERPOLATION",
	"PRECOMPUTE_IMPOSTOR_VIEW_MATRICES",
	"PRECOMPUTE_IN_VERTEX",
	"SPHERE_IMPOSTOR",
}

// impostorOptionFlags carry over from the draw variant to the blit variant.
const impostorOptionFlags = ImpostorNoInterpolation | ImpostorPrecomputeViewMatrices | ImpostorPrecomputeInVertex

// Interpolation modes between baked views.
const (
	InterpolationLinear = iota
	InterpolationNone
)

// ImpostorProperties configure the impostor renderer.
type ImpostorProperties struct {
	// HitSphereCorrectionFactor scales the sphere rays are cast against, relative to the
	// radius the atlas views were baked at.
	HitSphereCorrectionFactor float32
	GrainScale                float32

	// PrerenderSurface draws the sprites twice: depth only first, then shaded against that
	// depth. FirstPassOnly stops after the first draw, shaded.
	PrerenderSurface bool
	FirstPassOnly    bool

	// NoDiscardInExtraFbo accumulates weighted samples into the auxiliary target and blits
	// them into the G-buffer instead of discarding uncovered fragments.
	NoDiscardInExtraFbo bool

	PrecomputeViewMatrices bool
	PrecomputeInVertex     bool
	InterpolationMode      int
}

// DefaultImpostorProperties returns the impostor defaults.
func DefaultImpostorProperties() ImpostorProperties {
	return ImpostorProperties{
		HitSphereCorrectionFactor: 1,
		GrainScale:                1,
		InterpolationMode:         InterpolationLinear,
	}
}

// ImpostorPropertyTable describes how ImpostorProperties are read from scene documents. The
// uniform fields lead the ImpostorUniforms block of ImpostorSand.wgsl.
var ImpostorPropertyTable = property.Table[ImpostorProperties]{
	Name: "impostor",
	Fields: []property.Field[ImpostorProperties]{
		property.Float("hitSphereCorrectionFactor", "uHitSphereCorrectionFactor", 0.01, 2, func(p *ImpostorProperties) *float32 { return &p.HitSphereCorrectionFactor }),
		property.Float("grainScale", "uGrainScale", 0.01, 3, func(p *ImpostorProperties) *float32 { return &p.GrainScale }),
		property.Bool("prerenderSurface", "uPrerenderSurface", func(p *ImpostorProperties) *bool { return &p.PrerenderSurface }),
		property.Bool("firstPassOnly", "", func(p *ImpostorProperties) *bool { return &p.FirstPassOnly }),
		property.Bool("noDiscardInExtraFbo", "", func(p *ImpostorProperties) *bool { return &p.NoDiscardInExtraFbo }),
		property.Bool("precomputeViewMatrices", "", func(p *ImpostorProperties) *bool { return &p.PrecomputeViewMatrices }),
		property.Bool("precomputeInVertex", "", func(p *ImpostorProperties) *bool { return &p.PrecomputeInVertex }),
		property.Enum("interpolationMode", "", []property.EnumValue{
			{Name: "Linear", Value: InterpolationLinear},
			{Name: "None", Value: InterpolationNone},
		}, func(p *ImpostorProperties) *int { return &p.InterpolationMode }),
	},
}

type impostorRenderer struct {
	mu       *sync.Mutex
	enc      Encoder
	variants shader.VariantCache
	props    ImpostorProperties
	atlases  AtlasSet

	// precompute is PrecomputeViewMatrices once checked against the atlases.
	precompute   bool
	viewMatrices []byte

	// bindings holds one Binder per draw of a frame: the two prerender steps, then the blit.
	bindings [3]Binder
	warned   warnings
}

// ImpostorRenderer draws the middle distance grains as camera facing sprites shaded from
// baked atlas views, or as ray cast spheres when no atlas is set.
type ImpostorRenderer interface {
	// Render draws a view into the frame destination. A nil view or a view with no points
	// draws nothing. Sparse views are drawn slot by slot, skipping empty slots.
	//
	// Parameters:
	//   - v: the impostor view
	//   - f: the frame
	//
	// Returns:
	//   - error: a scratch, pipeline or draw error
	Render(v splitter.View, f Frame) error

	Properties() ImpostorProperties

	// SetProperties replaces the configuration. Precomputed view matrices are dropped with
	// a log line when the atlases do not share one view count.
	SetProperties(p ImpostorProperties)

	// SetAtlases replaces the baked atlases. An empty set switches to sphere impostors.
	SetAtlases(s AtlasSet)

	// Flags returns the variant flags the next draw into a target uses.
	//
	// Parameters:
	//   - target: the frame target
	//
	// Returns:
	//   - uint32: the variant bitset
	Flags(target Target) uint32

	Variants() shader.VariantCache
	Reload()
	Release()
}

var _ ImpostorRenderer = &impostorRenderer{}

// NewImpostorRenderer creates the impostor renderer.
//
// Parameters:
//   - enc: the encoder the draws are recorded with
//   - compiler: compiles the ImpostorSand variants
//   - options: variadic ImpostorRendererBuilderOption functions
//
// Returns:
//   - ImpostorRenderer: the renderer
func NewImpostorRenderer(enc Encoder, compiler shader.Compiler, options ...ImpostorRendererBuilderOption) ImpostorRenderer {
	r := &impostorRenderer{
		mu:       &sync.Mutex{},
		enc:      enc,
		variants: shader.NewVariantCache("ImpostorSand", ImpostorFlagNames, compiler),
		props:    DefaultImpostorProperties(),
		warned:   warnings{},
	}
	for _, opt := range options {
		opt(r)
	}
	for i := range r.bindings {
		r.bindings[i] = enc.NewBindings(fmt.Sprintf("ImpostorSand draw %d", i))
	}
	r.checkPrecompute()
	return r
}

func (r *impostorRenderer) Render(v splitter.View, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok, err := resolveView(v, f.PointFrame)
	if err != nil {
		return fmt.Errorf("impostor: %w", err)
	}
	if !ok {
		return nil
	}

	flags := r.flags(f.Target)
	prog, err := variant(r.variants, flags)
	if err != nil {
		return fmt.Errorf("impostor: %w", err)
	}

	target := f.Destination
	pass := renderer.PassDescriptor{
		Label:     "ImpostorSand " + f.Target.String(),
		Target:    f.Destination,
		LoadColor: true,
		LoadDepth: true,
	}
	accumulate := flags&ImpostorNoDiscard != 0
	if accumulate {
		if target, err = f.Scratch.Checkout(framebuffer.PassImpostorAux); err != nil {
			return fmt.Errorf("impostor: %w", err)
		}
		pass = renderer.PassDescriptor{Label: "ImpostorSand accumulation", Target: target}
	}

	steps := 1
	if f.Target == TargetGBuffer && r.props.PrerenderSurface && !r.props.FirstPassOnly {
		steps = 2
	}

	if err := r.enc.BeginPass(pass); err != nil {
		return fmt.Errorf("impostor: %w", err)
	}
	for step := range steps {
		if err := r.draw(prog, f, src, target, uint32(step), steps); err != nil {
			r.enc.EndPass()
			return fmt.Errorf("impostor: step %d: %w", step, err)
		}
	}
	r.enc.EndPass()

	if !accumulate {
		return nil
	}
	blitProg, err := variant(r.variants, ImpostorPassBlitToMainFbo|flags&impostorOptionFlags)
	if err != nil {
		return fmt.Errorf("impostor: %w", err)
	}
	if err := blit(r.enc, r.bindings[2], "ImpostorSand blit", blitProg, f, target); err != nil {
		return fmt.Errorf("impostor: blit: %w", err)
	}
	return nil
}

// draw records one prerender step into the open pass.
func (r *impostorRenderer) draw(prog shader.Program, f Frame, src pointSource, target framebuffer.Framebuffer, step uint32, steps int) error {
	key, opts := r.pipelineState(prog, f.Target, target, step, steps)
	if err := ensurePipeline(r.enc, key, prog, opts...); err != nil {
		return err
	}

	w, h := destinationSize(f)
	res := pointResources(src, packFrameUniforms(f, frameDraw{src: src, prerenderStep: step, width: w, height: h}), PropertyTable.Pack(&f.Grain))
	res["impostor"] = renderer.Resource{Data: r.packUniforms()}
	if !r.atlases.Empty() {
		res["impostorColor"] = renderer.Resource{TextureView: r.atlases.BaseColor}
		res["impostorNormal"] = renderer.Resource{TextureView: r.atlases.Normal}
	}
	if r.precompute {
		res["viewMatrices"] = renderer.Resource{Data: r.viewMatrices}
	}
	groups, err := r.bindings[step].Bind(prog, res)
	if err != nil {
		return err
	}
	return r.enc.DrawCall(key, renderer.DrawArgs{
		VertexCount:   6,
		InstanceCount: src.count,
		FirstInstance: src.offset,
		BindGroups:    groups,
	})
}

// pipelineState returns the pipeline key and state of one step. The first of two steps
// only writes depth; the second tests against it without writing.
func (r *impostorRenderer) pipelineState(prog shader.Program, t Target, target framebuffer.Framebuffer, step uint32, steps int) (string, []pipeline.PipelineBuilderOption) {
	opts := []pipeline.PipelineBuilderOption{pipeline.WithDepthFormat(target.DepthFormat())}
	if t == TargetShadowMap {
		return prog.Name() + "|shadow", append(opts, pipeline.WithDepthOnly())
	}

	opts = append(opts, pipeline.WithTargets(target.ColorFormats()...))
	accumulate := r.flags(t)&ImpostorNoDiscard != 0
	if accumulate {
		opts = append(opts, pipeline.WithBlendEnabled(true), pipeline.WithBlendState(pipeline.BlendAdditive()))
	} else {
		opts = append(opts, pipeline.WithBlendEnabled(false))
	}

	key := fmt.Sprintf("%s|%s|step%d", prog.Name(), t, step)
	switch {
	case steps == 2 && step == 0:
		opts = append(opts, pipeline.WithWriteMask(wgpu.ColorWriteMaskNone))
	case steps == 2:
		opts = append(opts, pipeline.WithDepthCompare(wgpu.CompareFunctionLessEqual), pipeline.WithDepthWriteEnabled(!accumulate))
	case accumulate && r.props.PrerenderSurface:
		// first pass only: the pushed back surface still occludes later sprites
	case accumulate:
		opts = append(opts, pipeline.WithDepthTestEnabled(false), pipeline.WithDepthWriteEnabled(false))
	}
	return key, opts
}

func (r *impostorRenderer) flags(t Target) uint32 {
	var flags uint32
	if t == TargetShadowMap {
		flags |= ImpostorPassShadowMap
	} else if r.props.NoDiscardInExtraFbo {
		flags |= ImpostorNoDiscard
	}
	if r.atlases.Empty() {
		return flags | ImpostorSphere
	}
	if r.props.InterpolationMode == InterpolationNone {
		flags |= ImpostorNoInterpolation
	}
	if r.precompute {
		flags |= ImpostorPrecomputeViewMatrices
	}
	if r.props.PrecomputeInVertex {
		flags |= ImpostorPrecomputeInVertex
	}
	return flags
}

// packUniforms lays out the ImpostorUniforms block: the property uniforms, the atlas count
// and one view count per atlas.
func (r *impostorRenderer) packUniforms() []byte {
	buf := ImpostorPropertyTable.Pack(&r.props)
	atlases := r.atlases.Atlases
	if len(atlases) > MaxAtlases {
		r.warned.once("atlases", "[Impostor] %d atlases, only the first %d are sampled", len(atlases), MaxAtlases)
		atlases = atlases[:MaxAtlases]
	}
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(atlases)))
	var counts [MaxAtlases]uint32
	for i, a := range atlases {
		counts[i] = uint32(max(a.ViewCount, 1))
	}
	for _, c := range counts {
		buf = binary.LittleEndian.AppendUint32(buf, c)
	}
	return buf
}

// checkPrecompute enables precomputed view matrices when every atlas shares one view count.
func (r *impostorRenderer) checkPrecompute() {
	r.precompute, r.viewMatrices = false, nil
	if !r.props.PrecomputeViewMatrices || r.atlases.Empty() {
		return
	}
	n, ok := r.atlases.SharedViewCount()
	if !ok {
		log.Printf("[Impostor] precomputeViewMatrices needs every atlas to share one view count, disabled")
		return
	}
	r.precompute = true
	r.viewMatrices = PackViewMatrices(n)
}

func (r *impostorRenderer) Properties() ImpostorProperties {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props
}

func (r *impostorRenderer) SetProperties(p ImpostorProperties) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props = p
	r.checkPrecompute()
}

func (r *impostorRenderer) SetAtlases(s AtlasSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.atlases = s
	r.checkPrecompute()
}

func (r *impostorRenderer) Flags(t Target) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags(t)
}

func (r *impostorRenderer) Variants() shader.VariantCache {
	return r.variants
}

func (r *impostorRenderer) Reload() {
	r.variants.Reload()
	r.enc.EvictPipelines("ImpostorSand")
}

func (r *impostorRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		b.Release()
	}
}
