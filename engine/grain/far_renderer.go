package grain

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/grain-go/engine/property"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
)

// Variant flags of the FarSand shader, in bit order.
const (
	FarShellCulling uint32 = 1 << iota
	FarPassBlitToMainFbo
)

// FarFlagNames are the FarSand defines, in bit order.
var FarFlagNames = []string{"SHELL_CULLING", "PASS_BLIT_TO_MAIN_FBO"}

// Debug shapes of a far splat.
const (
	DebugShapeNone      = -1
	DebugShapeLitSphere = 0
	DebugShapeDisc      = 1
	DebugShapeSquare    = 2
)

// Weight modes of the far accumulation, as a function of the distance to the splat center.
const (
	WeightModeNone     = -1
	WeightModeLinear   = 0
	WeightModeQuad     = 1
	WeightModeGaussian = 2
)

// FarProperties configure the far point renderer.
type FarProperties struct {
	Radius float32

	// EpsilonFactor is how many radii behind the closest splat the accumulation shell ends.
	EpsilonFactor     float32
	UseShellCulling   bool
	ShellDepthFalloff bool
	DebugShape        int
	WeightMode        int

	// DisableBlend overwrites instead of accumulating in the second pass.
	DisableBlend bool
}

// DefaultFarProperties returns the far point defaults.
func DefaultFarProperties() FarProperties {
	return FarProperties{
		Radius:          0.007,
		EpsilonFactor:   10,
		UseShellCulling: true,
		DebugShape:      DebugShapeDisc,
		WeightMode:      WeightModeNone,
	}
}

// FarPropertyTable describes how FarProperties are read from scene documents. Its uniform
// fields make up the FarUniforms block of far_common.wgsl.
var FarPropertyTable = property.Table[FarProperties]{
	Name: "farSand",
	Fields: []property.Field[FarProperties]{
		property.Float("radius", "uRadius", 0, 0.1, func(p *FarProperties) *float32 { return &p.Radius }),
		property.Float("epsilonFactor", "uEpsilonFactor", 0.01, 20, func(p *FarProperties) *float32 { return &p.EpsilonFactor }),
		property.Bool("useShellCulling", "uUseShellCulling", func(p *FarProperties) *bool { return &p.UseShellCulling }),
		property.Bool("shellDepthFalloff", "uShellDepthFalloff", func(p *FarProperties) *bool { return &p.ShellDepthFalloff }),
		property.Enum("debugShape", "uDebugShape", []property.EnumValue{
			{Name: "None", Value: DebugShapeNone},
			{Name: "LitSphere", Value: DebugShapeLitSphere},
			{Name: "Disc", Value: DebugShapeDisc},
			{Name: "Square", Value: DebugShapeSquare},
		}, func(p *FarProperties) *int { return &p.DebugShape }),
		property.Enum("weightMode", "uWeightMode", []property.EnumValue{
			{Name: "None", Value: WeightModeNone},
			{Name: "Linear", Value: WeightModeLinear},
			{Name: "Quad", Value: WeightModeQuad},
			{Name: "Gaussian", Value: WeightModeGaussian},
		}, func(p *FarProperties) *int { return &p.WeightMode }),
		property.Bool("disableBlend", "", func(p *FarProperties) *bool { return &p.DisableBlend }),
	},
}

type farRenderer struct {
	mu       *sync.Mutex
	enc      Encoder
	variants shader.VariantCache
	epsilon  shader.VariantCache
	props    FarProperties

	// bindings holds one Binder per pass: epsilon, splats, blit.
	bindings [3]Binder
}

// FarRenderer splats the farthest grains. With shell culling it renders an epsilon depth
// buffer first, accumulates the splats in front of it and blits the weighted average.
type FarRenderer interface {
	// Render draws a view into the frame destination. Shadow map frames draw nothing.
	//
	// Parameters:
	//   - v: the point view
	//   - f: the frame
	//
	// Returns:
	//   - error: a scratch, pipeline or draw error
	Render(v splitter.View, f Frame) error

	Properties() FarProperties
	SetProperties(p FarProperties)

	Variants() shader.VariantCache
	Reload()
	Release()
}

var _ FarRenderer = &farRenderer{}

// NewFarRenderer creates the far point renderer.
//
// Parameters:
//   - enc: the encoder the draws are recorded with
//   - compiler: compiles FarSand and FarSandEpsilonZBuffer
//   - options: variadic FarRendererBuilderOption functions
//
// Returns:
//   - FarRenderer: the renderer
func NewFarRenderer(enc Encoder, compiler shader.Compiler, options ...FarRendererBuilderOption) FarRenderer {
	r := &farRenderer{
		mu:       &sync.Mutex{},
		enc:      enc,
		variants: shader.NewVariantCache("FarSand", FarFlagNames, compiler),
		epsilon:  shader.NewVariantCache("FarSandEpsilonZBuffer", nil, compiler),
		props:    DefaultFarProperties(),
	}
	for _, opt := range options {
		opt(r)
	}
	for i, label := range []string{"FarSand epsilon", "FarSand splats", "FarSand blit"} {
		r.bindings[i] = enc.NewBindings(label)
	}
	return r
}

func (r *farRenderer) Render(v splitter.View, f Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Target == TargetShadowMap {
		return nil
	}
	src, ok, err := resolveView(v, f.PointFrame)
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}
	if !ok {
		return nil
	}

	w, h := destinationSize(f)
	res := pointResources(src, packFrameUniforms(f, frameDraw{src: src, width: w, height: h}), PropertyTable.Pack(&f.Grain))
	res["far"] = renderer.Resource{Data: FarPropertyTable.Pack(&r.props)}

	if !r.props.UseShellCulling {
		prog, err := variant(r.variants, 0)
		if err != nil {
			return fmt.Errorf("far: %w", err)
		}
		pass := renderer.PassDescriptor{Label: "FarSand", Target: f.Destination, LoadColor: true, LoadDepth: true}
		err = r.splats(pass, 1, prog, prog.Name()+"|direct", src, res,
			pipeline.WithTargets(f.Destination.ColorFormats()...),
			pipeline.WithDepthFormat(f.Destination.DepthFormat()),
			pipeline.WithBlendEnabled(false),
		)
		if err != nil {
			return fmt.Errorf("far: %w", err)
		}
		return nil
	}

	eps, err := f.Scratch.Checkout(framebuffer.PassFarEpsilon)
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}
	accum, err := f.Scratch.Checkout(framebuffer.PassFarAccum)
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}

	epsProg, err := variant(r.epsilon, 0)
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}
	pass := renderer.PassDescriptor{Label: "FarSandEpsilonZBuffer", Target: eps}
	err = r.splats(pass, 0, epsProg, epsProg.Name()+"|epsilon", src, res,
		pipeline.WithDepthOnly(),
		pipeline.WithDepthFormat(eps.DepthFormat()),
	)
	if err != nil {
		return fmt.Errorf("far: epsilon: %w", err)
	}

	prog, err := variant(r.variants, FarShellCulling)
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}
	opts := []pipeline.PipelineBuilderOption{
		pipeline.WithTargets(accum.ColorFormats()...),
		pipeline.WithDepthFormat(eps.DepthFormat()),
		pipeline.WithDepthWriteEnabled(false),
	}
	key := prog.Name() + "|accumulate"
	if r.props.DisableBlend {
		opts = append(opts, pipeline.WithBlendEnabled(false))
		key += "|noblend"
	} else {
		opts = append(opts, pipeline.WithBlendEnabled(true), pipeline.WithBlendState(pipeline.BlendAdditive()))
	}
	pass = renderer.PassDescriptor{Label: "FarSand accumulation", Target: accum, DepthFrom: eps, LoadDepth: true}
	if err := r.splats(pass, 1, prog, key, src, res, opts...); err != nil {
		return fmt.Errorf("far: accumulation: %w", err)
	}

	blitProg, err := variant(r.variants, FarPassBlitToMainFbo)
	if err != nil {
		return fmt.Errorf("far: %w", err)
	}
	if err := blit(r.enc, r.bindings[2], "FarSand blit", blitProg, f, accum); err != nil {
		return fmt.Errorf("far: blit: %w", err)
	}
	return nil
}

// splats records one pass drawing a quad per point.
func (r *farRenderer) splats(pass renderer.PassDescriptor, binding int, prog shader.Program, key string, src pointSource, res map[string]renderer.Resource, opts ...pipeline.PipelineBuilderOption) error {
	if err := ensurePipeline(r.enc, key, prog, opts...); err != nil {
		return err
	}
	groups, err := r.bindings[binding].Bind(prog, res)
	if err != nil {
		return err
	}
	if err := r.enc.BeginPass(pass); err != nil {
		return err
	}
	defer r.enc.EndPass()
	return r.enc.DrawCall(key, renderer.DrawArgs{
		VertexCount:   6,
		InstanceCount: src.count,
		FirstInstance: src.offset,
		BindGroups:    groups,
	})
}

func (r *farRenderer) Properties() FarProperties {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.props
}

func (r *farRenderer) SetProperties(p FarProperties) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props = p
}

func (r *farRenderer) Variants() shader.VariantCache {
	return r.variants
}

func (r *farRenderer) Reload() {
	r.variants.Reload()
	r.epsilon.Reload()
	r.enc.EvictPipelines("FarSand")
}

func (r *farRenderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bindings {
		b.Release()
	}
}
