package grain

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/property"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// Variant flags of the Deferred shader, in bit order.
const (
	DeferredShadowMap uint32 = 1 << iota
)

// DeferredFlagNames are the Deferred defines, in bit order.
var DeferredFlagNames = []string{"SHADOW_MAP"}

// deferredUniformsSize is the size of the DeferredUniforms block in Deferred.wgsl.
const deferredUniformsSize = 176

// DeferredProperties configure the shading pass.
type DeferredProperties struct {
	// LightDirection points from the scene towards the light, in world space.
	LightDirection [3]float32
	LightColor     [3]float32
	Ambient        float32
	Shadows        bool
	ShadowBias     float32
	Background     [3]float32
	Exposure       float32
}

// DefaultDeferredProperties returns the shading defaults.
func DefaultDeferredProperties() DeferredProperties {
	return DeferredProperties{
		LightDirection: [3]float32{0.3, 1, 0.4},
		LightColor:     [3]float32{1, 1, 1},
		Ambient:        0.15,
		Shadows:        true,
		ShadowBias:     0.002,
		Background:     [3]float32{0.05, 0.05, 0.07},
		Exposure:       1,
	}
}

// DeferredPropertyTable describes how DeferredProperties are read from scene documents.
var DeferredPropertyTable = property.Table[DeferredProperties]{
	Name: "deferred",
	Fields: []property.Field[DeferredProperties]{
		property.Vec3("lightDirection", "", -1, 1, func(p *DeferredProperties) *[3]float32 { return &p.LightDirection }),
		property.Vec3("lightColor", "", 0, 4, func(p *DeferredProperties) *[3]float32 { return &p.LightColor }),
		property.Float("ambient", "", 0, 1, func(p *DeferredProperties) *float32 { return &p.Ambient }),
		property.Bool("shadows", "", func(p *DeferredProperties) *bool { return &p.Shadows }),
		property.Float("shadowBias", "", 0, 0.05, func(p *DeferredProperties) *float32 { return &p.ShadowBias }),
		property.Vec3("background", "", 0, 1, func(p *DeferredProperties) *[3]float32 { return &p.Background }),
		property.Float("exposure", "", 0, 8, func(p *DeferredProperties) *float32 { return &p.Exposure }),
	},
}

// ViewSource hands out the per render model views of the current frame. splitter.Splitter
// implements it.
type ViewSource interface {
	View(model splitter.RenderModel) splitter.View
}

// FrameInput is the camera and animation state of one composed frame.
type FrameInput struct {
	Model, View, Projection [16]float32
	PointFrame              uint32
	Time                    float32
}

type compositor struct {
	mu        *sync.Mutex
	enc       Encoder
	scratch   framebuffer.ScratchPool
	renderers Renderers
	variants  shader.VariantCache
	bindings  Binder

	width, height int
	gbuffer       framebuffer.Framebuffer

	grain    Properties
	deferred DeferredProperties

	// bounds is the sphere the shadow map covers.
	boundsCenter [3]float32
	boundsRadius float32

	headless bool
}

// Compositor runs the grain renderers into the G-buffer and shades it into the swapchain.
// A frame is: the shadow map from the light, a cleared G-buffer, the instance, impostor and
// far point renderers in turn, then the deferred shading pass.
type Compositor interface {
	// Render composes one frame. A failing renderer does not stop the others; every
	// failure is returned joined.
	//
	// Parameters:
	//   - views: the views of the frame, typically the splitter
	//   - in: the camera and animation state
	//
	// Returns:
	//   - error: the frame errors, or nil
	Render(views ViewSource, in FrameInput) error

	// Resize resizes the G-buffer and the scratch targets.
	//
	// Parameters:
	//   - width: the viewport width
	//   - height: the viewport height
	//
	// Returns:
	//   - error: the first resize error
	Resize(width, height int) error

	Renderers() Renderers
	GBuffer() framebuffer.Framebuffer

	Properties() Properties
	SetProperties(p Properties)
	DeferredProperties() DeferredProperties
	SetDeferredProperties(p DeferredProperties)

	// SetBounds sets the sphere the shadow map covers, usually the point cloud bounds.
	SetBounds(center [3]float32, radius float32)

	// Reload drops every compiled variant of the compositor and its renderers.
	Reload()
	Release()
}

var _ Compositor = &compositor{}

// NewCompositor creates a compositor over a set of renderers.
//
// Parameters:
//   - enc: the encoder the frame is recorded with
//   - scratch: the pool of scratch targets, owned by the caller
//   - renderers: the grain renderers, released with the compositor
//   - compiler: compiles the Deferred variants
//   - width: the viewport width
//   - height: the viewport height
//   - options: variadic CompositorBuilderOption functions
//
// Returns:
//   - Compositor: the compositor
func NewCompositor(enc Encoder, scratch framebuffer.ScratchPool, renderers Renderers, compiler shader.Compiler, width, height int, options ...CompositorBuilderOption) Compositor {
	c := &compositor{
		mu:           &sync.Mutex{},
		enc:          enc,
		scratch:      scratch,
		renderers:    renderers,
		variants:     shader.NewVariantCache("Deferred", DeferredFlagNames, compiler),
		bindings:     enc.NewBindings("Deferred"),
		width:        width,
		height:       height,
		grain:        DefaultProperties(),
		deferred:     DefaultDeferredProperties(),
		boundsRadius: 1,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *compositor) Render(views ViewSource, in FrameInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	gbuffer, err := c.ensureGBuffer()
	if err != nil {
		return fmt.Errorf("compositor: %w", err)
	}

	c.scratch.BeginFrame()
	if c.headless {
		err = c.enc.BeginOffscreenFrame()
	} else {
		err = c.enc.BeginFrame()
	}
	if err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	defer func() {
		c.enc.EndFrame()
		if !c.headless {
			c.enc.Present()
		}
	}()

	var errs []error
	frame := Frame{
		Target:      TargetGBuffer,
		Destination: gbuffer,
		Scratch:     c.scratch,
		Model:       in.Model,
		View:        in.View,
		Projection:  in.Projection,
		PointFrame:  in.PointFrame,
		Time:        in.Time,
		Grain:       c.grain,
	}

	var shadow framebuffer.Framebuffer
	var lightViewProj [16]float32
	if c.deferred.Shadows {
		if shadow, lightViewProj, err = c.shadowPass(views, frame); err != nil {
			errs = append(errs, err)
		}
	}

	if err := clearPass(c.enc, "GBuffer clear", gbuffer); err != nil {
		return errors.Join(append(errs, fmt.Errorf("compositor: %w", err))...)
	}
	for _, m := range splitter.Models {
		if c.disabled(m) {
			continue
		}
		if err := c.renderers.Render(m, views.View(m), frame); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m, err))
		}
	}

	if !c.headless {
		if err := c.deferredPass(frame, gbuffer, shadow, lightViewProj); err != nil {
			errs = append(errs, fmt.Errorf("compositor: deferred: %w", err))
		}
	}
	return errors.Join(errs...)
}

// shadowPass renders the instance and impostor ranges into the shadow map from the light.
func (c *compositor) shadowPass(views ViewSource, frame Frame) (framebuffer.Framebuffer, [16]float32, error) {
	var viewProj [16]float32
	shadow, err := c.scratch.Checkout(framebuffer.PassShadow)
	if err != nil {
		return nil, viewProj, fmt.Errorf("compositor: shadow: %w", err)
	}
	if err := clearPass(c.enc, "ShadowMap clear", shadow); err != nil {
		return nil, viewProj, fmt.Errorf("compositor: shadow: %w", err)
	}

	frame.Target = TargetShadowMap
	frame.Destination = shadow
	frame.View, frame.Projection = c.lightMatrices()
	common.Mul4(viewProj[:], frame.Projection[:], frame.View[:])

	var errs []error
	for _, m := range []splitter.RenderModel{splitter.RenderModelInstance, splitter.RenderModelImpostor} {
		if c.disabled(m) {
			continue
		}
		if err := c.renderers.Render(m, views.View(m), frame); err != nil {
			errs = append(errs, fmt.Errorf("%s shadow: %w", m, err))
		}
	}
	return shadow, viewProj, errors.Join(errs...)
}

// lightMatrices returns an orthographic light looking at the bounds along LightDirection.
func (c *compositor) lightMatrices() (view, proj [16]float32) {
	d := normalize(c.deferred.LightDirection[0], c.deferred.LightDirection[1], c.deferred.LightDirection[2])
	if d == ([3]float32{}) {
		d = [3]float32{0, 1, 0}
	}
	r := max(c.boundsRadius, 1e-3)
	eye := [3]float32{
		c.boundsCenter[0] + d[0]*2*r,
		c.boundsCenter[1] + d[1]*2*r,
		c.boundsCenter[2] + d[2]*2*r,
	}
	up := [3]float32{0, 1, 0}
	if math32.Abs(d[1]) > 0.99 {
		up = [3]float32{0, 0, 1}
	}
	common.LookAt(view[:], eye, c.boundsCenter, up)
	common.Orthographic(proj[:], -r, r, -r, r, 0.5*r, 3.5*r)
	return view, proj
}

func (c *compositor) deferredPass(frame Frame, gbuffer, shadow framebuffer.Framebuffer, lightViewProj [16]float32) error {
	var flags uint32
	if shadow != nil {
		flags |= DeferredShadowMap
	}
	prog, err := variant(c.variants, flags)
	if err != nil {
		return err
	}
	key := prog.Name() + "|swapchain"
	err = ensurePipeline(c.enc, key, prog,
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithBlendEnabled(false),
	)
	if err != nil {
		return err
	}

	res := map[string]renderer.Resource{
		"deferred": {Data: c.packUniforms(frame, lightViewProj)},
		"gbuffer0": {TextureView: gbuffer.ColorView(0)},
		"gbuffer1": {TextureView: gbuffer.ColorView(1)},
	}
	if shadow != nil {
		res["shadowMap"] = renderer.Resource{TextureView: shadow.DepthView()}
	}
	groups, err := c.bindings.Bind(prog, res)
	if err != nil {
		return err
	}

	bg := c.deferred.Background
	if err := c.enc.BeginPass(renderer.PassDescriptor{
		Label:      "Deferred",
		ClearColor: wgpu.Color{R: float64(bg[0]), G: float64(bg[1]), B: float64(bg[2]), A: 1},
	}); err != nil {
		return err
	}
	defer c.enc.EndPass()
	return c.enc.DrawCall(key, renderer.DrawArgs{VertexCount: 3, InstanceCount: 1, BindGroups: groups})
}

// packUniforms lays out the DeferredUniforms block. The light direction is moved to view
// space and the shadow matrix maps view space to the light's clip space.
func (c *compositor) packUniforms(frame Frame, lightViewProj [16]float32) []byte {
	var invView, shadowMatrix [16]float32
	if !common.Invert4(invView[:], frame.View[:]) {
		invView = common.IdentityMatrix()
	}
	common.Mul4(shadowMatrix[:], lightViewProj[:], invView[:])

	d := c.deferred.LightDirection
	v := frame.View
	l := normalize(
		v[0]*d[0]+v[4]*d[1]+v[8]*d[2],
		v[1]*d[0]+v[5]*d[1]+v[9]*d[2],
		v[2]*d[0]+v[6]*d[1]+v[10]*d[2],
	)

	w := &uniformWriter{buf: make([]byte, 0, deferredUniformsSize)}
	w.floats(frame.Projection[:]...)
	w.floats(shadowMatrix[:]...)
	w.floats(l[0], l[1], l[2], c.deferred.Ambient)
	w.floats(c.deferred.LightColor[0], c.deferred.LightColor[1], c.deferred.LightColor[2], c.deferred.ShadowBias)
	w.floats(c.deferred.Background[0], c.deferred.Background[1], c.deferred.Background[2], c.deferred.Exposure)
	return w.buf
}

func (c *compositor) disabled(m splitter.RenderModel) bool {
	switch m {
	case splitter.RenderModelInstance:
		return c.grain.DisableInstances
	case splitter.RenderModelImpostor:
		return c.grain.DisableImpostors
	case splitter.RenderModelPoint:
		return c.grain.DisablePoints
	}
	return true
}

func (c *compositor) ensureGBuffer() (framebuffer.Framebuffer, error) {
	if c.gbuffer != nil {
		return c.gbuffer, nil
	}
	fb, err := c.enc.NewFramebuffer("GBuffer", framebuffer.GBufferSpec(c.width, c.height))
	if err != nil {
		return nil, fmt.Errorf("gbuffer: %w", err)
	}
	log.Printf("[Compositor] created G-buffer %dx%d", c.width, c.height)
	c.gbuffer = fb
	return fb, nil
}

func (c *compositor) Resize(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	if c.gbuffer != nil {
		if err := c.gbuffer.Resize(width, height); err != nil {
			return fmt.Errorf("compositor: gbuffer: %w", err)
		}
	}
	return c.scratch.Resize(width, height)
}

func (c *compositor) Renderers() Renderers {
	return c.renderers
}

func (c *compositor) GBuffer() framebuffer.Framebuffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gbuffer
}

func (c *compositor) Properties() Properties {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grain
}

func (c *compositor) SetProperties(p Properties) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grain = p
}

func (c *compositor) DeferredProperties() DeferredProperties {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deferred
}

func (c *compositor) SetDeferredProperties(p DeferredProperties) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deferred = p
}

func (c *compositor) SetBounds(center [3]float32, radius float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundsCenter, c.boundsRadius = center, radius
}

func (c *compositor) Reload() {
	c.variants.Reload()
	c.enc.EvictPipelines("Deferred")
	c.renderers.Reload()
}

func (c *compositor) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderers.Release()
	c.bindings.Release()
	if c.gbuffer != nil {
		c.gbuffer.Release()
		c.gbuffer = nil
	}
}
