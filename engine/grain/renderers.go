package grain

import (
	"errors"
	"fmt"
	"log"

	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrVariantUnavailable is returned when the shader variant a draw needs failed to compile.
var ErrVariantUnavailable = errors.New("grain: shader variant unavailable")

// Renderers is the closed set of grain renderers, one per drawn render model. A nil member
// draws nothing.
type Renderers struct {
	Instance InstanceRenderer
	Impostor ImpostorRenderer
	Far      FarRenderer
}

// Render draws a view with the renderer of its render model.
//
// Parameters:
//   - m: the render model of the view
//   - v: the view, nil when the splitter has nothing for m
//   - f: the frame
//
// Returns:
//   - error: the renderer's error
func (rs Renderers) Render(m splitter.RenderModel, v splitter.View, f Frame) error {
	switch m {
	case splitter.RenderModelInstance:
		if rs.Instance != nil {
			return rs.Instance.Render(v, f)
		}
	case splitter.RenderModelImpostor:
		if rs.Impostor != nil {
			return rs.Impostor.Render(v, f)
		}
	case splitter.RenderModelPoint:
		if rs.Far != nil {
			return rs.Far.Render(v, f)
		}
	}
	return nil
}

// Reload drops every compiled variant and the pipelines built from them.
func (rs Renderers) Reload() {
	if rs.Instance != nil {
		rs.Instance.Reload()
	}
	if rs.Impostor != nil {
		rs.Impostor.Reload()
	}
	if rs.Far != nil {
		rs.Far.Reload()
	}
}

// Release releases the GPU resources of every renderer.
func (rs Renderers) Release() {
	if rs.Instance != nil {
		rs.Instance.Release()
	}
	if rs.Impostor != nil {
		rs.Impostor.Release()
	}
	if rs.Far != nil {
		rs.Far.Release()
	}
}

// warnings logs each distinct configuration problem once.
type warnings map[string]bool

func (w warnings) once(key, format string, args ...any) {
	if w[key] {
		return
	}
	w[key] = true
	log.Printf(format, args...)
}

// variant returns the program for flags or ErrVariantUnavailable.
func variant(cache shader.VariantCache, flags uint32) (shader.Program, error) {
	prog := cache.Get(flags)
	if prog == nil {
		return nil, fmt.Errorf("%s: %w", cache.Name(flags), ErrVariantUnavailable)
	}
	return prog, nil
}

// ensurePipeline registers a render pipeline for prog under key unless it is cached.
func ensurePipeline(enc Encoder, key string, prog shader.Program, opts ...pipeline.PipelineBuilderOption) error {
	if enc.Pipeline(key) != nil {
		return nil
	}
	opts = append([]pipeline.PipelineBuilderOption{pipeline.WithProgram(prog)}, opts...)
	if err := enc.RegisterPipelines(pipeline.NewPipeline(key, pipeline.PipelineTypeRender, opts...)); err != nil {
		return fmt.Errorf("pipeline %s: %w", key, err)
	}
	return nil
}

// pointResources binds the blocks and buffers of grain_common.wgsl.
func pointResources(src pointSource, frame, grain []byte) map[string]renderer.Resource {
	return map[string]renderer.Resource{
		"frame":    {Data: frame},
		"grain":    {Data: grain},
		"points":   {Buffer: src.points},
		"elements": {Buffer: src.elementBuffer()},
	}
}

// blitResources binds an accumulation target to the blit stage of fullscreen.wgsl.
func blitResources(f Frame, accum framebuffer.Framebuffer) map[string]renderer.Resource {
	w := &uniformWriter{}
	w.floats(f.Projection[:]...)
	return map[string]renderer.Resource{
		"blit":      {Data: w.buf},
		"lgbuffer0": {TextureView: accum.ColorView(0)},
		"lgbuffer1": {TextureView: accum.ColorView(1)},
	}
}

// blit resolves an accumulation target into the destination, depth tested against what
// the other renderers already wrote.
func blit(enc Encoder, binder Binder, label string, prog shader.Program, f Frame, accum framebuffer.Framebuffer) error {
	key := prog.Name() + "|blit"
	err := ensurePipeline(enc, key, prog,
		pipeline.WithTargets(f.Destination.ColorFormats()...),
		pipeline.WithDepthFormat(f.Destination.DepthFormat()),
		pipeline.WithBlendEnabled(false),
	)
	if err != nil {
		return err
	}
	groups, err := binder.Bind(prog, blitResources(f, accum))
	if err != nil {
		return err
	}
	if err := enc.BeginPass(renderer.PassDescriptor{
		Label:     label,
		Target:    f.Destination,
		LoadColor: true,
		LoadDepth: true,
	}); err != nil {
		return err
	}
	defer enc.EndPass()
	return enc.DrawCall(key, renderer.DrawArgs{VertexCount: 3, InstanceCount: 1, BindGroups: groups})
}

// destinationSize returns the viewport of the frame destination.
func destinationSize(f Frame) (int, int) {
	if f.Destination == nil {
		return 0, 0
	}
	return f.Destination.Size()
}

// clearPass clears every attachment of a target.
func clearPass(enc Encoder, label string, target framebuffer.Framebuffer) error {
	if err := enc.BeginPass(renderer.PassDescriptor{Label: label, Target: target, ClearColor: wgpu.Color{}}); err != nil {
		return err
	}
	enc.EndPass()
	return nil
}
