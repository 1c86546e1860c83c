package grain

import (
	"errors"

	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
)

var (
	// ErrSparseView is returned when a view holding RestartIndex slots reaches a renderer
	// that can only draw compacted ranges.
	ErrSparseView = errors.New("grain: sparse view cannot be instanced")

	// ErrNotDeviceResident is returned when point or element data lives in host memory.
	ErrNotDeviceResident = errors.New("grain: point data is not device resident")
)

// Target is what a render call draws into.
type Target int

const (
	// TargetGBuffer shades into the G-buffer of the frame.
	TargetGBuffer Target = iota

	// TargetShadowMap writes depth only into the shadow map, from the light.
	TargetShadowMap
)

func (t Target) String() string {
	if t == TargetShadowMap {
		return "ShadowMap"
	}
	return "GBuffer"
}

// Frame is the per frame input shared by every renderer.
type Frame struct {
	Target Target

	// Destination is the G-buffer or the shadow map, depending on Target.
	Destination framebuffer.Framebuffer

	// Scratch hands out the offscreen targets the renderers own.
	Scratch framebuffer.ScratchPool

	Model, View, Projection [16]float32

	// PointFrame is the animation frame of the point cloud, the same one the splitter
	// classified.
	PointFrame uint32

	// Time is the scene time in seconds.
	Time float32

	// Grain holds the grain settings shared by every renderer.
	Grain Properties
}

// Binder resolves named resources against a program. renderer.BindingSet implements it.
type Binder interface {
	Bind(prog shader.Program, resources map[string]renderer.Resource) ([]bind_group_provider.BindGroupProvider, error)
	Release()
}

// Encoder is the part of the renderer the grain renderers record with. NewEncoder adapts a
// renderer.Renderer.
type Encoder interface {
	Pipeline(key string) pipeline.Pipeline
	RegisterPipelines(pipelines ...pipeline.Pipeline) error
	EvictPipelines(prefix string) int

	// NewBindings creates a Binder owning the uniform buffers of one draw site.
	NewBindings(label string) Binder

	// NewFramebuffer creates a framebuffer on the device.
	NewFramebuffer(label string, spec framebuffer.Spec) (framebuffer.Framebuffer, error)

	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	BeginFrame() error
	BeginOffscreenFrame() error
	BeginPass(desc renderer.PassDescriptor) error
	DrawCall(pipelineKey string, args renderer.DrawArgs) error
	EndPass()
	EndFrame()
	Present()
}

type rendererEncoder struct {
	renderer.Renderer
}

var _ Encoder = &rendererEncoder{}

// NewEncoder adapts a renderer.Renderer to the Encoder interface.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - Encoder: the encoder
func NewEncoder(r renderer.Renderer) Encoder {
	return &rendererEncoder{Renderer: r}
}

func (e *rendererEncoder) NewBindings(label string) Binder {
	return renderer.NewBindingSet(e.Renderer, label)
}

func (e *rendererEncoder) NewFramebuffer(label string, spec framebuffer.Spec) (framebuffer.Framebuffer, error) {
	return framebuffer.NewFramebuffer(e.Device(), label, spec)
}
