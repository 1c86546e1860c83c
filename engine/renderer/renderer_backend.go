package renderer

import (
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA) on the
// swapchain pass. Offscreen passes are never multisampled.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1). This is the default, the
	// deferred shading pass is a fullscreen triangle and gains nothing from MSAA.
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// PassDescriptor describes one render pass inside a frame.
type PassDescriptor struct {
	Label string

	// Target receives the color attachments, and the depth attachment unless DepthFrom is set.
	// A nil Target renders to the swapchain.
	Target framebuffer.Framebuffer

	// DepthFrom borrows the depth attachment of another framebuffer, e.g. the epsilon depth
	// buffer tested read-only by the far point accumulation pass.
	DepthFrom framebuffer.Framebuffer

	// LoadColor and LoadDepth keep the previous contents instead of clearing.
	LoadColor bool
	LoadDepth bool

	ClearColor wgpu.Color
}

// DrawArgs describes a single draw inside the current pass.
type DrawArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32

	// Mesh switches to an indexed draw of the provider's vertex and index buffers. VertexCount
	// and FirstVertex are ignored.
	Mesh bind_group_provider.BindGroupProvider

	// BindGroups are set at group index = slice index. Nil entries are skipped.
	BindGroups []bind_group_provider.BindGroupProvider
}

// RendererBackend is the top-level backend interface for the Renderer.
// It embeds the concrete backend interface for the selected GPU API.
type RendererBackend interface {
	wgpuRendererBackend
}
