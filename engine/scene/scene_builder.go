package scene

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/engine/camera"
	"github.com/Carmen-Shannon/grain-go/engine/grain"
	"github.com/Carmen-Shannon/grain-go/engine/loader"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithRenderer renders the scene on the GPU: the points are uploaded, the splitter runs as
// compute dispatches and the occluder map is rasterized on the device. Requires WithCompiler.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) SceneBuilderOption {
	return func(s *scene) {
		s.renderer = r
	}
}

// WithEncoder records the frames with enc instead of the renderer. Together with WithScratch
// it composes frames without a device, which the tests rely on.
func WithEncoder(enc grain.Encoder) SceneBuilderOption {
	return func(s *scene) {
		s.enc = enc
	}
}

// WithCompiler sets the shader compiler of every GPU component.
func WithCompiler(c shader.Compiler) SceneBuilderOption {
	return func(s *scene) {
		s.compiler = c
	}
}

// WithScratch shares a scratch pool. The scene creates and owns one otherwise.
func WithScratch(pool framebuffer.ScratchPool) SceneBuilderOption {
	return func(s *scene) {
		s.scratch = pool
	}
}

// WithLoader loads points and meshes through a shared loader, so its cache outlives the
// scene.
func WithLoader(l loader.Loader) SceneBuilderOption {
	return func(s *scene) {
		s.loader = l
	}
}

// WithPool shares a worker pool with the generator, the software splitter and the culling
// pass.
func WithPool(pool worker.DynamicWorkerPool) SceneBuilderOption {
	return func(s *scene) {
		s.pool = pool
	}
}

// WithWorkers sets the size of the scene's own worker pool. Defaults to runtime.NumCPU()-1.
// Ignored with WithPool.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		s.workers = max(n, 1)
	}
}

// WithHeadless composes into offscreen targets only, skipping the swapchain.
func WithHeadless() SceneBuilderOption {
	return func(s *scene) {
		s.headless = true
	}
}

// WithSize sets the initial viewport size.
func WithSize(width, height int) SceneBuilderOption {
	return func(s *scene) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

// WithCamera uses cam instead of a new turntable camera. The document camera section is
// still applied to it.
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}
