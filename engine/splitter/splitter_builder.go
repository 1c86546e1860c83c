package splitter

import (
	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
)

// SplitterBuilderOption configures a Splitter created by NewSplitter.
type SplitterBuilderOption func(*splitter)

// WithProperties sets the initial configuration.
//
// Parameters:
//   - p: the properties
//
// Returns:
//   - SplitterBuilderOption: a function that applies the properties
func WithProperties(p Properties) SplitterBuilderOption {
	return func(s *splitter) {
		s.props = p
	}
}

// WithBackendType selects the compute backend. Defaults to BackendSoftware.
func WithBackendType(t BackendType) SplitterBuilderOption {
	return func(s *splitter) {
		s.backendType = t
	}
}

// WithPool runs the software backend on a shared worker pool.
//
// Parameters:
//   - pool: the worker pool, owned by the caller
//
// Returns:
//   - SplitterBuilderOption: a function that applies the pool
func WithPool(pool worker.DynamicWorkerPool) SplitterBuilderOption {
	return func(s *splitter) {
		s.pool = pool
	}
}

// WithWorkers sets the size of the pool the software backend creates when no pool is
// given. One worker runs every step inline.
func WithWorkers(n int) SplitterBuilderOption {
	return func(s *splitter) {
		s.workers = n
	}
}

// WithRenderer sets the renderer the wgpu backend dispatches on.
func WithRenderer(r renderer.Renderer) SplitterBuilderOption {
	return func(s *splitter) {
		s.renderer = r
	}
}

// WithCompiler sets the compiler of the wgpu backend kernels.
func WithCompiler(c shader.Compiler) SplitterBuilderOption {
	return func(s *splitter) {
		s.compiler = c
	}
}
