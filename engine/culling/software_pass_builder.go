package culling

import "github.com/Carmen-Shannon/automation/tools/worker"

// SoftwarePassBuilderOption is a functional option for configuring a software Pass via NewSoftwarePass.
type SoftwarePassBuilderOption func(*softwarePass)

// WithPool rasterizes on a shared worker pool instead of a pool owned by the pass.
//
// Parameters:
//   - pool: the worker pool
//
// Returns:
//   - SoftwarePassBuilderOption: a function that applies the pool
func WithPool(pool worker.DynamicWorkerPool) SoftwarePassBuilderOption {
	return func(p *softwarePass) {
		p.pool = pool
	}
}

// WithWorkers sets the size of the pool the pass creates. One worker rasterizes inline.
func WithWorkers(n int) SoftwarePassBuilderOption {
	return func(p *softwarePass) {
		p.workers = n
	}
}

// WithDepthBias sets how far behind an occluder, in view units, a point must lie to be
// hidden. The default is the grain radius of each frame.
//
// Parameters:
//   - bias: the depth bias
//
// Returns:
//   - SoftwarePassBuilderOption: a function that applies the bias
func WithDepthBias(bias float32) SoftwarePassBuilderOption {
	return func(p *softwarePass) {
		p.bias = bias
		p.hasBias = true
	}
}
