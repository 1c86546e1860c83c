package pointcloud

import "github.com/Carmen-Shannon/automation/tools/worker"

// GeneratorBuilderOption is a functional option applied to a generator during construction via NewGenerator.
type GeneratorBuilderOption func(*generator)

// WithSeed sets the random seed of the generated stacking.
func WithSeed(seed uint64) GeneratorBuilderOption {
	return func(g *generator) {
		g.seed = seed
	}
}

// WithShape sets the layout of the generated stacking.
func WithShape(shape Shape) GeneratorBuilderOption {
	return func(g *generator) {
		g.shape = shape
	}
}

// WithExtent sets the horizontal half size and the height of the stacking.
//
// Parameters:
//   - extent: the heap radius or box half width
//   - height: the peak height
//
// Returns:
//   - GeneratorBuilderOption: a function that applies the extent
func WithExtent(extent, height float32) GeneratorBuilderOption {
	return func(g *generator) {
		if extent > 0 {
			g.extent = extent
		}
		if height > 0 {
			g.height = height
		}
	}
}

// WithFrames generates an animated stacking where grains settle from up to drop above their
// rest position over the given number of frames.
//
// Parameters:
//   - frames: the number of animation frames
//   - drop: the maximum fall height
//
// Returns:
//   - GeneratorBuilderOption: a function that applies the animation
func WithFrames(frames uint32, drop float32) GeneratorBuilderOption {
	return func(g *generator) {
		g.frameCount = frames
		g.drop = drop
	}
}

// WithGeneratorFPS sets the playback rate of the generated cloud.
func WithGeneratorFPS(fps float32) GeneratorBuilderOption {
	return func(g *generator) {
		g.fps = fps
	}
}

// WithWorkers sets the size of the generator's own worker pool. Ignored with WithPool.
func WithWorkers(n int) GeneratorBuilderOption {
	return func(g *generator) {
		g.workers = n
	}
}

// WithPool shares an existing worker pool with the generator.
func WithPool(pool worker.DynamicWorkerPool) GeneratorBuilderOption {
	return func(g *generator) {
		g.pool = pool
	}
}
