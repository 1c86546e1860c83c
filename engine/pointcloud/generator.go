package pointcloud

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/chewxy/math32"
)

// Shape selects the layout of a generated stacking.
type Shape int

const (
	// ShapeHeap piles grains into a cone, densest at the center.
	ShapeHeap Shape = iota
	// ShapeBox fills an axis aligned box uniformly.
	ShapeBox
)

// generatorChunk is the number of points generated per task. Each chunk draws from its own
// seeded stream so the output does not depend on the worker count.
const generatorChunk = 4096

type generator struct {
	pointCount uint32
	frameCount uint32
	seed       uint64
	shape      Shape
	extent     float32
	height     float32
	drop       float32
	fps        float32
	workers    int
	pool       worker.DynamicWorkerPool
}

// Generator produces procedural grain stackings, used by benchmarks, tests and the viewer
// when no point file is given.
type Generator interface {
	// Generate builds a new cloud. Two calls with the same settings produce identical positions.
	//
	// Parameters:
	//   - label: the debug name of the cloud
	//
	// Returns:
	//   - PointCloud: the generated cloud
	//   - error: an error if the cloud could not be built
	Generate(label string) (PointCloud, error)
}

var _ Generator = &generator{}

// NewGenerator creates a Generator for the given number of points per frame.
//
// Parameters:
//   - pointCount: the number of grains
//   - options: variadic GeneratorBuilderOption functions
//
// Returns:
//   - Generator: the configured generator
func NewGenerator(pointCount uint32, options ...GeneratorBuilderOption) Generator {
	g := &generator{
		pointCount: pointCount,
		frameCount: 1,
		seed:       1,
		shape:      ShapeHeap,
		extent:     1,
		height:     0.6,
		drop:       0.5,
		fps:        DefaultFPS,
		workers:    4,
	}
	for _, option := range options {
		option(g)
	}
	if g.pool == nil {
		g.pool = worker.NewDynamicWorkerPool(g.workers, 256, 1*time.Second)
	}
	return g
}

func (g *generator) Generate(label string) (PointCloud, error) {
	frames := max(g.frameCount, 1)
	n := int(g.pointCount)
	positions := make([]float32, 3*n*int(frames))

	common.ParallelFor(g.pool, n, generatorChunk, func(chunk, lo, hi int) {
		rng := rand.New(rand.NewPCG(g.seed, uint64(chunk)))
		for i := lo; i < hi; i++ {
			rest := g.sample(rng)
			fall := g.drop * rng.Float32()
			for f := range int(frames) {
				p := rest
				if frames > 1 {
					t := float32(f) / float32(frames-1)
					p[1] += fall * (1 - t) * (1 - t)
				}
				j := 3 * (f*n + i)
				positions[j], positions[j+1], positions[j+2] = p[0], p[1], p[2]
			}
		}
	})

	pc, err := NewPointCloud(label, positions, WithFrameCount(frames), WithFPS(g.fps))
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", label, err)
	}
	return pc, nil
}

func (g *generator) sample(rng *rand.Rand) [3]float32 {
	switch g.shape {
	case ShapeBox:
		return [3]float32{
			(rng.Float32()*2 - 1) * g.extent,
			rng.Float32() * g.height,
			(rng.Float32()*2 - 1) * g.extent,
		}
	default:
		r := g.extent * math32.Sqrt(rng.Float32())
		a := 2 * math32.Pi * rng.Float32()
		top := g.height * (1 - r/g.extent)
		return [3]float32{r * math32.Cos(a), top * rng.Float32(), r * math32.Sin(a)}
	}
}
