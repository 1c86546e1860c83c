package splitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/grain-go/engine/culling"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
)

// FrameInput is the camera and occlusion state a frame is split with.
type FrameInput struct {
	Model, View, Projection [16]float32

	// Frame is the animation frame to classify, wrapped to the frame count of the source.
	Frame uint32

	// Occluder is the occluder map rendered for this frame, or nil to cull without occlusion.
	Occluder culling.OccluderMap
}

// classificationKey is every input the classification of a frame depends on.
type classificationKey struct {
	model, view, projection [16]float32
	frame                   uint32
	props                   Properties
	occluder                culling.OccluderMap
	occluderGeneration      uint64
}

type splitter struct {
	mu *sync.Mutex

	points      pointcloud.Data
	props       Properties
	backendType BackendType
	backend     splitterBackend

	pool     worker.DynamicWorkerPool
	ownsPool bool
	workers  int
	renderer renderer.Renderer
	compiler shader.Compiler

	frame        atomic.Uint64
	counters     [3]Counter
	views        [3]*view
	stats        Stats
	fingerprint  classificationKey
	precomputed  bool
	warnedLimits bool
}

// Splitter partitions the points of a cloud by render model each frame and exposes one
// View per model to the renderers.
type Splitter interface {
	// PreRender classifies every point of the frame and rebuilds the element ranges. Views
	// of earlier frames become stale as soon as it starts. On error the ranges are empty,
	// except for ErrRangeOverflow which only empties the offending models.
	//
	// Parameters:
	//   - ctx: cancels the frame between steps
	//   - in: the camera and occlusion state
	//
	// Returns:
	//   - error: an error if the frame could not be split
	PreRender(ctx context.Context, in FrameInput) error

	// View returns the view of a render model for the current frame.
	//
	// Parameters:
	//   - model: Instance, Impostor or Point
	//
	// Returns:
	//   - View: the view, or nil for RenderModelNone
	View(model RenderModel) View

	// Counters returns the element ranges of the current frame in Models order.
	Counters() [3]Counter

	// Stats returns the statistics of the last PreRender.
	Stats() Stats

	// Frame returns the current frame token. It increases at every PreRender.
	Frame() uint64

	// Points returns the source point data.
	Points() pointcloud.Data

	// Properties returns the current configuration.
	Properties() Properties

	// SetProperties replaces the configuration. It applies from the next PreRender.
	SetProperties(p Properties)

	// Release frees the element buffers and every backend resource.
	Release()
}

var _ Splitter = &splitter{}
var _ shader.Reloader = &splitter{}

// NewSplitter creates a Splitter over unindexed point data. The software backend reads
// the points from host memory; BackendWGPU needs WithRenderer, WithCompiler and device
// resident points.
//
// Parameters:
//   - points: the point data to split
//   - options: variadic SplitterBuilderOption functions
//
// Returns:
//   - Splitter: the splitter
//   - error: an error if the points or the backend configuration are invalid
func NewSplitter(points pointcloud.Data, options ...SplitterBuilderOption) (Splitter, error) {
	if points == nil {
		return nil, errors.New("splitter: nil point data")
	}
	if points.Elements() != nil {
		return nil, ErrIndexedInput
	}
	s := &splitter{
		mu:      &sync.Mutex{},
		points:  points,
		props:   DefaultProperties(),
		workers: 4,
	}
	for _, opt := range options {
		opt(s)
	}

	switch s.backendType {
	case BackendSoftware:
		if s.pool == nil && s.workers > 1 {
			s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
			s.ownsPool = true
		}
		s.backend = newSoftwareSplitterBackend(points, s.pool)
	case BackendWGPU:
		if s.renderer == nil || s.compiler == nil {
			return nil, errors.New("splitter: the wgpu backend needs a renderer and a shader compiler")
		}
		b, err := newWGPUSplitterBackend(s.renderer, s.compiler, points)
		if err != nil {
			return nil, fmt.Errorf("splitter: %w", err)
		}
		s.backend = b
	default:
		return nil, fmt.Errorf("splitter: unknown backend type %d", s.backendType)
	}

	s.publish(0)
	return s, nil
}

func (s *splitter) PreRender(ctx context.Context, in FrameInput) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := s.frame.Add(1)
	props := s.props
	s.stats = Stats{}
	s.counters = [3]Counter{}

	if props.InstanceLimit >= props.ImpostorLimit && !s.warnedLimits {
		log.Printf("[Splitter] instanceLimit %.3f >= impostorLimit %.3f, no point is drawn as an impostor",
			props.InstanceLimit, props.ImpostorLimit)
		s.warnedLimits = true
	}

	n := s.points.PointCount()
	if n == 0 {
		s.publish(frame)
		return nil
	}
	if err := ctx.Err(); err != nil {
		s.publish(frame)
		return err
	}

	key := classificationKey{
		model:      in.Model,
		view:       in.View,
		projection: in.Projection,
		frame:      in.Frame % max(s.points.FrameCount(), 1),
		props:      props,
	}
	if props.EnableOcclusionCulling && in.Occluder != nil {
		key.occluder = in.Occluder
		key.occluderGeneration = in.Occluder.Generation()
	}
	caching := props.Caching()
	precompute := caching == CachingPrecompute && (!s.precomputed || key != s.fingerprint)

	res, err := s.backend.Run(ctx, splitterJob{
		props:      props,
		input:      in,
		classifier: newClassifier(props, in),
		precompute: precompute,
	})
	if err != nil {
		s.precomputed = false
		s.publish(frame)
		return fmt.Errorf("splitter: %w", err)
	}
	s.precomputed = caching == CachingPrecompute
	s.fingerprint = key

	counters, rangeErr := checkRanges(res.counters, n)
	s.counters = counters
	s.stats = Stats{
		Dispatches:  res.dispatches,
		Precomputed: precompute,
		Elapsed:     time.Since(start),
	}
	var drawn uint32
	for i := range Models {
		s.stats.Counts[i] = counters[i].Count
		drawn += counters[i].Count
	}
	if drawn <= n {
		s.stats.Culled = n - drawn
	}
	s.publish(frame)
	return rangeErr
}

// checkRanges zeroes every range that does not fit n elements.
func checkRanges(counters [3]Counter, n uint32) ([3]Counter, error) {
	var errs []error
	for i, m := range Models {
		c := counters[i]
		end := uint64(c.Offset) + uint64(c.Count)
		if end > uint64(n) {
			log.Printf("[Splitter] %s range [%d, %d) exceeds the %d element buffer, skipping it this frame", m, c.Offset, end, n)
			errs = append(errs, fmt.Errorf("%s: %w", m, ErrRangeOverflow))
			counters[i] = Counter{}
		}
	}
	return counters, errors.Join(errs...)
}

// publish replaces the views with ones bound to frame.
func (s *splitter) publish(frame uint64) {
	sparse := s.props.CullingStrategy() == StrategyRestartPrimitive && s.backend.SparseElements() != nil
	for i, m := range Models {
		v := &view{
			owner:    s,
			frame:    frame,
			model:    m,
			counter:  s.counters[i],
			source:   s.points,
			elements: s.backend.Elements(),
		}
		if m == RenderModelImpostor && sparse {
			v.sparse = true
			v.elements = s.backend.SparseElements()
		}
		s.views[i] = v
	}
}

func (s *splitter) View(model RenderModel) View {
	if model < RenderModelInstance || model >= RenderModelNone {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.views[model]
}

func (s *splitter) Counters() [3]Counter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

func (s *splitter) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *splitter) Frame() uint64 {
	return s.frame.Load()
}

func (s *splitter) Points() pointcloud.Data {
	return s.points
}

func (s *splitter) Properties() Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.props
}

func (s *splitter) SetProperties(p Properties) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.InstanceLimit < p.ImpostorLimit {
		s.warnedLimits = false
	}
	s.props = p
}

// Reload drops the compiled kernels of the wgpu backend.
func (s *splitter) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.backend.(shader.Reloader); ok {
		r.Reload()
	}
}

func (s *splitter) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend.Release()
	if s.ownsPool {
		s.pool.Stop()
		s.pool, s.ownsPool = nil, false
	}
}
