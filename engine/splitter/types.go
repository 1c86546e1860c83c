package splitter

import (
	"errors"
	"time"
)

// LocalSizeX is the workgroup width of every splitter kernel. The software backend
// processes points in groups of the same size so both backends scan identically.
const LocalSizeX = 128

// RestartIndex marks an empty slot of the sparse impostor element buffer.
const RestartIndex uint32 = 0xFFFFFFFF

var (
	// ErrStaleView is returned by View.Data after the splitter has started a newer frame.
	ErrStaleView = errors.New("splitter: view belongs to an earlier frame")

	// ErrRangeOverflow is returned when a computed element range does not fit the element
	// buffer. The offending render model draws nothing for the frame.
	ErrRangeOverflow = errors.New("splitter: element range exceeds buffer")

	// ErrDeviceLimit is returned when a dispatch cannot fit the device compute limits.
	ErrDeviceLimit = errors.New("splitter: dispatch exceeds device limits")

	// ErrIndexedInput is returned when the input point data already carries an element buffer.
	ErrIndexedInput = errors.New("splitter: input point data must be unindexed")
)

// RenderModel is the rendering strategy assigned to a point.
type RenderModel int

const (
	// RenderModelInstance draws the point as an instanced grain mesh.
	RenderModelInstance RenderModel = iota
	// RenderModelImpostor draws the point as a view-dependent sprite.
	RenderModelImpostor
	// RenderModelPoint draws the point with the far splatting renderer.
	RenderModelPoint
	// RenderModelNone culls the point.
	RenderModelNone
)

// Models lists the drawn render models in element buffer order.
var Models = [3]RenderModel{RenderModelInstance, RenderModelImpostor, RenderModelPoint}

func (m RenderModel) String() string {
	switch m {
	case RenderModelInstance:
		return "Instance"
	case RenderModelImpostor:
		return "Impostor"
	case RenderModelPoint:
		return "Point"
	case RenderModelNone:
		return "None"
	default:
		return "Unknown"
	}
}

// Strategy selects how per-model ranges are computed on the element buffer.
type Strategy int

const (
	// StrategyAtomicSum counts and places points with global atomic counters. The order
	// inside a range is unspecified.
	StrategyAtomicSum Strategy = iota
	// StrategyPrefixSum places points with a workgroup prefix scan. Ranges keep the
	// original point order.
	StrategyPrefixSum
	// StrategyRestartPrimitive compacts instance and point ranges like StrategyAtomicSum
	// and writes impostors into a sparse buffer of one slot per point, empty slots holding
	// RestartIndex.
	StrategyRestartPrimitive
)

func (s Strategy) String() string {
	switch s {
	case StrategyAtomicSum:
		return "AtomicSum"
	case StrategyPrefixSum:
		return "PrefixSum"
	case StrategyRestartPrimitive:
		return "RestartPrimitive"
	default:
		return "Unknown"
	}
}

// Caching selects whether classification results are reused between splitter steps.
type Caching int

const (
	// CachingForget classifies every point again in each step that needs its model.
	CachingForget Caching = iota
	// CachingCache stores the model of each point while counting and reads it back while
	// writing.
	CachingCache
	// CachingPrecompute classifies in a dedicated step that is skipped while its inputs
	// are unchanged.
	CachingPrecompute
)

func (c Caching) String() string {
	switch c {
	case CachingForget:
		return "Forget"
	case CachingCache:
		return "Cache"
	case CachingPrecompute:
		return "Precompute"
	default:
		return "Unknown"
	}
}

// BackendType identifies the compute backend a Splitter runs on.
type BackendType int

const (
	// BackendSoftware runs the splitter kernels on host buffers with a worker pool.
	BackendSoftware BackendType = iota
	// BackendWGPU runs the splitter kernels as WebGPU compute dispatches.
	BackendWGPU
)

// Counter is the element range of one render model.
type Counter struct {
	Count  uint32
	Offset uint32
}

// Stats describes the last PreRender.
type Stats struct {
	Counts     [3]uint32
	Culled     uint32
	Dispatches int
	// Precomputed is false when a CachingPrecompute frame reused the cached classification.
	Precomputed bool
	Elapsed     time.Duration
}
