package splitter

import (
	"context"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
)

// splitterJob is one frame of work for a backend.
type splitterJob struct {
	props      Properties
	input      FrameInput
	classifier classifier

	// precompute runs the PRECOMPUTE step. It is only set in CachingPrecompute mode when
	// the cached classification is missing or stale.
	precompute bool
}

type splitterResult struct {
	counters   [3]Counter
	dispatches int
}

// splitterBackend runs the splitter steps of one frame and owns the element buffers.
type splitterBackend interface {
	// Run executes the steps of one frame over every point of the source.
	//
	// Parameters:
	//   - ctx: cancels the frame between steps
	//   - job: the frame to split
	//
	// Returns:
	//   - splitterResult: the per model ranges and the number of steps run
	//   - error: an error if a step could not run
	Run(ctx context.Context, job splitterJob) (splitterResult, error)

	// Elements returns the compacted element buffer, PointCount entries long.
	Elements() buffer.Buffer

	// SparseElements returns the impostor buffer of StrategyRestartPrimitive, or nil
	// before that strategy has run.
	SparseElements() buffer.Buffer

	Release()
}
