package culling

import (
	"context"
	"errors"

	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrUnavailable is returned when the pass cannot render this frame, for example because
	// its shader failed to compile. Callers continue without occlusion culling.
	ErrUnavailable = errors.New("culling: occluder map unavailable")
)

// OccluderMap is the read-only depth proxy produced by a Pass. It stays valid until the
// next Render of the pass that produced it.
type OccluderMap interface {
	// Width returns the map width in texels.
	Width() int

	// Height returns the map height in texels.
	Height() int

	// Generation changes every time the contents of the map change.
	//
	// Returns:
	//   - uint64: the content generation
	Generation() uint64

	// Occludes reports whether a point, given in clip space, lies behind the occluders
	// rasterized at its texel. Points behind the camera or outside the map are never
	// occluded. Device resident maps cannot be sampled on the host and always return false.
	//
	// Parameters:
	//   - clip: the homogeneous clip space position of the point
	//
	// Returns:
	//   - bool: true if the point is hidden
	Occludes(clip [4]float32) bool

	// TextureView returns the depth texture for device side sampling, or nil for host maps.
	TextureView() *wgpu.TextureView
}

// Input is everything a Pass needs to rasterize one frame of occluders.
type Input struct {
	Points pointcloud.Data
	Frame  uint32

	Model, View, Projection [16]float32

	// GrainRadius is the world space radius of one grain.
	GrainRadius float32

	// SpriteScale shrinks the occluder sprite relative to the grain so that only the core
	// of a grain hides what is behind it.
	SpriteScale float32

	// ZPrepass rasterizes square depth-only sprites. Without it sprites are discs, which
	// needs fragment discard on the GPU.
	ZPrepass bool
}

// Pass renders the occluder map of a frame. It must complete before the splitter
// classifies the same frame.
type Pass interface {
	// Render rasterizes the occluders of one frame.
	//
	// Parameters:
	//   - ctx: cancels the host rasterization between chunks
	//   - in: the points and camera of the frame
	//
	// Returns:
	//   - OccluderMap: the map, owned by the pass
	//   - error: ErrUnavailable or an input error; the caller then culls without occlusion
	Render(ctx context.Context, in Input) (OccluderMap, error)

	// Resize adapts the map to a new viewport size.
	//
	// Parameters:
	//   - width: the viewport width in pixels
	//   - height: the viewport height in pixels
	Resize(width, height int)

	// Release frees the map and every resource of the pass.
	Release()
}
