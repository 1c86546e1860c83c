package pointcloud

import (
	"encoding/binary"
	"errors"
	"math"
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/chewxy/math32"
)

// Stride is the size of one point record in the vertex buffer: a vec4<f32> holding the
// position in xyz and a free w component.
const Stride = 16

// DefaultFPS is the playback rate of animated clouds.
const DefaultFPS float32 = 25

var (
	// ErrEmptyFrame is returned when a cloud is built with fewer positions than one frame needs.
	ErrEmptyFrame = errors.New("pointcloud: position count is not a multiple of the frame count")

	// ErrNotHostResident is returned when host side code is handed device resident point data.
	ErrNotHostResident = errors.New("pointcloud: point data is not host resident")
)

// Data is the read-only view every consumer of point data works through: the splitter,
// the culling pass and the renderers. Implementations never change shape after creation.
type Data interface {
	// PointCount returns the number of points drawn per frame.
	//
	// Returns:
	//   - uint32: the per-frame point count
	PointCount() uint32

	// FrameCount returns the number of animation frames stored back to back in Vertices.
	//
	// Returns:
	//   - uint32: the frame count, at least 1
	FrameCount() uint32

	// PointOffset returns the first point of the range to draw.
	//
	// Returns:
	//   - uint32: the base point offset
	PointOffset() uint32

	// Vertices returns the point records, Stride bytes each, FrameCount * PointCount of them.
	//
	// Returns:
	//   - buffer.Buffer: the vertex buffer
	Vertices() buffer.Buffer

	// Elements returns the optional element buffer indexing into one frame of Vertices.
	//
	// Returns:
	//   - buffer.Buffer: the element buffer, or nil when points are drawn in storage order
	Elements() buffer.Buffer
}

type pointCloud struct {
	mu *sync.Mutex

	label      string
	pointCount uint32
	frameCount uint32
	fps        float32

	positions []float32
	bounds    common.BBox
	vertices  buffer.HostBuffer
}

// PointCloud is an immutable, host resident point cloud. It is the Data provider used by
// the software pipeline and the source uploaded by Upload for the GPU pipeline.
type PointCloud interface {
	Data

	// Label returns the name the cloud was created with.
	Label() string

	// FPS returns the animation playback rate in frames per second.
	FPS() float32

	// FrameAt selects the animation frame shown at the given time.
	//
	// Parameters:
	//   - time: the scene time in seconds
	//
	// Returns:
	//   - uint32: the frame index in [0, FrameCount)
	FrameAt(time float32) uint32

	// Point returns the position of point i of the given frame.
	//
	// Parameters:
	//   - frame: the animation frame
	//   - i: the point index within the frame
	//
	// Returns:
	//   - [3]float32: the position in model space
	Point(frame, i uint32) [3]float32

	// Positions returns the positions of one frame packed as xyz triplets.
	// The slice shares memory with the cloud and must not be modified.
	//
	// Parameters:
	//   - frame: the animation frame
	//
	// Returns:
	//   - []float32: 3 * PointCount values
	Positions(frame uint32) []float32

	// Bounds returns the model space bounding box over every frame.
	Bounds() common.BBox

	// Release frees the vertex buffer.
	Release()
}

var _ PointCloud = &pointCloud{}

// NewPointCloud builds a point cloud from packed xyz positions. With more than one frame the
// positions of each frame follow each other.
//
// Parameters:
//   - label: the debug name of the cloud
//   - positions: 3 floats per point, frameCount * pointCount points
//   - options: variadic PointCloudBuilderOption functions
//
// Returns:
//   - PointCloud: the new cloud
//   - error: ErrEmptyFrame if the positions do not split evenly into frames
func NewPointCloud(label string, positions []float32, options ...PointCloudBuilderOption) (PointCloud, error) {
	pc := &pointCloud{
		mu:         &sync.Mutex{},
		label:      label,
		frameCount: 1,
		fps:        DefaultFPS,
		bounds:     common.EmptyBBox(),
	}
	for _, option := range options {
		option(pc)
	}
	pc.frameCount = max(pc.frameCount, 1)

	total := uint32(len(positions) / 3)
	if len(positions)%3 != 0 || total%pc.frameCount != 0 {
		return nil, ErrEmptyFrame
	}
	pc.pointCount = total / pc.frameCount
	pc.positions = positions

	records := make([]byte, 0, int(total)*Stride)
	for i := range int(total) {
		p := [3]float32{positions[3*i], positions[3*i+1], positions[3*i+2]}
		pc.bounds.Expand(p)
		for _, v := range p {
			records = binary.LittleEndian.AppendUint32(records, math.Float32bits(v))
		}
		records = binary.LittleEndian.AppendUint32(records, math.Float32bits(1))
	}
	pc.vertices = buffer.NewHostBuffer(label+".vertices",
		buffer.WithUsage(buffer.UsageVertex|buffer.UsageStorage),
		buffer.WithSize(uint64(len(records))),
		buffer.WithData(records),
	)
	return pc, nil
}

func (pc *pointCloud) PointCount() uint32 {
	return pc.pointCount
}

func (pc *pointCloud) FrameCount() uint32 {
	return pc.frameCount
}

func (pc *pointCloud) PointOffset() uint32 {
	return 0
}

func (pc *pointCloud) Vertices() buffer.Buffer {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.vertices == nil {
		return nil
	}
	return pc.vertices
}

func (pc *pointCloud) Elements() buffer.Buffer {
	return nil
}

func (pc *pointCloud) Label() string {
	return pc.label
}

func (pc *pointCloud) FPS() float32 {
	return pc.fps
}

func (pc *pointCloud) FrameAt(time float32) uint32 {
	if pc.frameCount <= 1 || time <= 0 {
		return 0
	}
	return uint32(math32.Floor(time*pc.fps)) % pc.frameCount
}

func (pc *pointCloud) Point(frame, i uint32) [3]float32 {
	j := 3 * (frame*pc.pointCount + i)
	return [3]float32{pc.positions[j], pc.positions[j+1], pc.positions[j+2]}
}

func (pc *pointCloud) Positions(frame uint32) []float32 {
	lo := 3 * frame * pc.pointCount
	return pc.positions[lo : lo+3*pc.pointCount]
}

func (pc *pointCloud) Bounds() common.BBox {
	return pc.bounds
}

func (pc *pointCloud) Release() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.vertices != nil {
		pc.vertices.Release()
		pc.vertices = nil
	}
}

// FrameRecords returns the vertex records of one frame of host resident data as 4 floats
// per point. The slice aliases the vertex buffer.
//
// Parameters:
//   - d: the point data, whose Vertices must be a buffer.HostBuffer
//   - frame: the animation frame, wrapped to the frame count
//
// Returns:
//   - []float32: PointCount * 4 floats
//   - error: ErrNotHostResident, or buffer.ErrOutOfRange if the buffer is short
func FrameRecords(d Data, frame uint32) ([]float32, error) {
	hb, ok := d.Vertices().(buffer.HostBuffer)
	if !ok {
		return nil, ErrNotHostResident
	}
	all := common.BytesToSlice[float32](hb.Bytes())
	n := uint64(d.PointCount()) * Stride / 4
	lo := uint64(frame%max(d.FrameCount(), 1)) * n
	if lo+n > uint64(len(all)) {
		return nil, buffer.ErrOutOfRange
	}
	return all[lo : lo+n], nil
}
