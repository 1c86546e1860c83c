package splitter

import (
	"fmt"

	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
)

// View is the per render model point data a Splitter exposes to the renderers. A View is
// tied to the frame that produced it and stops resolving once the next PreRender starts.
type View interface {
	// Model returns the render model the view selects.
	Model() RenderModel

	// Frame returns the splitter frame the view was produced in.
	Frame() uint64

	// Sparse reports whether the view draws one slot per point through a sparse element
	// buffer holding RestartIndex in unused slots.
	Sparse() bool

	// Counter returns the element range of the view.
	Counter() Counter

	// Source returns the unsplit point data. Its PointCount is the stride between frames.
	Source() pointcloud.Data

	// Data returns the point data to draw: the source vertices, the splitter's element
	// buffer and the element range in PointOffset and PointCount. Element values index a
	// single frame of the source.
	//
	// Returns:
	//   - pointcloud.Data: the drawable data
	//   - error: ErrStaleView if the splitter has started another frame
	Data() (pointcloud.Data, error)
}

type view struct {
	owner    *splitter
	frame    uint64
	model    RenderModel
	counter  Counter
	sparse   bool
	source   pointcloud.Data
	elements buffer.Buffer
}

var _ View = &view{}

func (v *view) Model() RenderModel {
	return v.model
}

func (v *view) Frame() uint64 {
	return v.frame
}

func (v *view) Sparse() bool {
	return v.sparse
}

func (v *view) Counter() Counter {
	return v.counter
}

func (v *view) Source() pointcloud.Data {
	return v.source
}

func (v *view) Data() (pointcloud.Data, error) {
	if cur := v.owner.Frame(); cur != v.frame {
		return nil, fmt.Errorf("%s view of frame %d, current %d: %w", v.model, v.frame, cur, ErrStaleView)
	}
	d := &viewData{
		source:   v.source,
		elements: v.elements,
		count:    v.counter.Count,
		offset:   v.counter.Offset,
	}
	if v.sparse {
		d.count, d.offset = v.source.PointCount(), 0
	}
	return d, nil
}

// viewData is the pointcloud.Data snapshot handed out by view.Data.
type viewData struct {
	source   pointcloud.Data
	elements buffer.Buffer
	count    uint32
	offset   uint32
}

var _ pointcloud.Data = &viewData{}

func (d *viewData) PointCount() uint32 {
	return d.count
}

func (d *viewData) FrameCount() uint32 {
	return d.source.FrameCount()
}

func (d *viewData) PointOffset() uint32 {
	return d.offset
}

func (d *viewData) Vertices() buffer.Buffer {
	return d.source.Vertices()
}

func (d *viewData) Elements() buffer.Buffer {
	return d.elements
}
