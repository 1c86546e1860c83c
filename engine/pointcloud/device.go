package pointcloud

import (
	"fmt"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/cogentcore/webgpu/wgpu"
)

type deviceData struct {
	source   PointCloud
	vertices buffer.DeviceBuffer
}

var _ Data = &deviceData{}

// Upload copies the vertex records of a cloud into a device buffer usable as a vertex buffer
// and as read-only storage by the GPU splitter and renderers.
//
// Parameters:
//   - pc: the host cloud to upload
//   - device: the wgpu device
//   - queue: the wgpu queue
//
// Returns:
//   - Data: a view over the uploaded buffer sharing the shape of pc; it implements
//     Release, which frees the device copy only
//   - error: an error if the cloud was released or the allocation failed
func Upload(pc PointCloud, device *wgpu.Device, queue *wgpu.Queue) (Data, error) {
	src := pc.Vertices()
	if src == nil {
		return nil, fmt.Errorf("upload %s: %w", pc.Label(), buffer.ErrReleased)
	}
	records, err := src.Read(0, uint64(pc.FrameCount()*pc.PointCount())*Stride)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", pc.Label(), err)
	}
	vb, err := buffer.NewDeviceBuffer(device, queue, pc.Label()+".vertices.gpu",
		buffer.WithUsage(buffer.UsageVertex|buffer.UsageStorage),
		buffer.WithSize(uint64(len(records))),
		buffer.WithData(records),
	)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", pc.Label(), err)
	}
	return &deviceData{source: pc, vertices: vb}, nil
}

func (d *deviceData) PointCount() uint32 {
	return d.source.PointCount()
}

func (d *deviceData) FrameCount() uint32 {
	return d.source.FrameCount()
}

func (d *deviceData) PointOffset() uint32 {
	return d.source.PointOffset()
}

func (d *deviceData) Vertices() buffer.Buffer {
	return d.vertices
}

func (d *deviceData) Elements() buffer.Buffer {
	return nil
}

// Release frees the device copy. The source cloud is left alone.
func (d *deviceData) Release() {
	d.vertices.Release()
}
