package grain

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/buffer"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/cogentcore/webgpu/wgpu"
)

// frameUniformsSize is the size of the FrameUniforms block in grain_common.wgsl.
const frameUniformsSize = 240

// pointSource is a view resolved to device buffers for one draw.
type pointSource struct {
	points   *wgpu.Buffer
	elements *wgpu.Buffer

	// count and offset are the element range, drawn as instances.
	count  uint32
	offset uint32

	frameCount  uint32
	frameOffset uint32
	sparse      bool
}

// resolveView turns a view into the buffers and ranges of a draw. A view with nothing to
// draw returns ok false and no error.
func resolveView(v splitter.View, pointFrame uint32) (src pointSource, ok bool, err error) {
	if v == nil {
		return pointSource{}, false, nil
	}
	data, err := v.Data()
	if err != nil {
		return pointSource{}, false, err
	}
	if data.PointCount() == 0 || v.Counter().Count == 0 {
		return pointSource{}, false, nil
	}

	points, ok := deviceHandle(data.Vertices())
	if !ok {
		return pointSource{}, false, fmt.Errorf("%s points: %w", v.Model(), ErrNotDeviceResident)
	}
	src = pointSource{
		points:     points,
		count:      data.PointCount(),
		offset:     data.PointOffset(),
		frameCount: max(data.FrameCount(), 1),
		sparse:     v.Sparse(),
	}
	if data.Elements() != nil {
		if src.elements, ok = deviceHandle(data.Elements()); !ok {
			return pointSource{}, false, fmt.Errorf("%s elements: %w", v.Model(), ErrNotDeviceResident)
		}
	}

	source := v.Source()
	src.frameOffset = (pointFrame%src.frameCount)*source.PointCount() + source.PointOffset()
	return src, true, nil
}

// elementBuffer returns the buffer bound as the element list. Without elements the point
// buffer stands in and usePointElements is false.
func (s pointSource) elementBuffer() *wgpu.Buffer {
	if s.elements != nil {
		return s.elements
	}
	return s.points
}

func deviceHandle(b buffer.Buffer) (*wgpu.Buffer, bool) {
	d, ok := b.(buffer.DeviceBuffer)
	if !ok || d.GPUBuffer() == nil {
		return nil, false
	}
	return d.GPUBuffer(), true
}

// uniformWriter appends little endian words.
type uniformWriter struct {
	buf []byte
}

func (w *uniformWriter) floats(v ...float32) {
	for _, f := range v {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, math.Float32bits(f))
	}
}

func (w *uniformWriter) uints(v ...uint32) {
	for _, u := range v {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, u)
	}
}

func (w *uniformWriter) bool(b bool) {
	if b {
		w.uints(1)
		return
	}
	w.uints(0)
}

// pad zero fills up to a multiple of align bytes.
func (w *uniformWriter) pad(align int) {
	for len(w.buf)%align != 0 {
		w.buf = append(w.buf, 0)
	}
}

// frameDraw holds the per draw values of the FrameUniforms block.
type frameDraw struct {
	src           pointSource
	prerenderStep uint32
	width, height int
}

// packFrameUniforms lays out the FrameUniforms block: the model, view model and projection
// matrices, the camera position in model space, then the point range and draw state.
func packFrameUniforms(f Frame, d frameDraw) []byte {
	var viewModel, inv [16]float32
	common.Mul4(viewModel[:], f.View[:], f.Model[:])
	if !common.Invert4(inv[:], viewModel[:]) {
		inv = common.IdentityMatrix()
	}

	w := &uniformWriter{buf: make([]byte, 0, frameUniformsSize)}
	w.floats(f.Model[:]...)
	w.floats(viewModel[:]...)
	w.floats(f.Projection[:]...)
	w.floats(inv[12], inv[13], inv[14], f.Time)
	w.uints(d.src.count, d.src.frameCount, d.src.frameOffset)
	w.bool(d.src.elements != nil)
	w.floats(float32(d.width), float32(d.height))
	w.uints(d.prerenderStep, 0)
	return w.buf
}
