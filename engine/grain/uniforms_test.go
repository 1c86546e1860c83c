package grain

import (
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackFrameUniformsLayout(t *testing.T) {
	f := testFrame(TargetGBuffer, testGBuffer(), nil)
	f.View[14] = -5
	f.Time = 2.5
	src := pointSource{count: 77, frameCount: 3, frameOffset: 2000, elements: &wgpu.Buffer{}}

	buf := packFrameUniforms(f, frameDraw{src: src, prerenderStep: 1, width: 640, height: 480})
	require.Len(t, buf, frameUniformsSize)

	// camera position in model space, then time
	assert.Equal(t, float32(0), f32At(buf, 192))
	assert.InDelta(t, 5, f32At(buf, 200), 1e-6)
	assert.Equal(t, float32(2.5), f32At(buf, 204))

	assert.Equal(t, uint32(77), u32At(buf, 208))
	assert.Equal(t, uint32(3), u32At(buf, 212))
	assert.Equal(t, uint32(2000), u32At(buf, 216))
	assert.Equal(t, uint32(1), u32At(buf, 220))
	assert.Equal(t, float32(640), f32At(buf, 224))
	assert.Equal(t, float32(480), f32At(buf, 228))
	assert.Equal(t, uint32(1), u32At(buf, 232))

	src.elements = nil
	buf = packFrameUniforms(f, frameDraw{src: src})
	assert.Equal(t, uint32(0), u32At(buf, 220))
}

func TestResolveViewFrameOffset(t *testing.T) {
	v := newTestView(splitter.RenderModelImpostor, 50, 10)

	src, ok, err := resolveView(v, 6)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(50), src.count)
	assert.Equal(t, uint32(10), src.offset)
	assert.Equal(t, uint32(4), src.frameCount)
	assert.Equal(t, uint32(2000), src.frameOffset)
	assert.NotNil(t, src.elements)
}

func TestResolveViewRequiresDeviceData(t *testing.T) {
	pc, err := pointcloud.NewPointCloud("host", []float32{0, 0, 0, 1, 1, 1})
	require.NoError(t, err)
	v := newTestView(splitter.RenderModelPoint, 2, 0)
	v.data = pc

	_, _, err = resolveView(v, 0)
	assert.ErrorIs(t, err, ErrNotDeviceResident)
}
