package culling

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/pointcloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// depthProjection keeps x, y and z and puts the view distance -z in w.
func depthProjection() [16]float32 {
	p := common.IdentityMatrix()
	p[11], p[15] = -1, 0
	return p
}

func newInput(t *testing.T, positions []float32) Input {
	t.Helper()
	pc, err := pointcloud.NewPointCloud("occluders", positions)
	require.NoError(t, err)
	return Input{
		Points:      pc,
		Model:       common.IdentityMatrix(),
		View:        common.IdentityMatrix(),
		Projection:  depthProjection(),
		GrainRadius: 0.01,
		SpriteScale: 0.2,
		ZPrepass:    true,
	}
}

func TestSoftwarePassOccludesPointsBehind(t *testing.T) {
	pass := NewSoftwarePass(64, 64, WithWorkers(1))
	defer pass.Release()

	m, err := pass.Render(context.Background(), newInput(t, []float32{0, 0, -1}))
	require.NoError(t, err)
	assert.Equal(t, 16, m.Width())
	assert.Equal(t, 16, m.Height())
	assert.Nil(t, m.TextureView())

	assert.False(t, m.Occludes([4]float32{0, 0, -1, 1}), "a point never hides itself")
	assert.False(t, m.Occludes([4]float32{0, 0, -0.5, 0.5}), "points in front stay visible")
	assert.True(t, m.Occludes([4]float32{0, 0, -2, 2}))
	assert.False(t, m.Occludes([4]float32{1.8, 0, -2, 2}), "other texels are empty")
	assert.False(t, m.Occludes([4]float32{0, 0, 1, -1}), "behind the camera")
	assert.False(t, m.Occludes([4]float32{4, 0, -2, 2}), "outside the map")
}

func TestSoftwarePassBiasKeepsNeighboursVisible(t *testing.T) {
	pass := NewSoftwarePass(64, 64, WithWorkers(1), WithDepthBias(0.5))
	defer pass.Release()

	m, err := pass.Render(context.Background(), newInput(t, []float32{0, 0, -1}))
	require.NoError(t, err)
	assert.False(t, m.Occludes([4]float32{0, 0, -1.4, 1.4}))
	assert.True(t, m.Occludes([4]float32{0, 0, -1.6, 1.6}))
}

func TestSoftwarePassSpriteShapes(t *testing.T) {
	// a 36 pixel viewport gives a 9 texel map; radius 1 * scale 0.5 covers 2.25 texels
	// around the center texel 4
	in := newInput(t, []float32{0, 0, -1})
	in.GrainRadius, in.SpriteScale = 1, 0.5

	// center of texel (2, 2), three units away
	w := float32(3)
	corner := [4]float32{-4.0 / 9 * w, 4.0 / 9 * w, -w, w}

	square := NewSoftwarePass(36, 36, WithWorkers(1), WithDepthBias(0.1))
	defer square.Release()
	m, err := square.Render(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, m.Occludes(corner), "square sprites cover the corner texel")

	in.ZPrepass = false
	disc := NewSoftwarePass(36, 36, WithWorkers(1), WithDepthBias(0.1))
	defer disc.Release()
	m, err = disc.Render(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, m.Occludes(corner), "disc sprites leave the corner texel empty")
	assert.True(t, m.Occludes([4]float32{0, 0, -w, w}))
}

func TestSoftwarePassGeneration(t *testing.T) {
	pass := NewSoftwarePass(64, 64, WithWorkers(2))
	defer pass.Release()
	in := newInput(t, []float32{0, 0, -1, 0.5, 0.5, -2})

	m, err := pass.Render(context.Background(), in)
	require.NoError(t, err)
	g := m.Generation()

	m, err = pass.Render(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, g, m.Generation(), "unchanged input keeps the map")

	in.View[12] = 0.25
	m, err = pass.Render(context.Background(), in)
	require.NoError(t, err)
	assert.Greater(t, m.Generation(), g)

	g = m.Generation()
	pass.Resize(128, 64)
	m, err = pass.Render(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 32, m.Width())
	assert.Greater(t, m.Generation(), g)
}

func TestSoftwarePassParallelMatchesInline(t *testing.T) {
	gen := pointcloud.NewGenerator(20000, pointcloud.WithSeed(7), pointcloud.WithWorkers(1))
	pc, err := gen.Generate("heap")
	require.NoError(t, err)

	var view, proj [16]float32
	common.LookAt(view[:], [3]float32{0, 1.5, 3}, [3]float32{0, 0.2, 0}, [3]float32{0, 1, 0})
	common.Perspective(proj[:], 0.8, 1, 0.01, 100)
	in := Input{Points: pc, Model: common.IdentityMatrix(), View: view, Projection: proj, GrainRadius: 0.007, SpriteScale: 0.2}

	inline := NewSoftwarePass(256, 256, WithWorkers(1))
	defer inline.Release()
	parallel := NewSoftwarePass(256, 256, WithWorkers(4))
	defer parallel.Release()

	a, err := inline.Render(context.Background(), in)
	require.NoError(t, err)
	b, err := parallel.Render(context.Background(), in)
	require.NoError(t, err)
	am, bm := a.(*softwareOccluderMap), b.(*softwareOccluderMap)
	for y := range am.Height() {
		for x := range am.Width() {
			require.Equal(t, am.Depth(x, y), bm.Depth(x, y))
		}
	}
}

func TestSoftwarePassErrors(t *testing.T) {
	pass := NewSoftwarePass(64, 64, WithWorkers(1))
	defer pass.Release()

	_, err := pass.Render(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrUnavailable)

	in := newInput(t, []float32{0, 0, -1})
	in.Points.(pointcloud.PointCloud).Release()
	_, err = pass.Render(context.Background(), in)
	assert.ErrorIs(t, err, pointcloud.ErrNotHostResident)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pass.Render(ctx, newInput(t, []float32{0, 0, -1}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPackOcclusionUniforms(t *testing.T) {
	pc, err := pointcloud.NewPointCloud("anim", make([]float32, 3*6), pointcloud.WithFrameCount(3))
	require.NoError(t, err)
	in := Input{
		Points:      pc,
		Frame:       4,
		Model:       common.IdentityMatrix(),
		View:        common.IdentityMatrix(),
		Projection:  common.IdentityMatrix(),
		GrainRadius: 0.5,
		SpriteScale: 0.5,
	}
	buf := packOcclusionUniforms(in)
	require.Len(t, buf, 80)
	words := common.BytesToSlice[float32](buf)
	assert.Equal(t, float32(1), words[0])
	assert.Equal(t, float32(0.25), words[16])
	assert.Equal(t, uint32(2), common.BytesToSlice[uint32](buf)[18], "frame 4 wraps to frame 1 of 2 points")
}
