package camera

import (
	"testing"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-4

func distance(a, b [3]float32) float32 {
	return common.Length3(a[0]-b[0], a[1]-b[1], a[2]-b[2])
}

func TestControllerDefaults(t *testing.T) {
	cc := NewCameraController()
	pos := cc.Position()
	assert.InDelta(t, 0, pos[0], tol)
	assert.InDelta(t, 1.5, pos[1], tol)
	assert.InDelta(t, 3*math32.Cos(math32.Pi/6), pos[2], tol)
	assert.InDelta(t, 3, distance(pos, cc.Target()), tol)
}

func TestControllerZoomIsExponential(t *testing.T) {
	cc := NewCameraController(WithRadius(2))
	cc.Zoom(3)
	assert.Less(t, cc.Radius(), float32(2))
	cc.Zoom(-3)
	assert.InDelta(t, 2, cc.Radius(), tol)

	cc.SetRadiusBounds(1, 4)
	cc.Zoom(-100)
	assert.Equal(t, float32(4), cc.Radius())
	cc.Zoom(100)
	assert.Equal(t, float32(1), cc.Radius())
}

func TestControllerElevationClamped(t *testing.T) {
	cc := NewCameraController(WithElevationBounds(0, 1))
	cc.Orbit(0, 5)
	assert.Equal(t, float32(1), cc.Elevation())
	cc.SetElevation(-2)
	assert.Equal(t, float32(0), cc.Elevation())
	assert.InDelta(t, cc.Target()[1], cc.Position()[1], tol)
}

func TestControllerDragOrbitAndPan(t *testing.T) {
	cc := NewCameraController(WithSpeeds(0, 0.01, 0))

	// the first move after a drag starts is relative to the press position
	cc.BeginDrag(DragOrbit, 10, 10)
	cc.DragTo(60, 10)
	assert.InDelta(t, -0.5, cc.Azimuth(), tol)
	cc.EndDrag()
	cc.DragTo(500, 500)
	assert.InDelta(t, -0.5, cc.Azimuth(), tol)

	before := cc.Position()
	offset := [3]float32{before[0] - cc.Target()[0], before[1] - cc.Target()[1], before[2] - cc.Target()[2]}
	cc.BeginDrag(DragPan, 0, 0)
	cc.DragTo(20, -30)
	cc.EndDrag()

	after := cc.Position()
	target := cc.Target()
	assert.NotEqual(t, [3]float32{}, target)
	for i := range 3 {
		assert.InDelta(t, offset[i], after[i]-target[i], tol)
	}
}

func TestControllerPanMovesAlongViewPlane(t *testing.T) {
	cc := NewCameraController(WithAngles(0, 0), WithRadius(2))
	cc.PanRight(0.5)
	target := cc.Target()
	assert.InDeltaSlice(t, []float32{1, 0, 0}, target[:], tol)
	cc.PanUp(0.5)
	target = cc.Target()
	assert.InDeltaSlice(t, []float32{1, 1, 0}, target[:], tol)
	assert.InDelta(t, 2, distance(cc.Position(), cc.Target()), tol)
}

func TestControllerAutoRotate(t *testing.T) {
	cc := NewCameraController(WithAutoRotate(0.5))
	cc.Advance(2)
	assert.InDelta(t, 1, cc.Azimuth(), tol)

	cc.BeginDrag(DragOrbit, 0, 0)
	cc.Advance(2)
	assert.InDelta(t, 1, cc.Azimuth(), tol)
	cc.EndDrag()

	cc.SetAutoRotate(0)
	cc.Advance(2)
	assert.InDelta(t, 1, cc.Azimuth(), tol)
}

func TestCameraViewLooksAtTarget(t *testing.T) {
	cc := NewCameraController(WithTarget([3]float32{1, 2, 3}), WithRadius(5))
	cam := NewCamera(WithController(cc), WithAspect(16.0/9))

	view := cam.ViewMatrix()
	p := common.TransformPoint(view[:], cc.Target())
	assert.InDelta(t, 0, p[0], tol)
	assert.InDelta(t, 0, p[1], tol)
	assert.InDelta(t, -5, p[2], tol)

	assert.Equal(t, cc.Position(), cam.Position())
	f := cam.Frustum()
	assert.True(t, f.ContainsPoint(cc.Target()))
	assert.False(t, f.ContainsPoint(cam.Position()))
}

func TestCameraUpdateFollowsController(t *testing.T) {
	cc := NewCameraController()
	cam := NewCamera(WithController(cc))
	before := cam.ViewMatrix()

	cc.Orbit(1, 0)
	assert.Equal(t, before, cam.ViewMatrix())
	cam.Update()
	assert.NotEqual(t, before, cam.ViewMatrix())
}

func TestCameraFitBounds(t *testing.T) {
	cc := NewCameraController()
	cam := NewCamera(WithController(cc))

	// a dune of 200 m and a handful of grains of 1 mm
	for _, size := range []float32{200, 0.001} {
		b := common.BBox{Min: [3]float32{-size, 0, -size}, Max: [3]float32{size, size, size}}
		cam.FitBounds(b)

		require.Equal(t, b.Center(), cc.Target())
		assert.Greater(t, cc.Radius(), b.Radius())
		assert.Less(t, cam.Near(), b.Radius())
		assert.Greater(t, cam.Far(), cc.Radius()+b.Radius())
		assert.Less(t, cc.MinRadius(), b.Radius())

		f := cam.Frustum()
		assert.True(t, f.ContainsSphere(b.Center(), b.Radius()*0.5))
	}
}

func TestCameraFitBoundsIgnoresEmpty(t *testing.T) {
	cc := NewCameraController()
	cam := NewCamera(WithController(cc))
	cam.FitBounds(common.EmptyBBox())
	assert.Equal(t, float32(3), cc.Radius())
}

func TestCameraRejectsInvalidPlanes(t *testing.T) {
	cam := NewCamera(WithClipPlanes(0.1, 10))
	cam.SetClipPlanes(1, 0.5)
	cam.SetAspect(0)
	assert.Equal(t, float32(0.1), cam.Near())
	assert.Equal(t, float32(10), cam.Far())
	assert.Equal(t, float32(1), cam.Aspect())
}
