package camera

import (
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/chewxy/math32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	// clipRatio is far/near, kept when FitBounds rescales the planes
	clipRatio float32

	viewMatrix           [16]float32
	projectionMatrix     [16]float32
	viewProjectionMatrix [16]float32
	frustum              common.Frustum

	controller CameraController
}

// Camera is the turntable camera the viewer renders grains from. It holds the perspective
// settings and recomputes view and projection matrices from its CameraController on Update.
// Grain clouds span a few centimeters to hundreds of meters, so the clipping planes follow the
// orbit radius once FitBounds has been called.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// Position returns the eye position in world space.
	//
	// Returns:
	//   - [3]float32: the eye position, or the origin without a controller
	Position() [3]float32

	// ViewMatrix returns the current 4x4 view matrix (column-major).
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix (column-major).
	ProjectionMatrix() [16]float32

	// Frustum returns the planes of the current view-projection matrix, for host side culling
	// and debugging of the occlusion pass.
	//
	// Returns:
	//   - common.Frustum: the frustum planes in world space
	Frustum() common.Frustum

	// Controller returns the attached CameraController, or nil.
	Controller() CameraController

	// Update reads the eye and target from the controller and recomputes the matrices.
	// Called once per frame before culling. Does nothing without a controller.
	Update()

	// FitBounds aims the controller at the center of the box, moves it back until the
	// enclosing sphere fills the view and scales the clipping planes to the new radius.
	//
	// Parameters:
	//   - bounds: the world space bounds of the point cloud
	FitBounds(bounds common.BBox)

	SetFov(fov float32)
	SetAspect(aspect float32)

	// SetClipPlanes sets both clipping plane distances.
	//
	// Parameters:
	//   - near: near plane distance, must be positive
	//   - far: far plane distance, must be greater than near
	SetClipPlanes(near, far float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:                   &sync.Mutex{},
		up:                   [3]float32{0, 1, 0},
		fov:                  45 * math32.Pi / 180,
		aspect:               1,
		near:                 0.01,
		far:                  100,
		clipRatio:            1e4,
		viewMatrix:           common.IdentityMatrix(),
		projectionMatrix:     common.IdentityMatrix(),
		viewProjectionMatrix: common.IdentityMatrix(),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Position() [3]float32 {
	c.mu.Lock()
	ctrl := c.controller
	c.mu.Unlock()
	if ctrl == nil {
		return [3]float32{}
	}
	return ctrl.Position()
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) Frustum() common.Frustum {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frustum
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

func (c *cameraImpl) FitBounds(bounds common.BBox) {
	if bounds.IsEmpty() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	radius := math32.Max(bounds.Radius(), 1e-4)
	distance := radius / math32.Sin(c.fov/2)

	if c.controller != nil {
		center := bounds.Center()
		c.controller.SetRadiusBounds(radius*0.05, distance*20)
		c.controller.SetTarget(center[0], center[1], center[2])
		c.controller.SetRadius(distance)
	}

	// near sits well inside the closest grain at the closest allowed zoom
	c.near = radius * 0.005
	c.far = c.near * c.clipRatio
	if c.far < distance+radius*2 {
		c.far = (distance + radius*2) * 20
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetClipPlanes(near, far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if near <= 0 || far <= near {
		return
	}
	c.near = near
	c.far = far
	c.clipRatio = far / near
	c.updateMatrices()
}

// updateMatrices recalculates the view, projection and view-projection matrices and the
// frustum. Without a controller the view matrix is left as is. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	if c.controller != nil {
		common.LookAt(c.viewMatrix[:], c.controller.Position(), c.controller.Target(), c.up)
	}
	common.Perspective(c.projectionMatrix[:], c.fov, c.aspect, c.near, c.far)
	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	c.frustum = common.ExtractFrustumFromMatrix(c.viewProjectionMatrix[:])
}
