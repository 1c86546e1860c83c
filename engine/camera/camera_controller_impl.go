package camera

import (
	"sync"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/chewxy/math32"
)

// cameraControllerImpl is the single implementation of CameraController.
type cameraControllerImpl struct {
	mu *sync.Mutex

	// Camera position (computed from target + spherical coords)
	position [3]float32
	target   [3]float32

	radius    float32
	azimuth   float32 // around Y, 0 looks down -Z from +Z
	elevation float32 // from the horizontal plane

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	orbitSpeed       float32
	mouseSensitivity float32
	zoomSpeed        float32
	panSpeed         float32

	autoRotate float32

	drag     DragMode
	lastX    int32
	lastY    int32
	hasMouse bool
}

var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a new turntable controller with defaults sized for a unit
// scene. Call Camera.FitBounds to resize it to a loaded point cloud.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu: &sync.Mutex{},

		radius:    3,
		elevation: math32.Pi / 6,

		minRadius:    1e-3,
		maxRadius:    1e4,
		minElevation: -math32.Pi/2 + 0.01,
		maxElevation: math32.Pi/2 - 0.01,

		orbitSpeed:       0.03,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.1,
		panSpeed:         1,
	}

	for _, option := range options {
		option(cc)
	}

	cc.radius = common.Clamp(cc.radius, cc.minRadius, cc.maxRadius)
	cc.elevation = common.Clamp(cc.elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
	return cc
}

// updatePosition recomputes the camera position from spherical coordinates.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) updatePosition() {
	sinElev, cosElev := math32.Sincos(cc.elevation)
	sinAzim, cosAzim := math32.Sincos(cc.azimuth)

	cc.position[0] = cc.target[0] + cc.radius*cosElev*sinAzim
	cc.position[1] = cc.target[1] + cc.radius*sinElev
	cc.position[2] = cc.target[2] + cc.radius*cosElev*cosAzim
}

// localAxes returns the right and up vectors of the LookAt basis for a world up of +Y.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) localAxes() (right, up [3]float32) {
	sinElev, cosElev := math32.Sincos(cc.elevation)
	sinAzim, cosAzim := math32.Sincos(cc.azimuth)

	back := [3]float32{cosElev * sinAzim, sinElev, cosElev * cosAzim}
	right = [3]float32{cosAzim, 0, -sinAzim}
	up = [3]float32{
		back[1]*right[2] - back[2]*right[1],
		back[2]*right[0] - back[0]*right[2],
		back[0]*right[1] - back[1]*right[0],
	}
	return right, up
}

// translate moves both target and position. Caller must hold the mutex.
func (cc *cameraControllerImpl) translate(axis [3]float32, offset float32) {
	for i := range 3 {
		cc.target[i] += axis[i] * offset
		cc.position[i] += axis[i] * offset
	}
}

func (cc *cameraControllerImpl) orbit(dAzimuth, dElevation float32) {
	cc.azimuth = math32.Mod(cc.azimuth+dAzimuth, 2*math32.Pi)
	cc.elevation = common.Clamp(cc.elevation+dElevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Position() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.position
}

func (cc *cameraControllerImpl) Target() [3]float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.target
}

func (cc *cameraControllerImpl) SetTarget(x, y, z float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.target = [3]float32{x, y, z}
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = common.Clamp(cc.radius*math32.Exp(-delta*cc.zoomSpeed), cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) BeginDrag(mode DragMode, x, y int32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.drag = mode
	cc.lastX, cc.lastY = x, y
	cc.hasMouse = true
}

func (cc *cameraControllerImpl) DragTo(x, y int32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	dx := float32(x - cc.lastX)
	dy := float32(y - cc.lastY)
	moved := cc.hasMouse
	cc.lastX, cc.lastY = x, y
	cc.hasMouse = true
	if !moved {
		return
	}

	switch cc.drag {
	case DragOrbit:
		cc.orbit(-dx*cc.mouseSensitivity, dy*cc.mouseSensitivity)
	case DragPan:
		right, up := cc.localAxes()
		scale := cc.radius * cc.mouseSensitivity * cc.panSpeed
		cc.translate(right, -dx*scale)
		cc.translate(up, dy*scale)
	}
}

func (cc *cameraControllerImpl) EndDrag() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.drag = DragNone
}

func (cc *cameraControllerImpl) SetAutoRotate(speed float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.autoRotate = speed
}

func (cc *cameraControllerImpl) AutoRotate() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.autoRotate
}

func (cc *cameraControllerImpl) Advance(dt float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.autoRotate == 0 || cc.drag != DragNone {
		return
	}
	cc.orbit(cc.autoRotate*dt, 0)
}

// --- orbitCameraController implementation ---

func (cc *cameraControllerImpl) Orbit(dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.orbit(dAzimuth, dElevation)
}

func (cc *cameraControllerImpl) OrbitLeft() {
	cc.Orbit(-cc.OrbitSpeed(), 0)
}

func (cc *cameraControllerImpl) OrbitRight() {
	cc.Orbit(cc.OrbitSpeed(), 0)
}

func (cc *cameraControllerImpl) OrbitUp() {
	cc.Orbit(0, cc.OrbitSpeed())
}

func (cc *cameraControllerImpl) OrbitDown() {
	cc.Orbit(0, -cc.OrbitSpeed())
}

func (cc *cameraControllerImpl) Radius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.radius
}

func (cc *cameraControllerImpl) SetRadius(radius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.radius = common.Clamp(radius, cc.minRadius, cc.maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) SetRadiusBounds(minRadius, maxRadius float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if minRadius <= 0 || maxRadius < minRadius {
		return
	}
	cc.minRadius = minRadius
	cc.maxRadius = maxRadius
	cc.radius = common.Clamp(cc.radius, minRadius, maxRadius)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) MinRadius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.minRadius
}

func (cc *cameraControllerImpl) MaxRadius() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.maxRadius
}

func (cc *cameraControllerImpl) Azimuth() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.azimuth
}

func (cc *cameraControllerImpl) SetAzimuth(azimuth float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.azimuth = azimuth
	cc.updatePosition()
}

func (cc *cameraControllerImpl) Elevation() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.elevation
}

func (cc *cameraControllerImpl) SetElevation(elevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.elevation = common.Clamp(elevation, cc.minElevation, cc.maxElevation)
	cc.updatePosition()
}

func (cc *cameraControllerImpl) OrbitSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.orbitSpeed
}

func (cc *cameraControllerImpl) MouseSensitivity() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.mouseSensitivity
}

func (cc *cameraControllerImpl) ZoomSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.zoomSpeed
}

// --- planarCameraController implementation ---

func (cc *cameraControllerImpl) PanRight(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	right, _ := cc.localAxes()
	cc.translate(right, delta*cc.panSpeed*cc.radius)
}

func (cc *cameraControllerImpl) PanUp(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, up := cc.localAxes()
	cc.translate(up, delta*cc.panSpeed*cc.radius)
}

func (cc *cameraControllerImpl) PanSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.panSpeed
}
