package camera

// DragMode selects what a mouse drag does to the controller.
type DragMode int

const (
	// DragNone ignores mouse movement.
	DragNone DragMode = iota
	// DragOrbit turns the camera around the target.
	DragOrbit
	// DragPan slides the target and the camera along the view plane.
	DragPan
)

// CameraController defines the union interface for camera control systems.
// Controllers own positional state (position, target). Camera reads from controller
// and computes view/projection matrices. Embeds both orbitCameraController and
// planarCameraController so orbit, pan and mouse drags all act on one turntable state.
type CameraController interface {
	orbitCameraController
	planarCameraController

	// Position returns the camera's world-space position.
	Position() [3]float32

	// Target returns the look-at point.
	Target() [3]float32

	// SetTarget sets the look-at/pivot point and recomputes position from spherical coordinates.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetTarget(x, y, z float32)

	// Zoom scales the orbit radius. Zooming is exponential so one wheel step feels the same
	// on a single grain and on a whole dune. Positive delta zooms in.
	//
	// Parameters:
	//   - delta: wheel steps, scaled by ZoomSpeed
	Zoom(delta float32)

	// BeginDrag starts a mouse drag at the given cursor position.
	//
	// Parameters:
	//   - mode: what the drag controls
	//   - x, y: cursor position in pixels
	BeginDrag(mode DragMode, x, y int32)

	// DragTo moves an active drag to the given cursor position. Without an active drag
	// it only records the position.
	//
	// Parameters:
	//   - x, y: cursor position in pixels
	DragTo(x, y int32)

	// EndDrag stops the active drag.
	EndDrag()

	// SetAutoRotate sets the turntable speed in radians per second, 0 to stop.
	SetAutoRotate(speed float32)

	// AutoRotate returns the turntable speed in radians per second.
	AutoRotate() float32

	// Advance applies the turntable rotation for the elapsed time.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Advance(dt float32)
}

// orbitCameraController defines orbit-specific control methods.
// Provides turntable controls using spherical coordinates (radius, azimuth, elevation)
// relative to the target/pivot point.
type orbitCameraController interface {
	// Orbit rotates the camera around the target, clamping the elevation.
	//
	// Parameters:
	//   - dAzimuth: horizontal angle change in radians
	//   - dElevation: vertical angle change in radians
	Orbit(dAzimuth, dElevation float32)

	// OrbitLeft rotates the camera left around the target by one orbit speed step.
	OrbitLeft()

	// OrbitRight rotates the camera right around the target by one orbit speed step.
	OrbitRight()

	// OrbitUp tilts the camera upward by one orbit speed step, clamped to max elevation.
	OrbitUp()

	// OrbitDown tilts the camera downward by one orbit speed step, clamped to min elevation.
	OrbitDown()

	// Radius returns the current orbit radius (distance from target).
	Radius() float32

	// SetRadius sets the orbit radius directly, clamped to min/max bounds.
	//
	// Parameters:
	//   - radius: new distance from target
	SetRadius(radius float32)

	// SetRadiusBounds changes the allowed orbit radius range and clamps the current radius.
	//
	// Parameters:
	//   - minRadius: minimum zoom distance
	//   - maxRadius: maximum zoom distance
	SetRadiusBounds(minRadius, maxRadius float32)

	MinRadius() float32
	MaxRadius() float32

	// Azimuth returns the current horizontal angle around the Y axis in radians.
	Azimuth() float32

	// SetAzimuth sets the horizontal angle directly and recomputes position.
	SetAzimuth(azimuth float32)

	// Elevation returns the current vertical angle from the horizontal plane in radians.
	Elevation() float32

	// SetElevation sets the vertical angle directly, clamped to min/max bounds.
	SetElevation(elevation float32)

	OrbitSpeed() float32
	MouseSensitivity() float32
	ZoomSpeed() float32
}

// planarCameraController defines planar translation control methods.
// Panning shifts both position and target by the same offset, preserving the orbit
// relationship. Offsets are scaled by the orbit radius.
type planarCameraController interface {
	// PanRight translates the camera along its local right axis.
	// Positive delta moves right, negative moves left.
	//
	// Parameters:
	//   - delta: pan amount in orbit radii, scaled by PanSpeed
	PanRight(delta float32)

	// PanUp translates the camera along its local up axis.
	// Positive delta moves up, negative moves down.
	//
	// Parameters:
	//   - delta: pan amount in orbit radii, scaled by PanSpeed
	PanUp(delta float32)

	PanSpeed() float32
}
