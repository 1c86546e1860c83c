package camera

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithRadius sets the initial orbit radius (distance from target).
//
// Parameters:
//   - radius: distance from the orbit target
//
// Returns:
//   - CameraControllerOption: functional option to set the radius
func WithRadius(radius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.radius = radius
	}
}

// WithAngles sets the initial turntable angles.
//
// Parameters:
//   - azimuth: horizontal angle in radians, 0 looks from +Z
//   - elevation: vertical angle in radians, 0 is horizontal
//
// Returns:
//   - CameraControllerOption: functional option to set both angles
func WithAngles(azimuth, elevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.azimuth = azimuth
		cc.elevation = elevation
	}
}

// WithTarget sets the look-at/pivot point.
func WithTarget(target [3]float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.target = target
	}
}

// WithRadiusBounds sets the minimum and maximum orbit radius.
//
// Parameters:
//   - minRadius: minimum zoom distance
//   - maxRadius: maximum zoom distance
//
// Returns:
//   - CameraControllerOption: functional option to set radius bounds
func WithRadiusBounds(minRadius, maxRadius float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minRadius = minRadius
		cc.maxRadius = maxRadius
	}
}

// WithElevationBounds sets the minimum and maximum elevation angles. A sand pile viewer
// usually keeps the minimum at 0 so the camera never goes under the ground plane.
//
// Parameters:
//   - minElevation: minimum vertical angle in radians
//   - maxElevation: maximum vertical angle in radians
//
// Returns:
//   - CameraControllerOption: functional option to set elevation bounds
func WithElevationBounds(minElevation, maxElevation float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.minElevation = minElevation
		cc.maxElevation = maxElevation
	}
}

// WithSpeeds sets the keyboard orbit step, the mouse drag sensitivity and the wheel zoom
// rate. Zero leaves the default in place.
//
// Parameters:
//   - orbit: radians per orbit key press
//   - mouse: radians per pixel dragged
//   - zoom: log radius change per wheel step
//
// Returns:
//   - CameraControllerOption: functional option to set the speeds
func WithSpeeds(orbit, mouse, zoom float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		if orbit != 0 {
			cc.orbitSpeed = orbit
		}
		if mouse != 0 {
			cc.mouseSensitivity = mouse
		}
		if zoom != 0 {
			cc.zoomSpeed = zoom
		}
	}
}

// WithPanSpeed sets the pan speed in orbit radii per unit of input.
func WithPanSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.panSpeed = speed
	}
}

// WithAutoRotate starts the turntable at the given speed in radians per second.
func WithAutoRotate(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.autoRotate = speed
	}
}
