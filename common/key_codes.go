package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace  = 32  // Space bar, pauses animation
	KeyMinus  = 45  // - key, zooms out
	KeyEqual  = 61  // = key, zooms in
	KeyA      = 65  // A key (ASCII), toggles auto rotation
	KeyC      = 67  // C key (ASCII), toggles occlusion culling
	KeyF      = 70  // F key (ASCII), frames the point cloud
	KeyI      = 73  // I key (ASCII), toggles instanced grains
	KeyO      = 79  // O key (ASCII), toggles impostor grains
	KeyP      = 80  // P key (ASCII), toggles far point grains
	KeyR      = 82  // R key (ASCII), reloads shaders
	KeyS      = 83  // S key (ASCII), toggles shadows
	KeyEscape = 256 // Escape key
	KeyRight  = 262 // Right arrow, orbits right
	KeyLeft   = 263 // Left arrow, orbits left
	KeyDown   = 264 // Down arrow, orbits down
	KeyUp     = 265 // Up arrow, orbits up
)
