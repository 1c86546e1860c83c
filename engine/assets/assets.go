package assets

import (
	"embed"
	"io/fs"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
)

//go:embed shaders/*.wgsl
var shaders embed.FS

// Shaders returns the bundled WGSL sources, rooted at the shader directory.
func Shaders() fs.FS {
	sub, err := fs.Sub(shaders, "shaders")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewLibrary creates a shader.Library over the bundled sources. Every program resolves to
// "<name>.wgsl" so no entries are needed; extra entries, typically from the shaders section
// of a scene document, are registered on top.
//
// Parameters:
//   - entries: variadic entries to register
//
// Returns:
//   - shader.Library: the library
func NewLibrary(entries ...shader.Entry) shader.Library {
	return shader.NewLibrary(Shaders(), entries...)
}
