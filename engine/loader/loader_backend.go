package loader

import (
	"io"

	"github.com/Carmen-Shannon/grain-go/engine/model"
)

// pointBackend decodes one point file format into packed xyz positions.
type pointBackend interface {
	// LoadPoints decodes every point in the stream.
	//
	// Parameters:
	//   - r: the reader providing the point data
	//
	// Returns:
	//   - []float32: 3 floats per point, frames back to back
	//   - error: error if decoding fails
	LoadPoints(r io.Reader) ([]float32, error)
}

// meshBackend decodes one mesh file format.
type meshBackend interface {
	// LoadMesh decodes a triangle mesh. Material libraries referenced by the mesh are resolved
	// through open, which may be nil when the mesh is read from a bare stream.
	//
	// Parameters:
	//   - r: the reader providing the mesh data
	//   - open: opens a file referenced by the mesh, relative to the mesh
	//
	// Returns:
	//   - *ImportedMesh: the decoded mesh
	//   - error: error if decoding fails
	LoadMesh(r io.Reader, open func(name string) (io.ReadCloser, error)) (*ImportedMesh, error)
}

// ImportedMesh is the format independent result of a mesh backend.
type ImportedMesh struct {
	Vertices  []model.GPUVertex
	Indices   []uint32
	Materials []MaterialDesc
}

// MaterialDesc is a material read from a mesh file.
type MaterialDesc struct {
	Name      string
	BaseColor [3]float32
	Metallic  float32
	Roughness float32
}
