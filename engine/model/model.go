package model

import (
	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/material"
)

// model is the implementation of the Model interface.
type model struct {
	name           string
	vertices       []GPUVertex
	indices        []uint32
	materials      []material.Material
	meshProvider   bind_group_provider.BindGroupProvider
	boundingRadius float32
}

// Model is the base mesh drawn once per grain by the instance renderer. It holds the
// triangle data on the host, the materials read with it, and once uploaded the
// BindGroupProvider carrying its vertex and index buffers.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns the mesh vertices.
	//
	// Returns:
	//   - []GPUVertex: the vertices
	Vertices() []GPUVertex

	// Indices returns the triangle list indices.
	//
	// Returns:
	//   - []uint32: three indices per triangle
	Indices() []uint32

	// VertexData returns the vertices packed for upload.
	//
	// Returns:
	//   - []byte: the packed vertex buffer
	VertexData() []byte

	// IndexData returns the indices packed for upload.
	//
	// Returns:
	//   - []byte: the packed index buffer
	IndexData() []byte

	IndexCount() int

	// Materials returns the materials carried by the mesh file, possibly empty.
	//
	// Returns:
	//   - []material.Material: the mesh materials
	Materials() []material.Material

	// BoundingRadius returns the distance from the origin to the farthest vertex.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// MeshProvider retrieves the provider holding the uploaded vertex and index buffers.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider, or nil before upload
	MeshProvider() bind_group_provider.BindGroupProvider

	// SetMeshProvider records the provider created when the mesh was uploaded.
	//
	// Parameters:
	//   - provider: the mesh provider
	SetMeshProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Model = &model{}

// NewModel creates a new Model with the specified options applied.
//
// Parameters:
//   - options: variadic list of ModelBuilderOption functions to configure the model
//
// Returns:
//   - Model: a new Model instance
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, option := range options {
		option(m)
	}
	m.boundingRadius = ComputeBoundingRadius(m.vertices)
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []GPUVertex {
	return m.vertices
}

func (m *model) Indices() []uint32 {
	return m.indices
}

func (m *model) VertexData() []byte {
	buf := make([]byte, 0, len(m.vertices)*GPUVertexSize)
	for i := range m.vertices {
		buf = append(buf, m.vertices[i].Marshal()...)
	}
	return buf
}

func (m *model) IndexData() []byte {
	return append([]byte(nil), common.SliceToBytes(m.indices)...)
}

func (m *model) IndexCount() int {
	return len(m.indices)
}

func (m *model) Materials() []material.Material {
	return m.materials
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) MeshProvider() bind_group_provider.BindGroupProvider {
	return m.meshProvider
}

func (m *model) SetMeshProvider(provider bind_group_provider.BindGroupProvider) {
	m.meshProvider = provider
}
