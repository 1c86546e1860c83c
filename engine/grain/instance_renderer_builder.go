package grain

import (
	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/material"
)

// InstanceRendererBuilderOption configures an InstanceRenderer created by NewInstanceRenderer.
type InstanceRendererBuilderOption func(*instanceRenderer)

// WithMesh sets the grain mesh. Without one the renderer draws an icosphere.
//
// Parameters:
//   - m: the mesh, typically loaded from an OBJ file
//
// Returns:
//   - InstanceRendererBuilderOption: a function that applies the mesh
func WithMesh(m model.Model) InstanceRendererBuilderOption {
	return func(r *instanceRenderer) {
		r.mesh = m
	}
}

// WithMaterials sets the configured materials, merged with the mesh materials slot by slot.
func WithMaterials(mats []material.Material) InstanceRendererBuilderOption {
	return func(r *instanceRenderer) {
		r.materials = mats
	}
}
