package grain

import (
	"github.com/Carmen-Shannon/grain-go/engine/property"
)

// Fallback sand material, used when neither the mesh nor the scene provides one.
var sandBaseColor = [3]float32{0.76, 0.62, 0.44}

const sandRoughness = 0.8

// Properties are the grain settings shared by the three renderers. Their uniform fields
// are packed into the GrainUniforms block of every grain shader.
type Properties struct {
	GrainRadius float32

	// GrainInnerRadiusRatio is the radius of the opaque core of a grain, as a ratio of
	// GrainRadius. Impostor surface prerendering pushes depth back by the difference.
	GrainInnerRadiusRatio float32

	// GrainMeshScale converts instance mesh units to world units.
	GrainMeshScale float32

	DisableInstances bool
	DisableImpostors bool
	DisablePoints    bool
}

// DefaultProperties returns the grain defaults.
func DefaultProperties() Properties {
	return Properties{
		GrainRadius:           0.007,
		GrainInnerRadiusRatio: 0.8,
		GrainMeshScale:        0.45,
	}
}

// PropertyTable describes how Properties are read from scene documents and shown in the UI.
var PropertyTable = property.Table[Properties]{
	Name: "grain",
	Fields: []property.Field[Properties]{
		property.Float("grainRadius", "uGrainRadius", 0, 0.1, func(p *Properties) *float32 { return &p.GrainRadius }),
		property.Float("grainInnerRadiusRatio", "uGrainInnerRadiusRatio", 0, 1, func(p *Properties) *float32 { return &p.GrainInnerRadiusRatio }),
		property.Float("grainMeshScale", "uGrainMeshScale", 0, 2, func(p *Properties) *float32 { return &p.GrainMeshScale }),
		property.Bool("disableInstances", "", func(p *Properties) *bool { return &p.DisableInstances }),
		property.Bool("disableImpostors", "", func(p *Properties) *bool { return &p.DisableImpostors }),
		property.Bool("disablePoints", "", func(p *Properties) *bool { return &p.DisablePoints }),
	},
}
