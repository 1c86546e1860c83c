package material

import (
	"github.com/Carmen-Shannon/grain-go/engine/property"
)

// material is the implementation of the Material interface.
type material struct {
	name      string
	baseColor [3]float32
	metallic  float32
	roughness float32
}

// Material defines the surface parameters of a grain mesh: a base color and the metallic and
// roughness factors consumed by the G-buffer shaders.
//
// Materials come from two places: the mesh file, and the materials listed on the instance
// renderer configuration. Resolve merges both lists.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo color of the material.
	//
	// Returns:
	//   - [3]float32: the base color as RGB values
	BaseColor() [3]float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// GPU returns the packed uniform representation of the material.
	//
	// Returns:
	//   - GPUMaterial: the material laid out for upload
	GPU() GPUMaterial
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor: [3]float32{1, 1, 1},
		metallic:  0.0,
		roughness: 0.5,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [3]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) GPU() GPUMaterial {
	return GPUMaterial{BaseColor: m.baseColor, Metallic: m.metallic, Roughness: m.roughness}
}

// Config is the scene document form of a material.
type Config struct {
	Name      string
	BaseColor [3]float32
	Metallic  float32
	Roughness float32
}

// Properties is the property table of Config.
var Properties = property.Table[Config]{
	Name: "material",
	Fields: []property.Field[Config]{
		property.Vec3("baseColor", "", 0, 1, func(c *Config) *[3]float32 { return &c.BaseColor }),
		property.Float("metallic", "", 0, 1, func(c *Config) *float32 { return &c.Metallic }),
		property.Float("roughness", "", 0, 1, func(c *Config) *float32 { return &c.Roughness }),
	},
}

// DefaultConfig returns the configuration NewMaterial uses when no option is given.
func DefaultConfig() Config {
	return Config{BaseColor: [3]float32{1, 1, 1}, Roughness: 0.5}
}

// FromConfig builds a Material from its scene document form.
func FromConfig(c Config) Material {
	return NewMaterial(
		WithName(c.Name),
		WithBaseColor(c.BaseColor),
		WithMetallic(c.Metallic),
		WithRoughness(c.Roughness),
	)
}

// Resolve merges the configured materials with the ones carried by the mesh. The result
// holds max(len(configured), len(fromMesh)) entries; slot i is configured[i] when present and
// fromMesh[i] otherwise.
//
// Parameters:
//   - configured: the materials set on the renderer
//   - fromMesh: the materials read from the mesh file
//
// Returns:
//   - []Material: the merged list
func Resolve(configured, fromMesh []Material) []Material {
	out := make([]Material, max(len(configured), len(fromMesh)))
	for i := range out {
		if i < len(configured) && configured[i] != nil {
			out[i] = configured[i]
			continue
		}
		if i < len(fromMesh) && fromMesh[i] != nil {
			out[i] = fromMesh[i]
			continue
		}
		out[i] = NewMaterial()
	}
	return out
}
