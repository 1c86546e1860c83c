package grain

// ImpostorRendererBuilderOption configures an ImpostorRenderer created by NewImpostorRenderer.
type ImpostorRendererBuilderOption func(*impostorRenderer)

// WithImpostorProperties sets the initial configuration.
//
// Parameters:
//   - p: the properties
//
// Returns:
//   - ImpostorRendererBuilderOption: a function that applies the properties
func WithImpostorProperties(p ImpostorProperties) ImpostorRendererBuilderOption {
	return func(r *impostorRenderer) {
		r.props = p
	}
}

// WithAtlases sets the baked atlases. Without them grains are drawn as ray cast spheres.
//
// Parameters:
//   - s: the atlas set
//
// Returns:
//   - ImpostorRendererBuilderOption: a function that applies the atlases
func WithAtlases(s AtlasSet) ImpostorRendererBuilderOption {
	return func(r *impostorRenderer) {
		r.atlases = s
	}
}
