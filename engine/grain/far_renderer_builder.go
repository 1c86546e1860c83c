package grain

// FarRendererBuilderOption configures a FarRenderer created by NewFarRenderer.
type FarRendererBuilderOption func(*farRenderer)

// WithFarProperties sets the initial configuration.
//
// Parameters:
//   - p: the properties
//
// Returns:
//   - FarRendererBuilderOption: a function that applies the properties
func WithFarProperties(p FarProperties) FarRendererBuilderOption {
	return func(r *farRenderer) {
		r.props = p
	}
}
