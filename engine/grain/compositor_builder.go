package grain

// CompositorBuilderOption configures a Compositor created by NewCompositor.
type CompositorBuilderOption func(*compositor)

// WithGrainProperties sets the grain settings handed to every renderer.
//
// Parameters:
//   - p: the grain properties
//
// Returns:
//   - CompositorBuilderOption: a function that applies the properties
func WithGrainProperties(p Properties) CompositorBuilderOption {
	return func(c *compositor) {
		c.grain = p
	}
}

// WithDeferredProperties sets the shading configuration.
//
// Parameters:
//   - p: the deferred properties
//
// Returns:
//   - CompositorBuilderOption: a function that applies the properties
func WithDeferredProperties(p DeferredProperties) CompositorBuilderOption {
	return func(c *compositor) {
		c.deferred = p
	}
}

// WithBounds sets the sphere the shadow map covers.
func WithBounds(center [3]float32, radius float32) CompositorBuilderOption {
	return func(c *compositor) {
		c.boundsCenter, c.boundsRadius = center, radius
	}
}

// WithHeadless records frames offscreen. The G-buffer is filled but nothing is shaded or
// presented, which is what the bench command measures.
func WithHeadless() CompositorBuilderOption {
	return func(c *compositor) {
		c.headless = true
	}
}
