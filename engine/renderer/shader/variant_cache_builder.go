package shader

// VariantCacheBuilderOption configures a VariantCache created by NewVariantCache.
type VariantCacheBuilderOption func(*variantCache)

// WithKeyedVariants replaces independent flags with a key space of the given bit width
// and a function mapping each key to its defines. Used for variants that are enumerations
// rather than independent flags, such as a caching mode combined with a compute step.
//
// Parameters:
//   - bits: the key width; the cache holds 2^bits slots
//   - describe: returns the defines for a key
//
// Returns:
//   - VariantCacheBuilderOption: a function that applies the key space
func WithKeyedVariants(bits int, describe func(key uint32) []string) VariantCacheBuilderOption {
	return func(c *variantCache) {
		c.flagNames = nil
		c.keyBits = bits
		c.describe = describe
	}
}
