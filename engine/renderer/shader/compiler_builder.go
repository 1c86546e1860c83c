package shader

// CompilerBuilderOption configures a Compiler created by NewCompiler.
type CompilerBuilderOption func(*compiler)

// WithValidator validates every preprocessed variant before it is reflected.
//
// Parameters:
//   - v: the validator to run
//
// Returns:
//   - CompilerBuilderOption: a function that applies the validator
func WithValidator(v Validator) CompilerBuilderOption {
	return func(c *compiler) {
		c.validator = v
	}
}

// WithOnCompile runs a hook on every successfully compiled program, typically to register
// its pipeline with the renderer. A hook error fails the compile.
//
// Parameters:
//   - hook: the function to run
//
// Returns:
//   - CompilerBuilderOption: a function that appends the hook
func WithOnCompile(hook func(Program) error) CompilerBuilderOption {
	return func(c *compiler) {
		c.onCompile = append(c.onCompile, hook)
	}
}
