package shader

import (
	"fmt"
	"slices"
)

// Compiler turns a base shader name and a define list into a Program.
type Compiler interface {
	// Compile preprocesses, validates and reflects one variant.
	//
	// Parameters:
	//   - name: the variant name given to the program
	//   - base: the base shader name, resolved through the library
	//   - defines: the variant defines, applied after the entry's own defines
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: an error if any step fails
	Compile(name, base string, defines []string) (Program, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(name, base string, defines []string) (Program, error)

func (f CompilerFunc) Compile(name, base string, defines []string) (Program, error) {
	return f(name, base, defines)
}

type compiler struct {
	library   Library
	pp        PreProcessor
	validator Validator
	onCompile []func(Program) error
}

var _ Compiler = &compiler{}

// NewCompiler creates the default Compiler over a Library.
//
// Parameters:
//   - library: the library base names resolve against
//   - options: variadic CompilerBuilderOption functions
//
// Returns:
//   - Compiler: the compiler
func NewCompiler(library Library, options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		library: library,
		pp:      NewPreProcessor(library),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *compiler) Compile(name, base string, defines []string) (Program, error) {
	entry := c.library.Entry(base)
	all := append(slices.Clone(entry.Defines), defines...)

	source, err := c.pp.Process(entry.File, all)
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", name, err)
	}
	if c.validator != nil {
		if err := c.validator.Validate(name, source); err != nil {
			return nil, err
		}
	}
	p, err := NewProgram(name, base, all, source)
	if err != nil {
		return nil, err
	}
	for _, hook := range c.onCompile {
		if err := hook(p); err != nil {
			return nil, fmt.Errorf("shader %s: %w", name, err)
		}
	}
	return p, nil
}
