package shader

import (
	"fmt"
	"slices"
)

type program struct {
	name    string
	base    string
	defines []string
	source  string
	stages  map[ShaderType]Shader
}

// Program is a compiled shader variant: one preprocessed WGSL source and every stage it
// declares. Render programs hold a vertex and usually a fragment stage, compute programs a
// compute stage.
type Program interface {
	// Name returns the variant name, unique per base and define set. It is also the pipeline key.
	//
	// Returns:
	//   - string: the variant name
	Name() string

	// Base returns the library entry the program was built from.
	//
	// Returns:
	//   - string: the base shader name
	Base() string

	// Defines returns the defines the source was preprocessed with.
	//
	// Returns:
	//   - []string: the defines in the order given
	Defines() []string

	// Source returns the preprocessed WGSL source.
	//
	// Returns:
	//   - string: the WGSL source
	Source() string

	// Stage returns the shader for one pipeline stage.
	//
	// Parameters:
	//   - t: the stage to look up
	//
	// Returns:
	//   - Shader: the stage, or nil if the program does not declare it
	Stage(t ShaderType) Shader
}

var _ Program = &program{}

// NewProgram reflects every stage declared in a preprocessed source.
//
// Parameters:
//   - name: the variant name
//   - base: the base shader name
//   - defines: the defines the source was preprocessed with
//   - source: the preprocessed WGSL source
//
// Returns:
//   - Program: the program
//   - error: an error if the source declares no entry point
func NewProgram(name, base string, defines []string, source string) (Program, error) {
	p := &program{
		name:    name,
		base:    base,
		defines: slices.Clone(defines),
		source:  source,
		stages:  make(map[ShaderType]Shader, 2),
	}
	for _, t := range []ShaderType{ShaderTypeVertex, ShaderTypeFragment, ShaderTypeCompute} {
		if s, err := NewShader(name, t, source); err == nil {
			p.stages[t] = s
		}
	}
	if len(p.stages) == 0 {
		return nil, fmt.Errorf("shader %s: no entry points", name)
	}
	return p, nil
}

func (p *program) Name() string {
	return p.name
}

func (p *program) Base() string {
	return p.base
}

func (p *program) Defines() []string {
	return p.defines
}

func (p *program) Source() string {
	return p.source
}

func (p *program) Stage(t ShaderType) Shader {
	return p.stages[t]
}
