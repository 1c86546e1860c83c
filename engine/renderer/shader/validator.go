package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
)

// Validator checks preprocessed WGSL before a GPU module is created from it.
type Validator interface {
	// Validate parses and validates a WGSL source.
	//
	// Parameters:
	//   - name: the variant name, used in error messages
	//   - source: the preprocessed WGSL source
	//
	// Returns:
	//   - error: every problem found, or nil if the source is valid
	Validate(name, source string) error
}

type nagaValidator struct{}

var _ Validator = &nagaValidator{}

// NewNagaValidator creates a Validator that runs the naga front end (parse, lower and
// validate) over the source.
//
// Returns:
//   - Validator: the validator
func NewNagaValidator() Validator {
	return &nagaValidator{}
}

func (v *nagaValidator) Validate(name, source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("shader %s: %w", name, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return fmt.Errorf("shader %s: %w", name, err)
	}
	problems, err := naga.Validate(module)
	if err != nil {
		return fmt.Errorf("shader %s: %w", name, err)
	}
	if len(problems) == 0 {
		return nil
	}
	errs := make([]error, 0, len(problems))
	for _, p := range problems {
		errs = append(errs, p)
	}
	return fmt.Errorf("shader %s: %w", name, errors.Join(errs...))
}
