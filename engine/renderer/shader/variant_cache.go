package shader

import (
	"log"
	"strings"
	"sync"
)

// variantSlot is one memoized compile result. A failed compile keeps program nil with
// tried set so the failure is not retried until Reload.
type variantSlot struct {
	program Program
	tried   bool
}

type variantCache struct {
	mu        *sync.Mutex
	base      string
	flagNames []string
	compiler  Compiler
	slots     []variantSlot
	describe  func(flags uint32) []string
	keyBits   int
	compiles  int
}

// VariantCache memoizes the permutations of one base shader. A variant is selected by a
// bitset whose bit i enables flagNames[i]; the cache holds 2^len(flagNames) slots.
type VariantCache interface {
	// Get returns the program for a flag set, compiling it on first use. Compilation stalls
	// the caller; steady state is an indexed lookup.
	//
	// Parameters:
	//   - flags: the variant bitset
	//
	// Returns:
	//   - Program: the compiled program, or nil if compilation failed or flags is out of range
	Get(flags uint32) Program

	// Name returns the variant name for a flag set: the base name, "_ShaderVariantFlags" and
	// each set flag name joined with underscores.
	//
	// Parameters:
	//   - flags: the variant bitset
	//
	// Returns:
	//   - string: the variant name
	Name(flags uint32) string

	// Defines returns the define list derived from a flag set, one entry per set flag.
	//
	// Parameters:
	//   - flags: the variant bitset
	//
	// Returns:
	//   - []string: the defines
	Defines(flags uint32) []string

	// FlagNames returns the flag names in bit order.
	//
	// Returns:
	//   - []string: the flag names
	FlagNames() []string

	// Compiles returns how many times the compiler has been invoked since creation.
	//
	// Returns:
	//   - int: the number of compile calls
	Compiles() int

	// Reload drops every memoized variant, including failures. The next Get recompiles.
	Reload()
}

var _ VariantCache = &variantCache{}

// NewVariantCache creates a VariantCache for one base shader.
//
// Parameters:
//   - base: the base shader name passed to the compiler
//   - flagNames: the feature flag names in bit order
//   - compiler: the compiler invoked on a cache miss
//   - options: variadic VariantCacheBuilderOption functions
//
// Returns:
//   - VariantCache: the cache
func NewVariantCache(base string, flagNames []string, compiler Compiler, options ...VariantCacheBuilderOption) VariantCache {
	c := &variantCache{
		mu:        &sync.Mutex{},
		base:      base,
		flagNames: flagNames,
		compiler:  compiler,
	}
	for _, opt := range options {
		opt(c)
	}
	bits := len(c.flagNames)
	if c.describe != nil {
		bits = c.keyBits
	}
	c.slots = make([]variantSlot, 1<<bits)
	return c
}

func (c *variantCache) Get(flags uint32) Program {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(flags) >= len(c.slots) {
		log.Printf("[ShaderCache] %s: flag set %#x out of range", c.base, flags)
		return nil
	}
	slot := &c.slots[flags]
	if slot.tried {
		return slot.program
	}

	name := c.name(flags)
	c.compiles++
	p, err := c.compiler.Compile(name, c.base, c.defines(flags))
	slot.tried = true
	if err != nil {
		log.Printf("[ShaderCache] failed to compile %s: %v", name, err)
		return nil
	}
	slot.program = p
	return p
}

func (c *variantCache) Name(flags uint32) string {
	return c.name(flags)
}

func (c *variantCache) Defines(flags uint32) []string {
	return c.defines(flags)
}

func (c *variantCache) FlagNames() []string {
	return c.flagNames
}

func (c *variantCache) Compiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compiles
}

func (c *variantCache) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.slots)
	log.Printf("[ShaderCache] %s: %d variants invalidated", c.base, len(c.slots))
}

func (c *variantCache) name(flags uint32) string {
	var sb strings.Builder
	sb.WriteString(c.base)
	sb.WriteString("_ShaderVariantFlags")
	for _, d := range c.defines(flags) {
		sb.WriteByte('_')
		sb.WriteString(d)
	}
	return sb.String()
}

func (c *variantCache) defines(flags uint32) []string {
	if c.describe != nil {
		return c.describe(flags)
	}
	var out []string
	for i, name := range c.flagNames {
		if flags&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}
