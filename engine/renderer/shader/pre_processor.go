// pre_processor.go implements a small C-style directive pass over WGSL sources so one
// file can produce every variant of a program. Supported directives, each on its own line:
//
//	#include "path"      splice another library file, resolved relative to the including file
//	#define NAME [VALUE] define a flag, or a token replaced by VALUE in following lines
//	#undef NAME
//	#ifdef NAME / #ifndef NAME / #else / #endif
//
// Every file is spliced at most once per Process call. An include cycle is an error.
package shader

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// PreProcessor expands directives in a library source.
type PreProcessor interface {
	// Process reads a file from the library and expands its directives.
	//
	// Parameters:
	//   - file: the root file within the library
	//   - defines: entries of the form NAME or NAME=VALUE, defined before the first line
	//
	// Returns:
	//   - string: the expanded WGSL source
	//   - error: an error naming file and line for unknown or unbalanced directives,
	//     include cycles and unreadable files
	Process(file string, defines []string) (string, error)
}

type preProcessor struct {
	library Library
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor reading sources from a Library.
//
// Parameters:
//   - library: the library sources and includes are read from
//
// Returns:
//   - PreProcessor: the pre-processor
func NewPreProcessor(library Library) PreProcessor {
	return &preProcessor{library: library}
}

// conditional is one open #ifdef block.
type conditional struct {
	// parent is true when the enclosing block emits lines.
	parent bool
	// taken is true when the current branch emits lines.
	taken  bool
	inElse bool
	line   int
}

// expansion is the state of one Process call.
type expansion struct {
	library  Library
	macros   map[string]string
	patterns map[string]*regexp.Regexp
	included map[string]bool
	stack    []string
	out      strings.Builder
}

func (p *preProcessor) Process(file string, defines []string) (string, error) {
	x := &expansion{
		library:  p.library,
		macros:   make(map[string]string, len(defines)),
		patterns: make(map[string]*regexp.Regexp),
		included: make(map[string]bool),
	}
	for _, d := range defines {
		name, value, _ := strings.Cut(d, "=")
		x.define(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if err := x.expand(path.Clean(file)); err != nil {
		return "", err
	}
	return x.out.String(), nil
}

func (x *expansion) define(name, value string) {
	x.macros[name] = value
	if value != "" {
		x.patterns[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
	} else {
		delete(x.patterns, name)
	}
}

func (x *expansion) expand(file string) error {
	for _, f := range x.stack {
		if f == file {
			return fmt.Errorf("%s: include cycle: %s -> %s", file, strings.Join(x.stack, " -> "), file)
		}
	}
	if x.included[file] {
		return nil
	}
	src, err := x.library.ReadFile(file)
	if err != nil {
		return err
	}
	x.included[file] = true
	x.stack = append(x.stack, file)
	defer func() { x.stack = x.stack[:len(x.stack)-1] }()

	var conds []conditional
	active := func() bool {
		return len(conds) == 0 || conds[len(conds)-1].taken
	}

	for i, line := range strings.Split(src, "\n") {
		n := i + 1
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				x.emit(line)
			}
			continue
		}

		directive, arg, _ := strings.Cut(trimmed[1:], " ")
		arg = strings.TrimSpace(arg)
		switch directive {
		case "ifdef", "ifndef":
			if arg == "" {
				return fmt.Errorf("%s:%d: #%s needs a name", file, n, directive)
			}
			_, defined := x.macros[arg]
			parent := active()
			conds = append(conds, conditional{parent: parent, taken: parent && defined == (directive == "ifdef"), line: n})
		case "else":
			if len(conds) == 0 {
				return fmt.Errorf("%s:%d: #else without #ifdef", file, n)
			}
			c := &conds[len(conds)-1]
			if c.inElse {
				return fmt.Errorf("%s:%d: duplicate #else for block opened on line %d", file, n, c.line)
			}
			c.inElse = true
			c.taken = c.parent && !c.taken
		case "endif":
			if len(conds) == 0 {
				return fmt.Errorf("%s:%d: #endif without #ifdef", file, n)
			}
			conds = conds[:len(conds)-1]
		case "include", "define", "undef":
			if !active() {
				continue
			}
			if err := x.directive(file, n, directive, arg); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s:%d: unknown directive #%s", file, n, directive)
		}
	}
	if len(conds) > 0 {
		return fmt.Errorf("%s:%d: unterminated conditional block", file, conds[len(conds)-1].line)
	}
	return nil
}

func (x *expansion) directive(file string, n int, directive, arg string) error {
	switch directive {
	case "include":
		target := strings.Trim(arg, `"`)
		if target == "" || target == arg {
			return fmt.Errorf("%s:%d: #include needs a quoted path", file, n)
		}
		if err := x.expand(path.Join(path.Dir(file), target)); err != nil {
			return fmt.Errorf("%s:%d: %w", file, n, err)
		}
	case "define":
		name, value, _ := strings.Cut(arg, " ")
		if name == "" {
			return fmt.Errorf("%s:%d: #define needs a name", file, n)
		}
		x.define(name, strings.TrimSpace(value))
	case "undef":
		delete(x.macros, arg)
		delete(x.patterns, arg)
	}
	return nil
}

func (x *expansion) emit(line string) {
	for name, re := range x.patterns {
		if strings.Contains(line, name) {
			line = re.ReplaceAllLiteralString(line, x.macros[name])
		}
	}
	x.out.WriteString(line)
	x.out.WriteByte('\n')
}
