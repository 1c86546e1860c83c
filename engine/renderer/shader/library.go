package shader

import (
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"sync"
)

// Entry names a shader program in a Library: the WGSL file it is built from and the
// defines every variant of it is compiled with.
type Entry struct {
	Name    string
	File    string
	Defines []string
}

type library struct {
	mu      *sync.Mutex
	fsys    fs.FS
	entries map[string]Entry
}

// Library resolves base shader names to WGSL sources read from a file system.
type Library interface {
	// Register adds or replaces a named entry.
	//
	// Parameters:
	//   - entry: the entry to register
	Register(entry Entry)

	// Entry returns the entry for a base name. Unregistered names resolve to "<name>.wgsl"
	// with no defines.
	//
	// Parameters:
	//   - name: the base shader name
	//
	// Returns:
	//   - Entry: the resolved entry
	Entry(name string) Entry

	// Entries lists every registered entry sorted by name.
	//
	// Returns:
	//   - []Entry: the registered entries
	Entries() []Entry

	// ReadFile reads a WGSL source file. Sources are read on every call so edits on disk
	// are picked up after a reload.
	//
	// Parameters:
	//   - path: the slash separated path within the library file system
	//
	// Returns:
	//   - string: the file contents
	//   - error: an error if the file cannot be read
	ReadFile(path string) (string, error)
}

var _ Library = &library{}

// NewLibrary creates a Library over a file system, typically an embed.FS of bundled
// shaders or os.DirFS of a shader directory.
//
// Parameters:
//   - fsys: the file system holding the WGSL sources
//   - entries: variadic named entries to register up front
//
// Returns:
//   - Library: the library
func NewLibrary(fsys fs.FS, entries ...Entry) Library {
	l := &library{
		mu:      &sync.Mutex{},
		fsys:    fsys,
		entries: make(map[string]Entry, len(entries)),
	}
	for _, e := range entries {
		l.Register(e)
	}
	return l
}

func (l *library) Register(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.Defines = slices.Clone(entry.Defines)
	l.entries[entry.Name] = entry
}

func (l *library) Entry(name string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[name]; ok {
		return e
	}
	return Entry{Name: name, File: name + ".wgsl"}
}

func (l *library) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (l *library) ReadFile(path string) (string, error) {
	data, err := fs.ReadFile(l.fsys, path)
	if err != nil {
		return "", fmt.Errorf("shader library: %w", err)
	}
	return string(data), nil
}
