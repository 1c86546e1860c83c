package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a scene document.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatOf picks the document format from a file extension.
//
// Parameters:
//   - path: the document path
//
// Returns:
//   - Format: the format
//   - error: an error for unknown extensions
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("scene: unsupported document %q, expected .toml, .yaml or .yml", path)
}

// GenerateSection describes a procedural stacking, used when no point file is given.
type GenerateSection struct {
	Count  uint32  `toml:"count" yaml:"count"`
	Shape  string  `toml:"shape,omitempty" yaml:"shape,omitempty"`
	Extent float32 `toml:"extent,omitempty" yaml:"extent,omitempty"`
	Height float32 `toml:"height,omitempty" yaml:"height,omitempty"`
	Frames uint32  `toml:"frames,omitempty" yaml:"frames,omitempty"`
	Drop   float32 `toml:"drop,omitempty" yaml:"drop,omitempty"`
	Seed   uint64  `toml:"seed,omitempty" yaml:"seed,omitempty"`
}

// PointsSection selects the point cloud of the scene.
type PointsSection struct {
	// File is a .bin or .xyz point file, relative to the document.
	File string `toml:"file,omitempty" yaml:"file,omitempty"`

	// Frames splits File into that many animation frames.
	Frames uint32  `toml:"frames,omitempty" yaml:"frames,omitempty"`
	FPS    float32 `toml:"fps,omitempty" yaml:"fps,omitempty"`

	Generate *GenerateSection `toml:"generate,omitempty" yaml:"generate,omitempty"`
}

// AtlasSection names one baked impostor atlas.
type AtlasSection struct {
	Name      string `toml:"name" yaml:"name"`
	ViewCount int    `toml:"viewCount" yaml:"viewCount"`
	BaseColor string `toml:"baseColor" yaml:"baseColor"`
	Normal    string `toml:"normal" yaml:"normal"`
}

// CameraSection is the initial framing. Angles are in degrees.
type CameraSection struct {
	Fov        float32 `toml:"fov,omitempty" yaml:"fov,omitempty"`
	Azimuth    float32 `toml:"azimuth,omitempty" yaml:"azimuth,omitempty"`
	Elevation  float32 `toml:"elevation,omitempty" yaml:"elevation,omitempty"`
	Distance   float32 `toml:"distance,omitempty" yaml:"distance,omitempty"`
	AutoRotate float32 `toml:"autoRotate,omitempty" yaml:"autoRotate,omitempty"`

	// Fit frames the point cloud bounds on load. Defaults to true.
	Fit *bool `toml:"fit,omitempty" yaml:"fit,omitempty"`
}

// ShaderSection overrides the source file and the defines of a named shader.
type ShaderSection struct {
	File    string   `toml:"file" yaml:"file"`
	Defines []string `toml:"defines,omitempty" yaml:"defines,omitempty"`
}

// Document is a parsed scene file. The typed sections describe what is loaded; the
// property sections are raw maps decoded by the property table of their component, so a
// bad value degrades to the default instead of failing the scene.
type Document struct {
	Name    string                   `toml:"name" yaml:"name"`
	Points  PointsSection            `toml:"points" yaml:"points"`
	Mesh    string                   `toml:"mesh,omitempty" yaml:"mesh,omitempty"`
	Atlases []AtlasSection           `toml:"atlases,omitempty" yaml:"atlases,omitempty"`
	Camera  CameraSection            `toml:"camera,omitempty" yaml:"camera,omitempty"`
	Shaders map[string]ShaderSection `toml:"shaders,omitempty" yaml:"shaders,omitempty"`

	Grain     map[string]any   `toml:"grain,omitempty" yaml:"grain,omitempty"`
	Splitter  map[string]any   `toml:"splitter,omitempty" yaml:"splitter,omitempty"`
	Impostor  map[string]any   `toml:"impostor,omitempty" yaml:"impostor,omitempty"`
	FarSand   map[string]any   `toml:"farSand,omitempty" yaml:"farSand,omitempty"`
	Deferred  map[string]any   `toml:"deferred,omitempty" yaml:"deferred,omitempty"`
	Materials []map[string]any `toml:"materials,omitempty" yaml:"materials,omitempty"`

	// dir is the directory relative paths resolve against.
	dir string
}

// LoadDocument reads a scene document, choosing the syntax from the extension.
//
// Parameters:
//   - path: the .toml, .yaml or .yml file
//
// Returns:
//   - *Document: the parsed document
//   - error: a read or syntax error
func LoadDocument(path string) (*Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	defer f.Close()

	doc, err := DecodeDocument(f, format)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	doc.dir = filepath.Dir(path)
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// DecodeDocument parses a scene document from a stream. Relative paths resolve against the
// working directory.
//
// Parameters:
//   - r: the document stream
//   - format: the document syntax
//
// Returns:
//   - *Document: the parsed document
//   - error: a syntax error
func DecodeDocument(r io.Reader, format Format) (*Document, error) {
	doc := &Document{}
	switch format {
	case FormatTOML:
		if err := toml.NewDecoder(r).Decode(doc); err != nil {
			return nil, err
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
	return doc, nil
}

// Encode writes the document in the given syntax.
//
// Parameters:
//   - w: the destination
//   - format: the document syntax
//
// Returns:
//   - error: an encoding or write error
func (d *Document) Encode(w io.Writer, format Format) error {
	var buf bytes.Buffer
	switch format {
	case FormatTOML:
		enc := toml.NewEncoder(&buf)
		enc.SetIndentTables(true)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("scene: %w", err)
		}
		enc.Close()
	default:
		return fmt.Errorf("scene: unknown document format %q", format)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Resolve returns path relative to the document directory, or path itself when absolute.
func (d *Document) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || d.dir == "" {
		return path
	}
	return filepath.Join(d.dir, path)
}

// ShaderEntries lists the shaders section as library entries sorted by name. Files stay
// relative to the shader directory.
func (d *Document) ShaderEntries() []shader.Entry {
	out := make([]shader.Entry, 0, len(d.Shaders))
	for name, s := range d.Shaders {
		file := s.File
		if file == "" {
			file = name + ".wgsl"
		}
		out = append(out, shader.Entry{Name: name, File: file, Defines: s.Defines})
	}
	slices.SortFunc(out, func(a, b shader.Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}
