package scene

import (
	"errors"
	"fmt"
	"maps"

	"github.com/Carmen-Shannon/grain-go/engine/grain"
	"github.com/Carmen-Shannon/grain-go/engine/renderer/material"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
)

// Settings are the component configurations decoded from the property sections of a
// Document.
type Settings struct {
	Grain     grain.Properties
	Splitter  splitter.Properties
	Impostor  grain.ImpostorProperties
	Far       grain.FarProperties
	Deferred  grain.DeferredProperties
	Materials []material.Material
}

// DefaultSettings returns the defaults of every component.
func DefaultSettings() Settings {
	return Settings{
		Grain:    grain.DefaultProperties(),
		Splitter: splitter.DefaultProperties(),
		Impostor: grain.DefaultImpostorProperties(),
		Far:      grain.DefaultFarProperties(),
		Deferred: grain.DefaultDeferredProperties(),
	}
}

// Settings decodes the property sections over the defaults. Every value that decodes is
// applied even when others fail; the problems are returned joined so the caller can log them
// and keep going.
//
// The grain radius is shared: when only the grain section sets it, the splitter and the far
// renderer follow.
//
// Returns:
//   - Settings: the decoded settings
//   - error: every decoding problem, or nil
func (d *Document) Settings() (Settings, error) {
	s := DefaultSettings()
	var errs []error

	errs = append(errs, grain.PropertyTable.Decode(&s.Grain, d.Grain))
	errs = append(errs, splitter.PropertyTable.Decode(&s.Splitter, d.Splitter))
	errs = append(errs, grain.ImpostorPropertyTable.Decode(&s.Impostor, d.Impostor))
	errs = append(errs, grain.FarPropertyTable.Decode(&s.Far, d.FarSand))
	errs = append(errs, grain.DeferredPropertyTable.Decode(&s.Deferred, d.Deferred))

	if _, ok := d.Grain["grainRadius"]; ok {
		if _, set := d.Splitter["grainRadius"]; !set {
			s.Splitter.GrainRadius = s.Grain.GrainRadius
		}
		if _, set := d.FarSand["radius"]; !set {
			s.Far.Radius = s.Grain.GrainRadius
		}
	}

	for i, raw := range d.Materials {
		c := material.DefaultConfig()
		fields := maps.Clone(raw)
		if name, ok := fields["name"].(string); ok {
			c.Name = name
		}
		delete(fields, "name")
		if err := material.Properties.Decode(&c, fields); err != nil {
			errs = append(errs, fmt.Errorf("materials[%d]: %w", i, err))
		}
		s.Materials = append(s.Materials, material.FromConfig(c))
	}
	return s, errors.Join(errs...)
}

// SetSettings writes the settings back into the property sections, replacing them.
//
// Parameters:
//   - s: the settings to store
func (d *Document) SetSettings(s Settings) {
	d.Grain = grain.PropertyTable.Encode(&s.Grain)
	d.Splitter = splitter.PropertyTable.Encode(&s.Splitter)
	d.Impostor = grain.ImpostorPropertyTable.Encode(&s.Impostor)
	d.FarSand = grain.FarPropertyTable.Encode(&s.Far)
	d.Deferred = grain.DeferredPropertyTable.Encode(&s.Deferred)

	d.Materials = nil
	for _, m := range s.Materials {
		c := material.Config{Name: m.Name(), BaseColor: m.BaseColor(), Metallic: m.Metallic(), Roughness: m.Roughness()}
		raw := material.Properties.Encode(&c)
		if c.Name != "" {
			raw["name"] = c.Name
		}
		d.Materials = append(d.Materials, raw)
	}
}

// DefaultDocument returns a complete document with every property at its default, framing a
// generated heap. It is what `grainviewer init` writes.
//
// Parameters:
//   - pointCount: the number of generated grains
//
// Returns:
//   - *Document: the document
func DefaultDocument(pointCount uint32) *Document {
	fit := true
	d := &Document{
		Name: "sand",
		Points: PointsSection{
			Generate: &GenerateSection{Count: pointCount, Shape: "heap", Extent: 1, Height: 0.6, Seed: 1},
		},
		Camera: CameraSection{Fov: 45, Elevation: 30, Fit: &fit},
	}
	d.SetSettings(DefaultSettings())
	return d
}
