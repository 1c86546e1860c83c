package property

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Widget identifies the control a debug UI should present for a field.
type Widget int

const (
	// WidgetNone hides the field from the UI.
	WidgetNone Widget = iota
	// WidgetCheckbox presents a boolean toggle.
	WidgetCheckbox
	// WidgetSlider presents a bounded scalar slider.
	WidgetSlider
	// WidgetDrag presents an unbounded scalar or vector drag control.
	WidgetDrag
	// WidgetCombo presents a named choice list.
	WidgetCombo
)

// Kind is the value type of a field.
type Kind int

const (
	KindBool Kind = iota
	KindFloat
	KindInt
	KindEnum
	KindVec3
)

// EnumValue pairs an enum name as written in scene documents with its numeric value.
type EnumValue struct {
	Name  string
	Value int
}

// Field describes one configurable property of T: how it is serialized, which shader
// uniform it feeds and how it is presented. Fields are built with Bool, Float, Int, Enum
// and Vec3 so the accessor always matches Kind.
type Field[T any] struct {
	// Key is the serialization key used in scene documents.
	Key string
	// Uniform is the shader uniform the field is packed into, or empty if it is host-only.
	Uniform string
	// Widget is the UI control for the field.
	Widget Widget
	// Min and Max bound slider and drag widgets. Both zero means unbounded.
	Min, Max float32
	// Options lists the valid names for enum fields.
	Options []EnumValue

	kind Kind
	b    func(*T) *bool
	f    func(*T) *float32
	i    func(*T) *int
	v3   func(*T) *[3]float32
}

// Kind returns the value type of the field.
func (f Field[T]) Kind() Kind {
	return f.kind
}

// Bool declares a boolean field shown as a checkbox.
func Bool[T any](key, uniform string, ref func(*T) *bool) Field[T] {
	return Field[T]{Key: key, Uniform: uniform, Widget: WidgetCheckbox, kind: KindBool, b: ref}
}

// Float declares a scalar field. A non-empty range presents it as a slider.
func Float[T any](key, uniform string, lo, hi float32, ref func(*T) *float32) Field[T] {
	w := WidgetDrag
	if lo != 0 || hi != 0 {
		w = WidgetSlider
	}
	return Field[T]{Key: key, Uniform: uniform, Widget: w, Min: lo, Max: hi, kind: KindFloat, f: ref}
}

// Int declares an integer field shown as a drag control.
func Int[T any](key, uniform string, ref func(*T) *int) Field[T] {
	return Field[T]{Key: key, Uniform: uniform, Widget: WidgetDrag, kind: KindInt, i: ref}
}

// Enum declares a named choice stored as an int. Scene documents refer to values by name.
func Enum[T any](key, uniform string, options []EnumValue, ref func(*T) *int) Field[T] {
	return Field[T]{Key: key, Uniform: uniform, Widget: WidgetCombo, Options: options, kind: KindEnum, i: ref}
}

// Vec3 declares a three component vector field.
func Vec3[T any](key, uniform string, lo, hi float32, ref func(*T) *[3]float32) Field[T] {
	return Field[T]{Key: key, Uniform: uniform, Widget: WidgetDrag, Min: lo, Max: hi, kind: KindVec3, v3: ref}
}

// Hidden returns a copy of the field that is not shown in the UI.
func (f Field[T]) Hidden() Field[T] {
	f.Widget = WidgetNone
	return f
}

// Table is the explicit property table of a component configuration struct T.
type Table[T any] struct {
	// Name prefixes error and log messages.
	Name   string
	Fields []Field[T]
}

// Uniform is one named shader uniform value produced by a Table.
type Uniform struct {
	Name  string
	Value any
}

// Control is a UI descriptor for one field, carrying its current value.
type Control struct {
	Key     string
	Widget  Widget
	Min     float32
	Max     float32
	Options []string
	Value   any
}

// Decode applies the values in raw onto dst. Every field that decodes is applied even
// when others fail, so a partially invalid document degrades instead of aborting.
//
// Parameters:
//   - dst: the configuration to update
//   - raw: the parsed document section, as produced by TOML or YAML unmarshalling
//
// Returns:
//   - error: every problem found joined together, or nil
func (t Table[T]) Decode(dst *T, raw map[string]any) error {
	var errs []error
	known := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		known[f.Key] = struct{}{}
		v, ok := raw[f.Key]
		if !ok {
			continue
		}
		if err := f.set(dst, v); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", t.Name, f.Key, err))
		}
	}

	var unknown []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		errs = append(errs, fmt.Errorf("%s: unknown keys %s", t.Name, strings.Join(unknown, ", ")))
	}
	return errors.Join(errs...)
}

// Encode serializes src into a document section readable by Decode.
//
// Parameters:
//   - src: the configuration to serialize
//
// Returns:
//   - map[string]any: one entry per field
func (t Table[T]) Encode(src *T) map[string]any {
	out := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		out[f.Key] = f.encode(src)
	}
	return out
}

// Uniforms lists the uniform-bound fields of src in table order.
//
// Parameters:
//   - src: the configuration to read
//
// Returns:
//   - []Uniform: the named uniform values
func (t Table[T]) Uniforms(src *T) []Uniform {
	out := make([]Uniform, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Uniform == "" {
			continue
		}
		out = append(out, Uniform{Name: f.Uniform, Value: f.get(src)})
	}
	return out
}

// Controls lists UI descriptors for every visible field of src.
//
// Parameters:
//   - src: the configuration to read
//
// Returns:
//   - []Control: the UI descriptors in table order
func (t Table[T]) Controls(src *T) []Control {
	out := make([]Control, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.Widget == WidgetNone {
			continue
		}
		c := Control{Key: f.Key, Widget: f.Widget, Min: f.Min, Max: f.Max, Value: f.encode(src)}
		for _, o := range f.Options {
			c.Options = append(c.Options, o.Name)
		}
		out = append(out, c)
	}
	return out
}

// Pack writes the uniform-bound fields of src into a WGSL uniform block. Fields are laid
// out in table order using WGSL alignment: bool as u32, float as f32, int and enum as
// i32, vec3 as vec3<f32> aligned to 16 bytes. The block is padded to 16 bytes.
//
// Parameters:
//   - src: the configuration to pack
//
// Returns:
//   - []byte: the packed block
func (t Table[T]) Pack(src *T) []byte {
	buf := make([]byte, 0, 64)
	put := func(align int, words ...uint32) {
		for len(buf)%align != 0 {
			buf = append(buf, 0)
		}
		for _, w := range words {
			buf = binary.LittleEndian.AppendUint32(buf, w)
		}
	}
	for _, f := range t.Fields {
		if f.Uniform == "" {
			continue
		}
		switch f.kind {
		case KindBool:
			var w uint32
			if *f.b(src) {
				w = 1
			}
			put(4, w)
		case KindFloat:
			put(4, math.Float32bits(*f.f(src)))
		case KindInt, KindEnum:
			put(4, uint32(int32(*f.i(src))))
		case KindVec3:
			v := *f.v3(src)
			put(16, math.Float32bits(v[0]), math.Float32bits(v[1]), math.Float32bits(v[2]))
		}
	}
	for len(buf) == 0 || len(buf)%16 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// Lookup returns the field with the given key.
func (t Table[T]) Lookup(key string) (Field[T], bool) {
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field[T]{}, false
}

// Set decodes a single raw value into the field with the given key.
//
// Parameters:
//   - dst: the configuration to update
//   - key: the field key
//   - v: the raw value
//
// Returns:
//   - error: an error if the key is unknown or the value does not decode
func (t Table[T]) Set(dst *T, key string, v any) error {
	f, ok := t.Lookup(key)
	if !ok {
		return fmt.Errorf("%s: unknown key %q", t.Name, key)
	}
	return f.set(dst, v)
}

func (f Field[T]) get(src *T) any {
	switch f.kind {
	case KindBool:
		return *f.b(src)
	case KindFloat:
		return *f.f(src)
	case KindInt, KindEnum:
		return *f.i(src)
	case KindVec3:
		return *f.v3(src)
	}
	return nil
}

func (f Field[T]) encode(src *T) any {
	switch f.kind {
	case KindEnum:
		v := *f.i(src)
		for _, o := range f.Options {
			if o.Value == v {
				return o.Name
			}
		}
		return v
	case KindVec3:
		v := *f.v3(src)
		return []any{float64(v[0]), float64(v[1]), float64(v[2])}
	case KindFloat:
		return float64(*f.f(src))
	}
	return f.get(src)
}

func (f Field[T]) set(dst *T, v any) error {
	switch f.kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		*f.b(dst) = b
	case KindFloat:
		x, err := toFloat(v)
		if err != nil {
			return err
		}
		*f.f(dst) = float32(x)
	case KindInt:
		x, err := toFloat(v)
		if err != nil {
			return err
		}
		if x != math.Trunc(x) {
			return fmt.Errorf("expected integer, got %v", v)
		}
		*f.i(dst) = int(x)
	case KindEnum:
		return f.setEnum(dst, v)
	case KindVec3:
		list, ok := v.([]any)
		if !ok || len(list) != 3 {
			return fmt.Errorf("expected list of 3 numbers, got %v", v)
		}
		var out [3]float32
		for i, e := range list {
			x, err := toFloat(e)
			if err != nil {
				return err
			}
			out[i] = float32(x)
		}
		*f.v3(dst) = out
	}
	return nil
}

func (f Field[T]) setEnum(dst *T, v any) error {
	if name, ok := v.(string); ok {
		for _, o := range f.Options {
			if strings.EqualFold(o.Name, name) {
				*f.i(dst) = o.Value
				return nil
			}
		}
		return fmt.Errorf("unknown value %q", name)
	}
	x, err := toFloat(v)
	if err != nil {
		return err
	}
	for _, o := range f.Options {
		if float64(o.Value) == x {
			*f.i(dst) = o.Value
			return nil
		}
	}
	return fmt.Errorf("value %v out of range", v)
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}
