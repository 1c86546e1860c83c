package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// typeLayout is the byte size and alignment of a WGSL type in a host-shareable address space.
type typeLayout struct {
	size  uint64
	align uint64
}

type structField struct {
	name     string
	typeName string
	location int
	builtin  bool
}

type structDecl struct {
	name   string
	fields []structField
}

type vertexFormat struct {
	format wgpu.VertexFormat
	size   uint64
}

// vectorSpellings expands a scalar suffix into both the generic and the shorthand spelling
// of a WGSL vector type, e.g. vec3<f32> and vec3f.
func vectorSpellings(n int, scalar string) []string {
	return []string{
		"vec" + strconv.Itoa(n) + "<" + scalar + ">",
		"vec" + strconv.Itoa(n) + scalar[:1],
	}
}

var (
	vertexFormats = func() map[string]vertexFormat {
		m := map[string]vertexFormat{
			"f32": {wgpu.VertexFormatFloat32, 4},
			"u32": {wgpu.VertexFormatUint32, 4},
			"i32": {wgpu.VertexFormatSint32, 4},
		}
		formats := map[string][3]wgpu.VertexFormat{
			"f32": {wgpu.VertexFormatFloat32x2, wgpu.VertexFormatFloat32x3, wgpu.VertexFormatFloat32x4},
			"u32": {wgpu.VertexFormatUint32x2, wgpu.VertexFormatUint32x3, wgpu.VertexFormatUint32x4},
			"i32": {wgpu.VertexFormatSint32x2, wgpu.VertexFormatSint32x3, wgpu.VertexFormatSint32x4},
		}
		for scalar, f := range formats {
			for n := 2; n <= 4; n++ {
				for _, name := range vectorSpellings(n, scalar) {
					m[name] = vertexFormat{f[n-2], uint64(4 * n)}
				}
			}
		}
		return m
	}()

	primitiveLayouts = func() map[string]typeLayout {
		m := map[string]typeLayout{
			"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "bool": {4, 4},
			"atomic<u32>": {4, 4}, "atomic<i32>": {4, 4},
		}
		for _, scalar := range []string{"f32", "i32", "u32"} {
			for _, name := range vectorSpellings(2, scalar) {
				m[name] = typeLayout{8, 8}
			}
			for _, name := range vectorSpellings(3, scalar) {
				m[name] = typeLayout{12, 16}
			}
			for _, name := range vectorSpellings(4, scalar) {
				m[name] = typeLayout{16, 16}
			}
		}
		// matCxR<f32>: C columns, each padded to the alignment of vecR
		for c := 2; c <= 4; c++ {
			for r := 2; r <= 4; r++ {
				col := m["vec"+strconv.Itoa(r)+"<f32>"]
				name := "mat" + strconv.Itoa(c) + "x" + strconv.Itoa(r)
				l := typeLayout{uint64(c) * roundUp(col.align, col.size), col.align}
				m[name+"<f32>"] = l
				m[name+"f"] = l
			}
		}
		return m
	}()

	textureDimensions = map[string]wgpu.TextureViewDimension{
		"texture_2d":             wgpu.TextureViewDimension2D,
		"texture_2d_array":       wgpu.TextureViewDimension2DArray,
		"texture_3d":             wgpu.TextureViewDimension3D,
		"texture_cube":           wgpu.TextureViewDimensionCube,
		"texture_depth_2d":       wgpu.TextureViewDimension2D,
		"texture_depth_2d_array": wgpu.TextureViewDimension2DArray,
		"texture_storage_2d":     wgpu.TextureViewDimension2D,
	}

	sampleTypes = map[string]wgpu.TextureSampleType{
		"f32": wgpu.TextureSampleTypeFloat,
		"i32": wgpu.TextureSampleTypeSint,
		"u32": wgpu.TextureSampleTypeUint,
	}

	storageFormats = map[string]wgpu.TextureFormat{
		"rgba8unorm":  wgpu.TextureFormatRGBA8Unorm,
		"rgba16float": wgpu.TextureFormatRGBA16Float,
		"rgba32float": wgpu.TextureFormatRGBA32Float,
		"r32uint":     wgpu.TextureFormatR32Uint,
		"r32float":    wgpu.TextureFormatR32Float,
	}

	storageAccess = map[string]wgpu.StorageTextureAccess{
		"write":      wgpu.StorageTextureAccessWriteOnly,
		"read":       wgpu.StorageTextureAccessReadOnly,
		"read_write": wgpu.StorageTextureAccessReadWrite,
	}
)

var (
	structRe        = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRe      = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRe       = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRe         = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)
	vertexParamsRe  = regexp.MustCompile(`(?s)@vertex\s*fn\s+\w+\s*\(((?:[^()]|\([^()]*\))*)\)`)
	workgroupSizeRe = regexp.MustCompile(`@workgroup_size\(\s*(\w+)\s*(?:,\s*(\w+)\s*(?:,\s*(\w+)\s*)?)?\)`)
	constRe         = regexp.MustCompile(`const\s+(\w+)\s*(?::\s*\w+)?\s*=\s*(\d+)u?\s*;`)
	bindingRe       = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
	entryRes        = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}
)

func roundUp(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// reflectEntryPoint returns the name of the first entry point of the given stage, or "" if
// the source has none.
func reflectEntryPoint(source string, stage ShaderType) string {
	re, ok := entryRes[stage]
	if !ok {
		return ""
	}
	if m := re.FindStringSubmatch(source); m != nil {
		return m[1]
	}
	return ""
}

// reflectWorkgroupSize reads @workgroup_size. Dimensions may be literals or names of
// module-scope integer constants. Missing dimensions default to 1.
func reflectWorkgroupSize(source string) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	m := workgroupSizeRe.FindStringSubmatch(source)
	if m == nil {
		return size
	}
	consts := map[string]uint32{}
	for _, c := range constRe.FindAllStringSubmatch(source, -1) {
		if v, err := strconv.ParseUint(c[2], 10, 32); err == nil {
			consts[c[1]] = uint32(v)
		}
	}
	for i, dim := range m[1:] {
		if dim == "" {
			continue
		}
		if v, err := strconv.ParseUint(dim, 10, 32); err == nil {
			size[i] = uint32(v)
		} else if v, ok := consts[dim]; ok {
			size[i] = v
		}
	}
	return size
}

// reflectVertexLayouts builds one vertex buffer layout per vertex input struct, in source
// order. A vertex input struct is a parameter of the vertex entry point with @location
// fields and no @builtin field.
func reflectVertexLayouts(source string) []wgpu.VertexBufferLayout {
	m := vertexParamsRe.FindStringSubmatch(source)
	if m == nil {
		return nil
	}
	params := m[1]
	var layouts []wgpu.VertexBufferLayout
	for _, s := range parseStructs(source) {
		if !isVertexInput(s) || !regexp.MustCompile(`:\s*`+s.name+`\b`).MatchString(params) {
			continue
		}
		var offset uint64
		attrs := make([]wgpu.VertexAttribute, 0, len(s.fields))
		ok := true
		for _, f := range s.fields {
			vf, known := vertexFormats[f.typeName]
			if !known {
				ok = false
				break
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vf.format,
				Offset:         offset,
				ShaderLocation: uint32(f.location),
			})
			offset += vf.size
		}
		if !ok {
			continue
		}
		layouts = append(layouts, wgpu.VertexBufferLayout{
			ArrayStride: offset,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  attrs,
		})
	}
	return layouts
}

func isVertexInput(s structDecl) bool {
	located := false
	for _, f := range s.fields {
		if f.builtin {
			return false
		}
		if f.location >= 0 {
			located = true
		}
	}
	return located
}

// reflectBindGroups collects every @group/@binding declaration into layout descriptors keyed
// by group, with entries sorted by binding. Buffer bindings carry a MinBindingSize resolved
// from the declared type; runtime-sized arrays resolve to one element.
func reflectBindGroups(source string, visibility wgpu.ShaderStage) (map[int]wgpu.BindGroupLayoutDescriptor, map[int]map[int]string) {
	layouts := structLayouts(parseStructs(source))
	entries := map[int][]wgpu.BindGroupLayoutEntry{}
	names := map[int]map[int]string{}

	for _, m := range bindingRe.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		typeName := strings.TrimSpace(m[5])

		entry := bindingEntry(uint32(binding), visibility, strings.TrimSpace(m[3]), typeName)
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := layoutOf(typeName, layouts); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}
		entries[group] = append(entries[group], entry)
		if names[group] == nil {
			names[group] = map[int]string{}
		}
		names[group][binding] = m[4]
	}

	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(entries))
	for g, e := range entries {
		sort.Slice(e, func(i, j int) bool { return e[i].Binding < e[j].Binding })
		out[g] = wgpu.BindGroupLayoutDescriptor{Entries: e}
	}
	return out, names
}

func bindingEntry(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) wgpu.BindGroupLayoutEntry {
	e := wgpu.BindGroupLayoutEntry{Binding: binding, Visibility: visibility}
	switch {
	case addressSpace == "uniform":
		e.Buffer.Type = wgpu.BufferBindingTypeUniform
		return e
	case strings.HasPrefix(addressSpace, "storage"):
		e.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			e.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		return e
	}

	base, params, _ := strings.Cut(typeName, "<")
	params = strings.TrimSpace(strings.TrimSuffix(params, ">"))
	switch {
	case typeName == "sampler":
		e.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		e.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(base, "texture_storage_"):
		e.StorageTexture.ViewDimension = textureDimensions[base]
		format, access, _ := strings.Cut(params, ",")
		e.StorageTexture.Format = storageFormats[strings.TrimSpace(format)]
		e.StorageTexture.Access = storageAccess[strings.TrimSpace(access)]
	case strings.HasPrefix(base, "texture_depth_"):
		e.Texture.SampleType = wgpu.TextureSampleTypeDepth
		e.Texture.ViewDimension = textureDimensions[base]
	case strings.HasPrefix(base, "texture_"):
		e.Texture.ViewDimension = textureDimensions[base]
		e.Texture.SampleType = sampleTypes[params]
	}
	return e
}

// layoutOf resolves a type against primitives and known structs. Fixed arrays multiply
// the element stride; runtime arrays resolve to a single element.
func layoutOf(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	elem, count, fixed := strings.Cut(strings.TrimSuffix(inner, ">"), ",")
	el, ok := layoutOf(strings.TrimSpace(elem), known)
	if !ok {
		return typeLayout{}, false
	}
	stride := roundUp(el.align, el.size)
	if !fixed {
		return typeLayout{stride, el.align}, true
	}
	n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{n * stride, el.align}, true
}

// structLayouts resolves struct sizes, repeating until no struct that depends on another
// struct is left unresolved.
func structLayouts(structs []structDecl) map[string]typeLayout {
	known := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []structDecl
		for _, s := range pending {
			if l, ok := structLayout(s, known); ok {
				known[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return known
}

func structLayout(s structDecl, known map[string]typeLayout) (typeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, f := range s.fields {
		if f.builtin {
			continue
		}
		l, ok := layoutOf(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		if strings.HasPrefix(f.typeName, "array<") && !strings.Contains(f.typeName, ",") {
			// a trailing runtime array contributes its element to the minimum size only
			// when the struct has no fixed prefix
			if offset == 0 {
				return l, true
			}
			break
		}
		offset = roundUp(l.align, offset) + l.size
		align = max(align, l.align)
	}
	return typeLayout{roundUp(align, offset), align}, true
}

func parseStructs(source string) []structDecl {
	var out []structDecl
	for _, m := range structRe.FindAllStringSubmatch(source, -1) {
		s := structDecl{name: m[1]}
		for _, part := range splitFields(m[2]) {
			part = strings.TrimSpace(part)
			fm := fieldRe.FindStringSubmatch(part)
			if fm == nil {
				continue
			}
			f := structField{name: fm[1], typeName: strings.TrimSpace(fm[2]), location: -1}
			f.builtin = builtinRe.MatchString(part)
			if lm := locationRe.FindStringSubmatch(part); lm != nil {
				f.location, _ = strconv.Atoi(lm[1])
			}
			s.fields = append(s.fields, f)
		}
		out = append(out, s)
	}
	return out
}

// splitFields splits a struct body at commas outside angle brackets.
func splitFields(body string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, body[start:])
}

// stripComments removes line comments and (nested) block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case depth == 0 && source[i] == '/' && source[i+1] == '/':
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
