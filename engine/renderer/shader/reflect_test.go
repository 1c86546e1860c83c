package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const splitSource = `
// element buffer output
const LOCAL_SIZE_X: u32 = 128u;

struct Params {
    viewMatrix: mat4x4<f32>,
    instanceLimit: f32,
    impostorLimit: f32,
    pointCount: u32,
    flags: u32,
}

struct Counters {
    count: array<atomic<u32>, 3>,
    offset: array<u32, 3>,
}

/* block /* nested */ comment */
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> points: array<vec4<f32>>;
@group(0) @binding(2) var<storage, read_write> counters: Counters;
@group(1) @binding(0) var occluderMap: texture_depth_2d;
@group(1) @binding(1) var atlasSampler: sampler;

@compute @workgroup_size(LOCAL_SIZE_X)
fn classify(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestReflectComputeProgram(t *testing.T) {
	s, err := NewShader("split", ShaderTypeCompute, splitSource)
	require.NoError(t, err)

	assert.Equal(t, "classify", s.EntryPoint())
	assert.Equal(t, [3]uint32{128, 1, 1}, s.WorkgroupSize())

	groups := s.BindGroupLayoutDescriptors()
	require.Len(t, groups, 2)
	g0 := groups[0].Entries
	require.Len(t, g0, 3)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, g0[0].Buffer.Type)
	assert.Equal(t, uint64(80), g0[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, g0[1].Buffer.Type)
	assert.Equal(t, uint64(16), g0[1].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, g0[2].Buffer.Type)
	assert.Equal(t, uint64(24), g0[2].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageCompute, g0[2].Visibility)

	g1 := groups[1].Entries
	assert.Equal(t, wgpu.TextureSampleTypeDepth, g1[0].Texture.SampleType)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, g1[1].Sampler.Type)

	assert.Equal(t, "counters", s.BindGroupVarName(0, 2))
	b, ok := s.BindGroupFromVarName(1, "atlasSampler")
	assert.True(t, ok)
	assert.Equal(t, 1, b)
	_, ok = s.BindGroupFromVarName(0, "missing")
	assert.False(t, ok)
}

func TestReflectRenderProgram(t *testing.T) {
	src := `
struct VertexIn {
    @location(0) position: vec3f,
    @location(1) normal: vec3<f32>,
}
struct VertexOut {
    @builtin(position) clip: vec4f,
    @location(0) normal: vec3f,
}
@vertex fn vs_main(in: VertexIn) -> VertexOut { var out: VertexOut; return out; }
@fragment fn fs_main(in: VertexOut) -> @location(0) vec4f { return vec4f(1.0); }
`
	p, err := NewProgram("mesh", "mesh", nil, src)
	require.NoError(t, err)
	assert.Nil(t, p.Stage(ShaderTypeCompute))

	vs := p.Stage(ShaderTypeVertex)
	require.NotNil(t, vs)
	assert.Equal(t, "vs_main", vs.EntryPoint())
	layouts := vs.VertexLayouts()
	require.Len(t, layouts, 1)
	assert.Equal(t, uint64(24), layouts[0].ArrayStride)
	assert.Equal(t, uint64(12), layouts[0].Attributes[1].Offset)
	assert.Equal(t, wgpu.VertexFormatFloat32x3, layouts[0].Attributes[1].Format)

	assert.Equal(t, "fs_main", p.Stage(ShaderTypeFragment).EntryPoint())
}

func TestReflectVertexLayoutsIgnoresFragmentOutputs(t *testing.T) {
	src := `
struct VertexOut {
    @builtin(position) clip: vec4f,
}
struct GBuffer {
    @location(0) color: vec4f,
    @location(1) normal: vec4f,
}
@vertex
fn vs_main(@builtin(vertex_index) vid: u32) -> VertexOut { var out: VertexOut; return out; }
@fragment fn fs_main(in: VertexOut) -> GBuffer { var out: GBuffer; return out; }
`
	p, err := NewProgram("sprite", "sprite", nil, src)
	require.NoError(t, err)
	assert.Empty(t, p.Stage(ShaderTypeVertex).VertexLayouts())
}

func TestNewProgramWithoutEntryPoint(t *testing.T) {
	_, err := NewProgram("empty", "empty", nil, "struct A { x: f32, }")
	assert.Error(t, err)
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "a \nb\n c", stripComments("a // one\nb\n/* x /* y */ z */ c"))
}
