package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blitSource = `
@group(0) @binding(0) var accum: texture_2d<f32>;
@vertex fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4f {
    return vec4f(0.0, 0.0, 0.0, 1.0);
}
@fragment fn fs_main() -> @location(0) vec4f { return vec4f(1.0); }
`

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("k", PipelineTypeRender)
	assert.True(t, p.DepthTestEnabled())
	assert.True(t, p.DepthWriteEnabled())
	assert.Equal(t, wgpu.CompareFunctionLess, p.DepthCompare())
	assert.Equal(t, wgpu.TextureFormatDepth24Plus, p.DepthFormat())
	assert.False(t, p.BlendEnabled())
	assert.Empty(t, p.Targets())
	assert.Zero(t, p.SampleCount())
	assert.Nil(t, p.Pipeline())
}

func TestWithProgramSetsStages(t *testing.T) {
	prog, err := shader.NewProgram("Blit", "Blit", nil, blitSource)
	require.NoError(t, err)

	p := NewPipeline("Blit|aux", PipelineTypeRender,
		WithProgram(prog),
		WithTargets(wgpu.TextureFormatRGBA16Float, wgpu.TextureFormatRGBA16Float),
		WithBlendState(BlendAdditive()),
		WithDepthFormat(wgpu.TextureFormatUndefined),
	)
	assert.Equal(t, "vs_main", p.Shader(shader.ShaderTypeVertex).EntryPoint())
	assert.Equal(t, "fs_main", p.Shader(shader.ShaderTypeFragment).EntryPoint())
	assert.Nil(t, p.Shader(shader.ShaderTypeCompute))
	assert.Len(t, p.Targets(), 2)
	assert.Equal(t, uint32(1), p.SampleCount())
	assert.True(t, p.BlendEnabled())
	assert.Equal(t, wgpu.BlendFactorOne, p.BlendState().Color.DstFactor)
	assert.Equal(t, wgpu.TextureFormatUndefined, p.DepthFormat())
}

func TestWithDepthOnly(t *testing.T) {
	p := NewPipeline("Occluder", PipelineTypeRender,
		WithTargets(wgpu.TextureFormatRGBA8Unorm),
		WithDepthOnly(),
		WithDepthFormat(wgpu.TextureFormatDepth32Float),
	)
	assert.True(t, p.DepthOnly())
	assert.Empty(t, p.Targets())
	assert.Equal(t, uint32(1), p.SampleCount())
}
