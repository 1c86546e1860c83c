package pipeline

import (
	"github.com/Carmen-Shannon/grain-go/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// PipelineBuilderOption is a functional option applied to a pipeline during construction via NewPipeline.
type PipelineBuilderOption func(*pipeline)

// WithProgram sets every stage the program declares.
//
// Parameters:
//   - prog: the compiled program
//
// Returns:
//   - PipelineBuilderOption: a function that applies the program's stages
func WithProgram(prog shader.Program) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = prog.Stage(shader.ShaderTypeVertex)
		p.fragmentShader = prog.Stage(shader.ShaderTypeFragment)
		p.computeShader = prog.Stage(shader.ShaderTypeCompute)
	}
}

// WithVertexShader sets the vertex shader for a render pipeline.
//
// Parameters:
//   - s: the vertex Shader
//
// Returns:
//   - PipelineBuilderOption: a function that applies the vertex shader option
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertexShader = s
	}
}

// WithFragmentShader sets the fragment shader for a render pipeline.
//
// Parameters:
//   - s: the fragment Shader
//
// Returns:
//   - PipelineBuilderOption: a function that applies the fragment shader option
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragmentShader = s
	}
}

// WithComputeShader sets the compute shader for a compute pipeline.
//
// Parameters:
//   - s: the compute Shader
//
// Returns:
//   - PipelineBuilderOption: a function that applies the compute shader option
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.computeShader = s
	}
}

// WithDepthTestEnabled toggles depth testing. A disabled test compares with Always.
func WithDepthTestEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthTestEnabled = enabled
	}
}

// WithDepthWriteEnabled toggles depth writes.
func WithDepthWriteEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthWriteEnabled = enabled
	}
}

// WithDepthCompare sets the depth comparison used while depth testing is enabled.
func WithDepthCompare(compare wgpu.CompareFunction) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthCompare = compare
	}
}

// WithDepthFormat sets the depth attachment format. wgpu.TextureFormatUndefined removes the
// depth attachment entirely.
func WithDepthFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthFormat = format
	}
}

// WithDepthBias sets the constant and slope scaled depth bias, used by shadow map passes.
//
// Parameters:
//   - bias: the constant depth bias
//   - slopeScale: the slope scaled depth bias
//
// Returns:
//   - PipelineBuilderOption: a function that applies the depth bias option
func WithDepthBias(bias int32, slopeScale float32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.depthBias = bias
		p.depthBiasSlopeScale = slopeScale
	}
}

// WithBlendEnabled toggles blending on every color target.
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithBlendState sets the blend state and enables blending.
//
// Parameters:
//   - blendState: the blend state, e.g. BlendAlpha() or BlendAdditive()
//
// Returns:
//   - PipelineBuilderOption: a function that applies the blend state
func WithBlendState(blendState *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendState = blendState
		p.blendEnabled = blendState != nil
	}
}

func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

func WithFrontFace(frontFace wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.frontFace = frontFace
	}
}

func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithTargets sets the color attachment formats for an offscreen render pipeline and
// renders without multisampling.
//
// Parameters:
//   - formats: the color formats in attachment order
//
// Returns:
//   - PipelineBuilderOption: a function that applies the targets
func WithTargets(formats ...wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.targets = formats
		p.sampleCount = 1
	}
}

// WithDepthOnly renders into the depth attachment only. A fragment stage may still be set to
// discard fragments.
//
// Returns:
//   - PipelineBuilderOption: a function that drops every color target
func WithDepthOnly() PipelineBuilderOption {
	return func(p *pipeline) {
		p.targets = nil
		p.sampleCount = 1
		p.depthOnly = true
	}
}
