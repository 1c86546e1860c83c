package grain

import (
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFarRendererShellCulling(t *testing.T) {
	enc := newFakeEncoder()
	r := NewFarRenderer(enc, testCompiler(t))
	gbuffer := testGBuffer()
	f := testFrame(TargetGBuffer, gbuffer, newFakeScratch(64, 48))

	require.NoError(t, r.Render(newTestView(splitter.RenderModelPoint, 500, 200), f))

	require.Equal(t, []string{"FarSandEpsilonZBuffer", "FarSand accumulation", "FarSand blit"}, enc.labels())
	eps, accum, blitPass := enc.passes[0], enc.passes[1], enc.passes[2]

	assert.Equal(t, framebuffer.ScratchFarEpsilonDepth.String(), eps.desc.Target.Label())
	assert.False(t, eps.desc.LoadDepth)
	assert.Equal(t, "FarSandEpsilonZBuffer_ShaderVariantFlags|epsilon", eps.draws[0].key)
	assert.True(t, enc.Pipeline(eps.draws[0].key).DepthOnly())

	assert.Equal(t, framebuffer.ScratchFarAccum.String(), accum.desc.Target.Label())
	assert.Equal(t, eps.desc.Target, accum.desc.DepthFrom)
	assert.True(t, accum.desc.LoadDepth)
	accumPipeline := enc.Pipeline(accum.draws[0].key)
	require.NotNil(t, accumPipeline)
	assert.Equal(t, "FarSand_ShaderVariantFlags_SHELL_CULLING|accumulate", accum.draws[0].key)
	assert.False(t, accumPipeline.DepthWriteEnabled())
	assert.True(t, accumPipeline.BlendEnabled())

	for _, d := range []drawRecord{eps.draws[0], accum.draws[0]} {
		assert.Equal(t, uint32(6), d.args.VertexCount)
		assert.Equal(t, uint32(500), d.args.InstanceCount)
		assert.Equal(t, uint32(200), d.args.FirstInstance)
	}

	assert.Equal(t, framebuffer.Framebuffer(gbuffer), blitPass.desc.Target)
	assert.Equal(t, "FarSand_ShaderVariantFlags_PASS_BLIT_TO_MAIN_FBO|blit", blitPass.draws[0].key)

	far := enc.binders["FarSand splats"].last().resources["far"].Data
	require.Len(t, far, 32)
	assert.InDelta(t, 0.007, f32At(far, 0), 1e-7)
	assert.Equal(t, float32(10), f32At(far, 4))
}

func TestFarRendererDirect(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultFarProperties()
	props.UseShellCulling = false
	r := NewFarRenderer(enc, testCompiler(t), WithFarProperties(props))
	gbuffer := testGBuffer()

	require.NoError(t, r.Render(newTestView(splitter.RenderModelPoint, 9, 0), testFrame(TargetGBuffer, gbuffer, newFakeScratch(64, 48))))

	require.Equal(t, []string{"FarSand"}, enc.labels())
	assert.Equal(t, framebuffer.Framebuffer(gbuffer), enc.passes[0].desc.Target)
	assert.Equal(t, "FarSand_ShaderVariantFlags|direct", enc.passes[0].draws[0].key)
}

func TestFarRendererNoBlend(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultFarProperties()
	props.DisableBlend = true
	r := NewFarRenderer(enc, testCompiler(t), WithFarProperties(props))

	require.NoError(t, r.Render(newTestView(splitter.RenderModelPoint, 9, 0), testFrame(TargetGBuffer, testGBuffer(), newFakeScratch(64, 48))))
	key := enc.passes[1].draws[0].key
	assert.Equal(t, "FarSand_ShaderVariantFlags_SHELL_CULLING|accumulate|noblend", key)
	assert.False(t, enc.Pipeline(key).BlendEnabled())
}

func TestFarRendererSkipsShadowMap(t *testing.T) {
	enc := newFakeEncoder()
	r := NewFarRenderer(enc, testCompiler(t))
	shadow := newFakeFramebuffer("ShadowMap", framebuffer.KindSpec(framebuffer.ScratchShadowMap, 64, 48))

	require.NoError(t, r.Render(newTestView(splitter.RenderModelPoint, 9, 0), testFrame(TargetShadowMap, shadow, newFakeScratch(64, 48))))
	assert.Empty(t, enc.passes)
}

func TestFarPropertyTableKeepsBlendHostSide(t *testing.T) {
	p := DefaultFarProperties()
	a := FarPropertyTable.Pack(&p)
	p.DisableBlend = true
	assert.Equal(t, a, FarPropertyTable.Pack(&p))
}
