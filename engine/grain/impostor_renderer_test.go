package grain

import (
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/renderer/framebuffer"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAtlases(viewCounts ...int) AtlasSet {
	s := AtlasSet{BaseColor: &wgpu.TextureView{}, Normal: &wgpu.TextureView{}}
	for _, n := range viewCounts {
		s.Atlases = append(s.Atlases, Atlas{Name: "grain", ViewCount: n})
	}
	return s
}

func TestImpostorFlags(t *testing.T) {
	enc := newFakeEncoder()
	r := NewImpostorRenderer(enc, testCompiler(t))

	// without atlases the sprites are ray cast spheres
	assert.Equal(t, ImpostorSphere, r.Flags(TargetGBuffer))
	assert.Equal(t, ImpostorPassShadowMap|ImpostorSphere, r.Flags(TargetShadowMap))

	r.SetAtlases(testAtlases(8))
	props := DefaultImpostorProperties()
	props.NoDiscardInExtraFbo = true
	props.InterpolationMode = InterpolationNone
	props.PrecomputeInVertex = true
	r.SetProperties(props)

	assert.Equal(t, ImpostorNoDiscard|ImpostorNoInterpolation|ImpostorPrecomputeInVertex, r.Flags(TargetGBuffer))
	assert.Equal(t, ImpostorPassShadowMap|ImpostorNoInterpolation|ImpostorPrecomputeInVertex, r.Flags(TargetShadowMap))
}

func TestImpostorRendererDiscardDrawsIntoDestination(t *testing.T) {
	enc := newFakeEncoder()
	r := NewImpostorRenderer(enc, testCompiler(t), WithAtlases(testAtlases(8)))
	gbuffer := testGBuffer()
	f := testFrame(TargetGBuffer, gbuffer, newFakeScratch(64, 48))

	require.NoError(t, r.Render(newTestView(splitter.RenderModelImpostor, 40, 7), f))

	require.Len(t, enc.passes, 1)
	assert.Equal(t, framebuffer.Framebuffer(gbuffer), enc.passes[0].desc.Target)
	draws := enc.draws()
	require.Len(t, draws, 1)
	assert.Equal(t, "ImpostorSand_ShaderVariantFlags|GBuffer|step0", draws[0].key)
	assert.Equal(t, uint32(6), draws[0].args.VertexCount)
	assert.Equal(t, uint32(40), draws[0].args.InstanceCount)
	assert.Equal(t, uint32(7), draws[0].args.FirstInstance)

	res := enc.binders["ImpostorSand draw 0"].last().resources
	assert.Contains(t, res, "impostorColor")
	assert.Contains(t, res, "impostorNormal")
	assert.NotContains(t, res, "viewMatrices")

	impostor := res["impostor"].Data
	require.Len(t, impostor, 48)
	assert.Equal(t, float32(1), f32At(impostor, 0))
	assert.Equal(t, uint32(1), u32At(impostor, 12))
	assert.Equal(t, uint32(8), u32At(impostor, 16))
}

func TestImpostorRendererNoDiscardAccumulatesThenBlits(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultImpostorProperties()
	props.NoDiscardInExtraFbo = true
	r := NewImpostorRenderer(enc, testCompiler(t), WithImpostorProperties(props))
	gbuffer := testGBuffer()
	scratch := newFakeScratch(64, 48)
	f := testFrame(TargetGBuffer, gbuffer, scratch)

	require.NoError(t, r.Render(newTestView(splitter.RenderModelImpostor, 40, 0), f))

	assert.Equal(t, []string{"ImpostorSand accumulation", "ImpostorSand blit"}, enc.labels())
	aux := enc.passes[0].desc.Target
	require.NotNil(t, aux)
	assert.Equal(t, framebuffer.ScratchImpostorAux.String(), aux.Label())
	assert.False(t, enc.passes[0].desc.LoadColor)
	assert.Equal(t, framebuffer.Framebuffer(gbuffer), enc.passes[1].desc.Target)

	accumKey := "ImpostorSand_ShaderVariantFlags_NO_DISCARD_SPHERE_IMPOSTOR|GBuffer|step0"
	require.Equal(t, accumKey, enc.passes[0].draws[0].key)
	accum := enc.Pipeline(accumKey)
	assert.True(t, accum.BlendEnabled())
	assert.False(t, accum.DepthTestEnabled())

	blitKey := "ImpostorSand_ShaderVariantFlags_PASS_BLIT_TO_MAIN_FBO|blit"
	require.Equal(t, blitKey, enc.passes[1].draws[0].key)
	assert.Equal(t, uint32(3), enc.passes[1].draws[0].args.VertexCount)

	// the aux target is leased for the frame
	_, err := scratch.Checkout(framebuffer.PassImpostorAux)
	assert.ErrorIs(t, err, framebuffer.ErrScratchInUse)
}

func TestImpostorRendererPrerenderSurfaceSteps(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultImpostorProperties()
	props.PrerenderSurface = true
	r := NewImpostorRenderer(enc, testCompiler(t), WithImpostorProperties(props))
	f := testFrame(TargetGBuffer, testGBuffer(), newFakeScratch(64, 48))

	require.NoError(t, r.Render(newTestView(splitter.RenderModelImpostor, 12, 0), f))

	require.Len(t, enc.passes, 1)
	draws := enc.passes[0].draws
	require.Len(t, draws, 2)

	first := enc.Pipeline(draws[0].key)
	assert.Equal(t, wgpu.ColorWriteMaskNone, first.WriteMask())
	second := enc.Pipeline(draws[1].key)
	assert.Equal(t, wgpu.CompareFunctionLessEqual, second.DepthCompare())
	assert.True(t, second.DepthWriteEnabled())

	assert.Equal(t, uint32(0), u32At(enc.binders["ImpostorSand draw 0"].last().resources["frame"].Data, 232))
	assert.Equal(t, uint32(1), u32At(enc.binders["ImpostorSand draw 1"].last().resources["frame"].Data, 232))

	// the shadow map and first pass only runs draw once
	enc.passes = nil
	shadow := newFakeFramebuffer("ShadowMap", framebuffer.KindSpec(framebuffer.ScratchShadowMap, 64, 48))
	require.NoError(t, r.Render(newTestView(splitter.RenderModelImpostor, 12, 0), testFrame(TargetShadowMap, shadow, newFakeScratch(64, 48))))
	require.Len(t, enc.draws(), 1)
	assert.True(t, enc.Pipeline(enc.draws()[0].key).DepthOnly())

	props.FirstPassOnly = true
	r.SetProperties(props)
	enc.passes = nil
	require.NoError(t, r.Render(newTestView(splitter.RenderModelImpostor, 12, 0), f))
	assert.Len(t, enc.draws(), 1)
}

func TestImpostorRendererPrecomputedViewMatrices(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultImpostorProperties()
	props.PrecomputeViewMatrices = true

	r := NewImpostorRenderer(enc, testCompiler(t), WithImpostorProperties(props), WithAtlases(testAtlases(8, 16)))
	assert.Zero(t, r.Flags(TargetGBuffer)&ImpostorPrecomputeViewMatrices)

	r.SetAtlases(testAtlases(8, 8))
	require.NotZero(t, r.Flags(TargetGBuffer)&ImpostorPrecomputeViewMatrices)

	f := testFrame(TargetGBuffer, testGBuffer(), newFakeScratch(64, 48))
	require.NoError(t, r.Render(newTestView(splitter.RenderModelImpostor, 3, 0), f))
	res := enc.binders["ImpostorSand draw 0"].last().resources
	assert.Len(t, res["viewMatrices"].Data, 2*8*8*64)
	assert.Equal(t, uint32(2), u32At(res["impostor"].Data, 12))
}

func TestImpostorRendererDrawsSparseViews(t *testing.T) {
	enc := newFakeEncoder()
	r := NewImpostorRenderer(enc, testCompiler(t))
	v := newTestView(splitter.RenderModelImpostor, 1000, 0)
	v.sparse = true

	require.NoError(t, r.Render(v, testFrame(TargetGBuffer, testGBuffer(), newFakeScratch(64, 48))))
	draws := enc.draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(1000), draws[0].args.InstanceCount)
}
