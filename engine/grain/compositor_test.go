package grain

import (
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompositor(t *testing.T, enc *fakeEncoder, options ...CompositorBuilderOption) Compositor {
	t.Helper()
	compiler := testCompiler(t)
	rs := Renderers{
		Instance: NewInstanceRenderer(enc, compiler),
		Impostor: NewImpostorRenderer(enc, compiler),
		Far:      NewFarRenderer(enc, compiler),
	}
	return NewCompositor(enc, newFakeScratch(64, 48), rs, compiler, 64, 48, options...)
}

func testViews() fakeViews {
	return fakeViews{
		splitter.RenderModelInstance: newTestView(splitter.RenderModelInstance, 10, 0),
		splitter.RenderModelImpostor: newTestView(splitter.RenderModelImpostor, 20, 10),
		splitter.RenderModelPoint:    newTestView(splitter.RenderModelPoint, 30, 30),
	}
}

func testInput() FrameInput {
	id := [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}
	return FrameInput{Model: id, View: id, Projection: id}
}

func TestCompositorFrameOrder(t *testing.T) {
	enc := newFakeEncoder()
	c := newTestCompositor(t, enc)

	require.NoError(t, c.Render(testViews(), testInput()))

	assert.Equal(t, []string{
		"ShadowMap clear",
		"InstanceSand ShadowMap",
		"ImpostorSand ShadowMap",
		"GBuffer clear",
		"InstanceSand GBuffer",
		"ImpostorSand GBuffer",
		"FarSandEpsilonZBuffer",
		"FarSand accumulation",
		"FarSand blit",
		"Deferred",
	}, enc.labels())
	assert.Equal(t, []string{"begin", "end", "present"}, enc.frames)

	deferred := enc.passes[len(enc.passes)-1]
	assert.Nil(t, deferred.desc.Target)
	require.Len(t, deferred.draws, 1)
	assert.Equal(t, "Deferred_ShaderVariantFlags_SHADOW_MAP|swapchain", deferred.draws[0].key)
	assert.Equal(t, uint32(3), deferred.draws[0].args.VertexCount)

	res := enc.binders["Deferred"].last().resources
	assert.Len(t, res["deferred"].Data, deferredUniformsSize)
	assert.Contains(t, res, "shadowMap")

	// the G-buffer is created once and the scratch leases reset every frame
	require.NoError(t, c.Render(testViews(), testInput()))
	assert.Len(t, enc.framebuffers, 1)
	assert.Equal(t, "GBuffer", c.GBuffer().Label())
}

func TestCompositorWithoutShadows(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultDeferredProperties()
	props.Shadows = false
	c := newTestCompositor(t, enc, WithDeferredProperties(props))

	require.NoError(t, c.Render(testViews(), testInput()))

	assert.Equal(t, "GBuffer clear", enc.labels()[0])
	deferred := enc.passes[len(enc.passes)-1]
	assert.Equal(t, "Deferred_ShaderVariantFlags|swapchain", deferred.draws[0].key)
	assert.NotContains(t, enc.binders["Deferred"].last().resources, "shadowMap")
}

func TestCompositorDisabledModels(t *testing.T) {
	enc := newFakeEncoder()
	c := newTestCompositor(t, enc)
	p := c.Properties()
	p.DisableImpostors = true
	p.DisablePoints = true
	c.SetProperties(p)

	require.NoError(t, c.Render(testViews(), testInput()))
	assert.Equal(t, []string{
		"ShadowMap clear",
		"InstanceSand ShadowMap",
		"GBuffer clear",
		"InstanceSand GBuffer",
		"Deferred",
	}, enc.labels())
}

func TestCompositorHeadless(t *testing.T) {
	enc := newFakeEncoder()
	c := newTestCompositor(t, enc, WithHeadless())

	require.NoError(t, c.Render(testViews(), testInput()))
	assert.Equal(t, []string{"offscreen", "end"}, enc.frames)
	assert.NotContains(t, enc.labels(), "Deferred")
	assert.Contains(t, enc.labels(), "FarSand blit")
}

func TestCompositorContinuesPastRendererErrors(t *testing.T) {
	enc := newFakeEncoder()
	c := newTestCompositor(t, enc)
	views := testViews()
	stale := newTestView(splitter.RenderModelImpostor, 20, 0)
	stale.err = splitter.ErrStaleView
	views[splitter.RenderModelImpostor] = stale

	err := c.Render(views, testInput())
	require.ErrorIs(t, err, splitter.ErrStaleView)
	assert.NotContains(t, enc.labels(), "ImpostorSand GBuffer")
	assert.Contains(t, enc.labels(), "FarSand blit")
	assert.Contains(t, enc.labels(), "Deferred")
	assert.Equal(t, []string{"begin", "end", "present"}, enc.frames)
}

func TestCompositorDeferredUniforms(t *testing.T) {
	enc := newFakeEncoder()
	props := DefaultDeferredProperties()
	props.LightDirection = [3]float32{0, 2, 0}
	props.Ambient = 0.25
	props.Exposure = 1.5
	c := newTestCompositor(t, enc, WithDeferredProperties(props))

	require.NoError(t, c.Render(testViews(), testInput()))
	buf := enc.binders["Deferred"].last().resources["deferred"].Data
	require.Len(t, buf, deferredUniformsSize)

	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.InDelta(t, 0, f32At(buf, 128), 1e-6)
	assert.InDelta(t, 1, f32At(buf, 132), 1e-6)
	assert.InDelta(t, 0, f32At(buf, 136), 1e-6)
	assert.Equal(t, float32(0.25), f32At(buf, 140))
	assert.Equal(t, props.ShadowBias, f32At(buf, 156))
	assert.Equal(t, float32(1.5), f32At(buf, 172))
}

func TestCompositorResizeAndReload(t *testing.T) {
	enc := newFakeEncoder()
	c := newTestCompositor(t, enc)
	require.NoError(t, c.Render(testViews(), testInput()))

	require.NoError(t, c.Resize(128, 96))
	w, h := c.GBuffer().Size()
	assert.Equal(t, 128, w)
	assert.Equal(t, 96, h)

	c.Reload()
	assert.ElementsMatch(t, []string{"Deferred", "InstanceSand", "ImpostorSand", "FarSand"}, enc.evicted)
	assert.Empty(t, enc.pipelines)

	c.Release()
	assert.Nil(t, c.GBuffer())
	assert.True(t, enc.framebuffers[0].released)
	assert.True(t, enc.binders["Deferred"].released)
}

func TestRenderersRouteByModel(t *testing.T) {
	enc := newFakeEncoder()
	rs := Renderers{Far: NewFarRenderer(enc, testCompiler(t))}
	f := testFrame(TargetGBuffer, testGBuffer(), newFakeScratch(64, 48))

	require.NoError(t, rs.Render(splitter.RenderModelInstance, newTestView(splitter.RenderModelInstance, 5, 0), f))
	require.NoError(t, rs.Render(splitter.RenderModelNone, newTestView(splitter.RenderModelNone, 5, 0), f))
	assert.Empty(t, enc.passes)

	require.NoError(t, rs.Render(splitter.RenderModelPoint, newTestView(splitter.RenderModelPoint, 5, 0), f))
	assert.Equal(t, "FarSandEpsilonZBuffer", enc.labels()[0])
}
