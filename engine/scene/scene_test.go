package scene

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/grain"
	"github.com/Carmen-Shannon/grain-go/engine/splitter"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlScene = `
name = "dune"
mesh = "grain.obj"

[points]
fps = 30.0

[points.generate]
count = 500
shape = "box"
extent = 0.5
seed = 9

[camera]
fov = 60.0
elevation = 20.0

[shaders.farSand]
file = "far_custom.wgsl"
defines = ["SHELL_DEBUG"]

[shaders.impostor]

[grain]
grainRadius = 0.01

[farSand]
debugShape = "Square"
epsilonFactor = 2.5

[splitter]
strategy = "PrefixSum"
enableOcclusionCulling = false

[deferred]
shadows = true
lightColor = [1.0, 0.9, 0.8]

[[materials]]
name = "quartz"
baseColor = [0.9, 0.85, 0.8]
roughness = 0.3

[[materials]]
name = "feldspar"
metallic = 0.1
`

const yamlScene = `
name: dune
points:
  file: points.xyz
  frames: 4
atlases:
  - name: round
    viewCount: 8
    baseColor: atlas/round_color.png
    normal: atlas/round_normal.png
impostor:
  grainScale: 1.5
  interpolationMode: 1
splitter:
  instanceLimit: 0.5
  impostorLimit: 4
`

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.toml": FormatTOML, "b.YAML": FormatYAML, "dir/c.yml": FormatYAML} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
	_, err := FormatOf("scene.json")
	assert.Error(t, err)
}

func TestDecodeTOMLDocument(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(tomlScene), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "dune", doc.Name)
	assert.Equal(t, "grain.obj", doc.Mesh)
	require.NotNil(t, doc.Points.Generate)
	assert.Equal(t, uint32(500), doc.Points.Generate.Count)
	assert.Equal(t, "box", doc.Points.Generate.Shape)
	assert.Equal(t, float32(30), doc.Points.FPS)
	assert.Equal(t, float32(60), doc.Camera.Fov)
	assert.Nil(t, doc.Camera.Fit)

	s, err := doc.Settings()
	require.NoError(t, err)
	assert.Equal(t, float32(0.01), s.Grain.GrainRadius)
	assert.Equal(t, float32(0.01), s.Splitter.GrainRadius, "the grain radius is shared")
	assert.Equal(t, float32(0.01), s.Far.Radius)
	assert.Equal(t, grain.DebugShapeSquare, s.Far.DebugShape)
	assert.Equal(t, float32(2.5), s.Far.EpsilonFactor)
	assert.Equal(t, splitter.StrategyPrefixSum, s.Splitter.CullingStrategy())
	assert.False(t, s.Splitter.EnableOcclusionCulling)
	assert.True(t, s.Deferred.Shadows)
	assert.Equal(t, [3]float32{1, 0.9, 0.8}, s.Deferred.LightColor)

	require.Len(t, s.Materials, 2)
	assert.Equal(t, "quartz", s.Materials[0].Name())
	assert.Equal(t, float32(0.3), s.Materials[0].Roughness())
	assert.Equal(t, "feldspar", s.Materials[1].Name())
	assert.Equal(t, float32(0.1), s.Materials[1].Metallic())
	assert.Equal(t, [3]float32{1, 1, 1}, s.Materials[1].BaseColor(), "missing fields keep the default")
}

func TestDecodeYAMLDocument(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(yamlScene), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "points.xyz", doc.Points.File)
	assert.Equal(t, uint32(4), doc.Points.Frames)
	require.Len(t, doc.Atlases, 1)
	assert.Equal(t, AtlasSection{Name: "round", ViewCount: 8, BaseColor: "atlas/round_color.png", Normal: "atlas/round_normal.png"}, doc.Atlases[0])

	s, err := doc.Settings()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), s.Impostor.GrainScale)
	assert.Equal(t, 1, s.Impostor.InterpolationMode)
	assert.Equal(t, float32(0.5), s.Splitter.InstanceLimit)
	assert.Equal(t, float32(4), s.Splitter.ImpostorLimit)
	assert.Equal(t, grain.DefaultProperties(), s.Grain)
}

func TestDecodeEmptyYAMLDocument(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	s, err := doc.Settings()
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSettingsDegradeToDefaults(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(`
[grain]
grainRadius = "large"
grainMeshScale = 0.3
grainSize = 2.0

[farSand]
weightMode = "Cubic"

[[materials]]
name = "odd"
roughness = "rough"
`), FormatTOML)
	require.NoError(t, err)

	s, err := doc.Settings()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grain.grainRadius")
	assert.Contains(t, err.Error(), "unknown keys grainSize")
	assert.Contains(t, err.Error(), "farSand.weightMode")
	assert.Contains(t, err.Error(), "materials[0]")

	assert.Equal(t, grain.DefaultProperties().GrainRadius, s.Grain.GrainRadius)
	assert.Equal(t, float32(0.3), s.Grain.GrainMeshScale, "valid values still apply")
	assert.Equal(t, grain.DefaultFarProperties().WeightMode, s.Far.WeightMode)
	require.Len(t, s.Materials, 1)
	assert.Equal(t, "odd", s.Materials[0].Name())
}

func TestSplitterGrainRadiusWins(t *testing.T) {
	doc := &Document{
		Grain:    map[string]any{"grainRadius": 0.02},
		Splitter: map[string]any{"grainRadius": 0.03},
	}
	s, err := doc.Settings()
	require.NoError(t, err)
	assert.Equal(t, float32(0.02), s.Grain.GrainRadius)
	assert.Equal(t, float32(0.03), s.Splitter.GrainRadius)
	assert.Equal(t, float32(0.02), s.Far.Radius)
}

func TestDefaultDocumentRoundTrips(t *testing.T) {
	for _, format := range []Format{FormatTOML, FormatYAML} {
		var buf bytes.Buffer
		require.NoError(t, DefaultDocument(1000).Encode(&buf, format))

		doc, err := DecodeDocument(&buf, format)
		require.NoError(t, err, format)
		require.NotNil(t, doc.Points.Generate)
		assert.Equal(t, uint32(1000), doc.Points.Generate.Count)

		s, err := doc.Settings()
		require.NoError(t, err, format)
		assert.Equal(t, DefaultSettings(), s, format)
	}
}

func TestShaderEntries(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(tomlScene), FormatTOML)
	require.NoError(t, err)

	entries := doc.ShaderEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "farSand", entries[0].Name)
	assert.Equal(t, "far_custom.wgsl", entries[0].File)
	assert.Equal(t, []string{"SHELL_DEBUG"}, entries[0].Defines)
	assert.Equal(t, "impostor", entries[1].Name)
	assert.Equal(t, "impostor.wgsl", entries[1].File)
}

func TestLoadDocumentResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("points:\n  file: data/pile.xyz\n"), 0o644))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "pile", doc.Name)
	assert.Equal(t, filepath.Join(dir, "data", "pile.xyz"), doc.Resolve(doc.Points.File))
	assert.Equal(t, "/abs/pile.xyz", doc.Resolve("/abs/pile.xyz"))

	_, err = LoadDocument(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func newSoftwareScene(t *testing.T, doc *Document) Scene {
	t.Helper()
	s, err := NewScene(doc, WithWorkers(2), WithSize(96, 64))
	require.NoError(t, err)
	t.Cleanup(s.Release)
	return s
}

func heapDocument(count uint32) *Document {
	return &Document{
		Name:   "heap",
		Points: PointsSection{Generate: &GenerateSection{Count: count, Seed: 4}},
		Camera: CameraSection{Elevation: 35},
	}
}

func TestSceneRendersSoftwareFrame(t *testing.T) {
	s := newSoftwareScene(t, heapDocument(3000))
	assert.Nil(t, s.Compositor())
	assert.Equal(t, uint32(3000), s.Points().PointCount())

	require.NoError(t, s.Render(context.Background()))
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Frames)
	assert.Equal(t, uint32(3000), stats.Points)
	assert.True(t, stats.Occlusion)

	var drawn uint32
	for _, c := range stats.Splitter.Counts {
		drawn += c
	}
	assert.Equal(t, stats.Points, drawn+stats.Splitter.Culled)
	assert.NotZero(t, drawn, "the fitted camera sees the heap")
}

func TestSceneCameraFramesPoints(t *testing.T) {
	s := newSoftwareScene(t, heapDocument(2000))
	cam := s.Camera()
	b := s.Points().Bounds()

	assert.Equal(t, b.Center(), cam.Controller().Target())
	assert.InDelta(t, 35*math32.Pi/180, cam.Controller().Elevation(), 1e-5)
	f := cam.Frustum()
	assert.True(t, f.ContainsPoint(b.Center()))
}

func TestSceneTogglesAndOcclusion(t *testing.T) {
	s := newSoftwareScene(t, heapDocument(2000))

	assert.False(t, s.ToggleOcclusion())
	assert.False(t, s.Splitter().Properties().EnableOcclusionCulling)
	require.NoError(t, s.Render(context.Background()))
	assert.False(t, s.Stats().Occlusion)

	assert.False(t, s.ToggleModel(splitter.RenderModelImpostor))
	assert.True(t, s.Settings().Grain.DisableImpostors)
	assert.True(t, s.ToggleModel(splitter.RenderModelImpostor))
	assert.False(t, s.ToggleModel(splitter.RenderModelNone))

	shadows := s.Settings().Deferred.Shadows
	assert.Equal(t, !shadows, s.ToggleShadows())
}

func TestScenePauseStopsAnimation(t *testing.T) {
	doc := heapDocument(500)
	doc.Points.Generate.Frames = 10
	doc.Points.FPS = 10
	s := newSoftwareScene(t, doc)

	s.Update(0.25)
	assert.InDelta(t, 0.25, s.Time(), 1e-6)

	s.SetPaused(true)
	s.Update(1)
	assert.InDelta(t, 0.25, s.Time(), 1e-6)

	require.NoError(t, s.Render(context.Background()))
	assert.Equal(t, s.Points().FrameAt(0.25), s.Stats().PointFrame)
}

func TestSceneAutoRotates(t *testing.T) {
	doc := heapDocument(500)
	doc.Camera.AutoRotate = 90
	s := newSoftwareScene(t, doc)

	before := s.Camera().ViewMatrix()
	s.Update(1)
	assert.InDelta(t, math32.Pi/2, s.Camera().Controller().Azimuth(), 1e-4)
	assert.NotEqual(t, before, s.Camera().ViewMatrix())
}

func TestSceneResize(t *testing.T) {
	s := newSoftwareScene(t, heapDocument(500))
	require.NoError(t, s.Resize(200, 100))
	assert.Equal(t, float32(2), s.Camera().Aspect())
	require.NoError(t, s.Resize(0, 100))
	assert.Equal(t, float32(2), s.Camera().Aspect())
	require.NoError(t, s.Render(context.Background()))
}

func TestSceneRequiresCompilerToRender(t *testing.T) {
	_, err := NewScene(heapDocument(10), WithEncoder(grain.NewEncoder(nil)))
	assert.Error(t, err)
}

func TestSceneMissingPointFile(t *testing.T) {
	doc := &Document{Name: "missing", Points: PointsSection{File: filepath.Join(t.TempDir(), "none.xyz")}}
	_, err := NewScene(doc, WithWorkers(1))
	assert.Error(t, err)
}

func TestSceneCancelledRender(t *testing.T) {
	s := newSoftwareScene(t, heapDocument(5000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Render(ctx), context.Canceled)
}

// failingSplitter fails every split after the first.
type failingSplitter struct {
	splitter.Splitter
	runs int
}

func (f *failingSplitter) PreRender(ctx context.Context, in splitter.FrameInput) error {
	f.runs++
	if f.runs > 1 {
		return errors.New("device lost")
	}
	return f.Splitter.PreRender(ctx, in)
}

func TestSceneDrawsThroughSplitterFailure(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	defer log.SetOutput(os.Stderr)

	s := newSoftwareScene(t, heapDocument(2000))
	impl := s.(*scene)
	failing := &failingSplitter{Splitter: impl.split}
	impl.split = failing

	require.NoError(t, s.Render(context.Background()))
	require.NoError(t, s.Render(context.Background()))
	require.NoError(t, s.Render(context.Background()))
	assert.Equal(t, 3, failing.runs)
	assert.Equal(t, uint64(3), s.Stats().Frames, "failed splits still finish the frame")
	assert.Equal(t, 1, strings.Count(logs.String(), "splitting failed"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Render(ctx), context.Canceled)
}
