package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/assets"
	"github.com/Carmen-Shannon/grain-go/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestInitWritesLoadableDocument(t *testing.T) {
	for _, name := range []string{"sand.toml", "sand.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			out, err := execute(t, "init", path, "--points", "500")
			require.NoError(t, err)
			assert.Contains(t, out, "wrote "+path)

			doc, err := scene.LoadDocument(path)
			require.NoError(t, err)
			require.NotNil(t, doc.Points.Generate)
			assert.Equal(t, uint32(500), doc.Points.Generate.Count)
			settings, err := doc.Settings()
			require.NoError(t, err)
			assert.Equal(t, scene.DefaultSettings().Splitter, settings.Splitter)
		})
	}
}

func TestInitKeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sand.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = \"mine\"\n"), 0o644))

	_, err := execute(t, "init", path)
	assert.ErrorContains(t, err, "--force")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name = \"mine\"\n", string(data))

	_, err = execute(t, "init", "--force", path)
	require.NoError(t, err)
	doc, err := scene.LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "sand", doc.Name)
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "init", filepath.Join(t.TempDir(), "sand.json"))
	assert.ErrorContains(t, err, "unsupported document")
}

func TestValidateBundledShaders(t *testing.T) {
	out, err := execute(t, "validate-shaders", "--naga=false", "-q")
	require.NoError(t, err)
	assert.Equal(t, "283 variants, 0 failed\n", out)
}

func TestValidateReportsBrokenShader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.CopyFS(dir, assets.Shaders()))
	path := filepath.Join(dir, "Deferred.wgsl")
	src, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(src, "\n#ifdef UNTERMINATED\n"...), 0o644))

	out, err := execute(t, "validate-shaders", "--naga=false", "-q", "--shaders", dir)
	assert.ErrorContains(t, err, "2 of 283 variants failed")
	assert.Contains(t, out, "FAIL Deferred_ShaderVariantFlags:")
	assert.Contains(t, out, "FAIL Deferred_ShaderVariantFlags_SHADOW_MAP:")
	assert.Contains(t, out, "unterminated conditional block")
	assert.NotContains(t, out, "FAIL FarSand")
}

func TestValidateMissingShaderDirectory(t *testing.T) {
	_, err := execute(t, "validate-shaders", "--shaders", filepath.Join(t.TempDir(), "missing"))
	assert.ErrorContains(t, err, "shader directory")
}

func TestBenchReportsFrames(t *testing.T) {
	out, err := execute(t, "bench", "--points", "2000", "--frames", "5", "--width", "160", "--height", "90", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "sand: 2000 points, 160x90, 5 frames")
	assert.Contains(t, out, "FPS:")
}

func TestBenchMissingScene(t *testing.T) {
	_, err := execute(t, "bench", filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWindowOptions(t *testing.T) {
	opts := runOptions{width: 1280, height: 720, minSize: []int{320, 200}, maxSize: []int{1920, 1080}}
	winOpts, err := windowOptions("GrainViewer | sand", opts)
	require.NoError(t, err)
	assert.Len(t, winOpts, 5)

	opts.minSize = []int{2000, 200}
	_, err = windowOptions("sand", opts)
	assert.ErrorContains(t, err, "exceeds --max-size")

	opts.maxSize = []int{1920}
	_, err = windowOptions("sand", opts)
	assert.ErrorContains(t, err, "--max-size wants two positive sizes")
}

func TestRunRejectsBadWindowSize(t *testing.T) {
	_, err := execute(t, "run", "--points", "10", "--min-size", "0,200")
	assert.ErrorContains(t, err, "--min-size wants two positive sizes")
}
