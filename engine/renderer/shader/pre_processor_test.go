package shader

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func TestProcessConditionals(t *testing.T) {
	lib := NewLibrary(fstest.MapFS{
		"a.wgsl": {Data: []byte("top\n#ifdef NO_DISCARD\nadd\n#else\ndiscard\n#endif\n#ifndef SHADOW\nlit\n#endif\n")},
	})
	pp := NewPreProcessor(lib)

	out, err := pp.Process("a.wgsl", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "discard", "lit"}, lines(out))

	out, err = pp.Process("a.wgsl", []string{"NO_DISCARD", "SHADOW"})
	require.NoError(t, err)
	assert.Equal(t, []string{"top", "add"}, lines(out))
}

func TestProcessNestedConditionals(t *testing.T) {
	lib := NewLibrary(fstest.MapFS{
		"a.wgsl": {Data: []byte("#ifdef A\n#ifdef B\nab\n#else\na\n#endif\n#else\n#ifdef B\nb\n#endif\nnone\n#endif\n")},
	})
	pp := NewPreProcessor(lib)

	cases := []struct {
		defines []string
		want    []string
	}{
		{nil, []string{"none"}},
		{[]string{"A"}, []string{"a"}},
		{[]string{"A", "B"}, []string{"ab"}},
		{[]string{"B"}, []string{"b", "none"}},
	}
	for _, c := range cases {
		out, err := pp.Process("a.wgsl", c.defines)
		require.NoError(t, err)
		assert.Equal(t, c.want, lines(out), "defines %v", c.defines)
	}
}

func TestProcessIncludesOnceRelativeToFile(t *testing.T) {
	lib := NewLibrary(fstest.MapFS{
		"impostor/main.wgsl": {Data: []byte("#include \"../common/camera.wgsl\"\n#include \"../common/camera.wgsl\"\nmain\n")},
		"common/camera.wgsl": {Data: []byte("camera\n")},
	})
	out, err := NewPreProcessor(lib).Process("impostor/main.wgsl", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"camera", "main"}, lines(out))
}

func TestProcessDefineSubstitution(t *testing.T) {
	lib := NewLibrary(fstest.MapFS{
		"a.wgsl": {Data: []byte("#define LOCAL_SIZE 64\n@workgroup_size(LOCAL_SIZE_X, 1)\n@workgroup_size(LOCAL_SIZE)\n#undef LOCAL_SIZE\nLOCAL_SIZE\n")},
	})
	out, err := NewPreProcessor(lib).Process("a.wgsl", []string{"LOCAL_SIZE_X=128"})
	require.NoError(t, err)
	assert.Equal(t, []string{"@workgroup_size(128, 1)", "@workgroup_size(64)", "LOCAL_SIZE"}, lines(out))
}

func TestProcessErrors(t *testing.T) {
	lib := NewLibrary(fstest.MapFS{
		"cycle_a.wgsl": {Data: []byte("#include \"cycle_b.wgsl\"\n")},
		"cycle_b.wgsl": {Data: []byte("#include \"cycle_a.wgsl\"\n")},
		"unknown.wgsl": {Data: []byte("ok\n#pragma once\n")},
		"open.wgsl":    {Data: []byte("#ifdef A\nx\n")},
		"stray.wgsl":   {Data: []byte("#endif\n")},
		"twice.wgsl":   {Data: []byte("#ifdef A\n#else\n#else\n#endif\n")},
		"missing.wgsl": {Data: []byte("#include \"nope.wgsl\"\n")},
		"bare.wgsl":    {Data: []byte("#include nope.wgsl\n")},
	})
	pp := NewPreProcessor(lib)

	cases := map[string]string{
		"cycle_a.wgsl": "include cycle",
		"unknown.wgsl": "unknown.wgsl:2: unknown directive #pragma",
		"open.wgsl":    "open.wgsl:1: unterminated",
		"stray.wgsl":   "#endif without #ifdef",
		"twice.wgsl":   "duplicate #else",
		"missing.wgsl": "missing.wgsl:1:",
		"bare.wgsl":    "quoted path",
	}
	for file, want := range cases {
		_, err := pp.Process(file, nil)
		require.Error(t, err, file)
		assert.Contains(t, err.Error(), want, file)
	}
}

func TestProcessSkipsDirectivesInInactiveBranch(t *testing.T) {
	lib := NewLibrary(fstest.MapFS{
		"a.wgsl": {Data: []byte("#ifdef A\n#include \"missing.wgsl\"\n#define B\n#endif\n#ifdef B\nb\n#endif\n")},
	})
	out, err := NewPreProcessor(lib).Process("a.wgsl", nil)
	require.NoError(t, err)
	assert.Empty(t, lines(out))
}
