package loader

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/grain-go/engine/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binPoints(values ...float32) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
	}
	return buf.Bytes()
}

func TestLoadPointsBin(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.BIN")
	require.NoError(t, os.WriteFile(path, binPoints(0, 1, 2, 3, 4, 5), 0o644))

	l := NewLoader()
	pc, err := l.LoadPoints(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pc.PointCount())
	assert.Equal(t, [3]float32{3, 4, 5}, pc.Point(0, 1))

	again, err := l.LoadPoints(path)
	require.NoError(t, err)
	assert.Same(t, pc, again)
	assert.Same(t, pc, l.Cloud(path))
}

func TestLoadPointsBinRejectsTruncated(t *testing.T) {
	l := NewLoader()
	_, err := l.LoadPointsReader("short", bytes.NewReader(binPoints(1, 2)), FormatBin)
	assert.Error(t, err)
	assert.Nil(t, l.Cloud("short"))

	_, err = l.LoadPointsReader("nan", bytes.NewReader(binPoints(1, 2, float32(math.NaN()))), FormatBin)
	assert.Error(t, err)
}

func TestLoadPointsXYZ(t *testing.T) {
	src := `# exported stacking
0 0 0 255 200 100

1.5 -2 3e-1
`
	l := NewLoader()
	pc, err := l.LoadPointsReader("text", strings.NewReader(src), FormatXYZ)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), pc.PointCount())
	assert.Equal(t, [3]float32{1.5, -2, 0.3}, pc.Point(0, 1))

	_, err = l.LoadPointsReader("bad", strings.NewReader("1 2\n"), FormatXYZ)
	assert.ErrorContains(t, err, "line 1")
}

func TestLoadPointsFrames(t *testing.T) {
	l := NewLoader(WithFrameCount(2), WithFPS(5))
	pc, err := l.LoadPointsReader("anim", bytes.NewReader(binPoints(0, 0, 0, 1, 1, 1)), FormatBin)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pc.PointCount())
	assert.Equal(t, uint32(2), pc.FrameCount())
	assert.Equal(t, float32(5), pc.FPS())
}

func TestUnsupportedFormat(t *testing.T) {
	l := NewLoader()
	_, err := l.LoadPoints("cloud.ply")
	assert.ErrorContains(t, err, "unsupported point format")
	_, err = l.LoadMesh("grain.gltf")
	assert.ErrorContains(t, err, "unsupported mesh format")
}

func TestLoadMeshOBJWithMaterials(t *testing.T) {
	dir := t.TempDir()
	obj := `mtllib grain.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
usemtl quartz
f 1//1 2//1 3//1 4//1
usemtl basalt
f -4 -2 -1
`
	mtl := `newmtl quartz
Kd 0.9 0.85 0.7
Pr 0.3
newmtl basalt
Kd 0.2 0.2 0.2
Pm 0.1
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grain.obj"), []byte(obj), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grain.mtl"), []byte(mtl), 0o644))

	l := NewLoader()
	m, err := l.LoadMesh(filepath.Join(dir, "grain.obj"))
	require.NoError(t, err)

	assert.Equal(t, 9, m.IndexCount(), "quad fans into two triangles plus one triangle")
	assert.Len(t, m.Vertices(), 7)
	assert.Equal(t, [3]float32{0, 0, 1}, m.Vertices()[0].Normal)

	require.Len(t, m.Materials(), 2)
	assert.Equal(t, "quartz", m.Materials()[0].Name())
	assert.InDelta(t, 0.3, m.Materials()[0].Roughness(), 1e-6)
	assert.InDelta(t, 0.1, m.Materials()[1].Metallic(), 1e-6)
	assert.Nil(t, m.MeshProvider(), "no renderer, no upload")
}

func TestLoadMeshReaderErrors(t *testing.T) {
	l := NewLoader()
	_, err := l.LoadMeshReader("empty", strings.NewReader("v 0 0 0\n"))
	assert.ErrorContains(t, err, "no faces")

	_, err = l.LoadMeshReader("range", strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	assert.ErrorContains(t, err, "out of range")

	m, err := l.LoadMeshReader("tri", strings.NewReader("v 2 0 0\nv 0 2 0\nv 0 0 2\nusemtl x\nf 1 2 3\n"))
	require.NoError(t, err)
	assert.Equal(t, [3]float32{1, 0, 0}, m.Vertices()[0].Normal)
	require.Len(t, m.Materials(), 1)
	assert.Equal(t, "x", m.Materials()[0].Name())
}

func TestUploadMeshWithoutRenderer(t *testing.T) {
	l := NewLoader(WithMesh("sphere", model.NewIcosphere("sphere", 0, 1)))
	m := l.Mesh("sphere")
	require.NotNil(t, m)
	assert.NoError(t, l.UploadMesh(m))
	assert.Nil(t, m.MeshProvider())
	l.Release()
	assert.Nil(t, l.Mesh("sphere"))
}
