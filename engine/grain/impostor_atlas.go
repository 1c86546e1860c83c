package grain

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
	"github.com/cogentcore/webgpu/wgpu"
)

// MaxAtlases is the number of atlas layers the impostor shader can address.
const MaxAtlases = 8

// Atlas describes one baked impostor atlas: 2*ViewCount*ViewCount views of the grain laid
// out on an octahedron, ViewCount*ViewCount per hemisphere.
type Atlas struct {
	Name      string
	ViewCount int
}

// AtlasSet is the set of atlases the impostor renderer samples. Each texture holds one
// array layer per atlas, each layer tiled as 2*ViewCount columns of ViewCount rows.
type AtlasSet struct {
	Atlases []Atlas

	// BaseColor holds albedo in rgb and coverage in a.
	BaseColor *wgpu.TextureView

	// Normal holds the grain space normal remapped to [0, 1].
	Normal *wgpu.TextureView
}

// Empty reports whether the set can be sampled at all.
func (s AtlasSet) Empty() bool {
	return len(s.Atlases) == 0 || s.BaseColor == nil || s.Normal == nil
}

// SharedViewCount returns the view count every atlas uses.
//
// Returns:
//   - int: the common view count, or 0 if there are no atlases
//   - bool: false if the atlases disagree
func (s AtlasSet) SharedViewCount() (int, bool) {
	if len(s.Atlases) == 0 {
		return 0, false
	}
	n := s.Atlases[0].ViewCount
	for _, a := range s.Atlases[1:] {
		if a.ViewCount != n {
			return 0, false
		}
	}
	return n, true
}

// ViewDirection returns the direction baked view i was rendered from. The first n*n views
// cover the lower hemisphere, the next n*n the upper one, both on an octahedral grid.
//
// Parameters:
//   - i: the view index in [0, 2*n*n)
//   - n: the view count per axis
//
// Returns:
//   - [3]float32: the unit view direction in grain space
func ViewDirection(i, n int) [3]float32 {
	n = max(n, 1)
	eps := float32(-1)
	if i >= n*n {
		i -= n * n
		eps = 1
	}
	den := float32(max(n, 2) - 1)
	u, v := float32(i/n)/den, float32(i%n)/den
	x := u + v - 1
	y := u - v
	// Equator views round to a tiny z of either sign, so the hemisphere sets the sign.
	z := eps * max(1-math32.Abs(x)-math32.Abs(y), 1e-4)
	return normalize(x, y, z)
}

// InverseBakingViewMatrix returns the matrix taking the baking view space of view i back to
// grain space. Its columns are the view's x, y and z axes, z pointing at the camera.
//
// Parameters:
//   - i: the view index in [0, 2*n*n)
//   - n: the view count per axis
//
// Returns:
//   - [16]float32: the column-major rotation
func InverseBakingViewMatrix(i, n int) [16]float32 {
	ez := ViewDirection(i, n)
	ex := [3]float32{ez[1], -ez[0], 0}
	if ex[0]*ex[0]+ex[1]*ex[1] < 1e-12 {
		ex = [3]float32{1, 0, 0}
	} else {
		ex = normalize(ex[0], ex[1], ex[2])
	}
	ey := [3]float32{
		ez[1]*ex[2] - ez[2]*ex[1],
		ez[2]*ex[0] - ez[0]*ex[2],
		ez[0]*ex[1] - ez[1]*ex[0],
	}
	return [16]float32{
		ex[0], ex[1], ex[2], 0,
		ey[0], ey[1], ey[2], 0,
		ez[0], ez[1], ez[2], 0,
		0, 0, 0, 1,
	}
}

// PackViewMatrices packs the inverse baking view matrices of every view, the layout of the
// viewMatrices storage buffer.
//
// Parameters:
//   - n: the view count per axis
//
// Returns:
//   - []byte: 2*n*n column-major mat4x4f
func PackViewMatrices(n int) []byte {
	count := 2 * n * n
	buf := make([]byte, 0, count*64)
	for i := range count {
		m := InverseBakingViewMatrix(i, n)
		for _, f := range m {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

func normalize(x, y, z float32) [3]float32 {
	l := math32.Sqrt(x*x + y*y + z*z)
	if l == 0 {
		return [3]float32{}
	}
	return [3]float32{x / l, y / l, z / l}
}
