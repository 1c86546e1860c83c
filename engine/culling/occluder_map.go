package culling

import (
	"math"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// farDepth is the cleared depth, +Inf. Depths are non-negative view distances so their
// float bits order like unsigned integers.
const farDepth = 0x7f800000

// softwareOccluderMap stores the nearest view distance (clip w) rasterized at each texel.
type softwareOccluderMap struct {
	width, height int
	generation    uint64
	bias          float32
	depth         []uint32
}

var _ OccluderMap = &softwareOccluderMap{}

func newSoftwareOccluderMap(width, height int) *softwareOccluderMap {
	m := &softwareOccluderMap{}
	m.resize(width, height)
	return m
}

func (m *softwareOccluderMap) Width() int {
	return m.width
}

func (m *softwareOccluderMap) Height() int {
	return m.height
}

func (m *softwareOccluderMap) Generation() uint64 {
	return m.generation
}

func (m *softwareOccluderMap) TextureView() *wgpu.TextureView {
	return nil
}

func (m *softwareOccluderMap) Occludes(clip [4]float32) bool {
	tx, ty, ok := m.texel(clip)
	if !ok {
		return false
	}
	d := math.Float32frombits(atomic.LoadUint32(&m.depth[ty*m.width+tx]))
	return clip[3] > d+m.bias
}

// Depth returns the stored view distance of a texel, +Inf where nothing was rasterized.
func (m *softwareOccluderMap) Depth(x, y int) float32 {
	return math.Float32frombits(atomic.LoadUint32(&m.depth[y*m.width+x]))
}

func (m *softwareOccluderMap) resize(width, height int) {
	m.width, m.height = max(width, 1), max(height, 1)
	m.depth = make([]uint32, m.width*m.height)
	m.clear()
}

func (m *softwareOccluderMap) clear() {
	for i := range m.depth {
		m.depth[i] = farDepth
	}
}

// texel maps a clip space position to the texel it falls in. Row 0 is the top of the view.
func (m *softwareOccluderMap) texel(clip [4]float32) (int, int, bool) {
	w := clip[3]
	if w <= 0 {
		return 0, 0, false
	}
	x, y := clip[0]/w, clip[1]/w
	if x < -1 || x > 1 || y < -1 || y > 1 {
		return 0, 0, false
	}
	tx := min(int((x*0.5+0.5)*float32(m.width)), m.width-1)
	ty := min(int((0.5-y*0.5)*float32(m.height)), m.height-1)
	return tx, ty, true
}

// splat writes depth over the texels covered by a sprite centered at clip with the given
// radius in texels along each axis. The texel under the center is always covered.
func (m *softwareOccluderMap) splat(clip [4]float32, rx, ry float32, disc bool) {
	cx, cy, ok := m.texel(clip)
	if !ok {
		return
	}
	bits := math.Float32bits(clip[3])
	m.store(cx, cy, bits)

	w := clip[3]
	px := (clip[0]/w*0.5 + 0.5) * float32(m.width)
	py := (0.5 - clip[1]/w*0.5) * float32(m.height)
	x0, x1 := max(int(px-rx), 0), min(int(px+rx), m.width-1)
	y0, y1 := max(int(py-ry), 0), min(int(py+ry), m.height-1)
	for y := y0; y <= y1; y++ {
		dy := (float32(y) + 0.5 - py) / max(ry, 1e-6)
		for x := x0; x <= x1; x++ {
			dx := (float32(x) + 0.5 - px) / max(rx, 1e-6)
			if dx < -1 || dx > 1 || dy < -1 || dy > 1 {
				continue
			}
			if disc && dx*dx+dy*dy > 1 {
				continue
			}
			m.store(x, y, bits)
		}
	}
}

// store keeps the minimum of the current and the new depth. Splats from different
// workers may race on a texel.
func (m *softwareOccluderMap) store(x, y int, bits uint32) {
	p := &m.depth[y*m.width+x]
	for {
		old := atomic.LoadUint32(p)
		if bits >= old || atomic.CompareAndSwapUint32(p, old, bits) {
			return
		}
	}
}
