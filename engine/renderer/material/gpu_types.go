package material

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxMaterials is the length of the material array bound to the instance shaders.
const MaxMaterials = 4

// GPUMaterial is the GPU-aligned representation of a Material.
// Matches the WGSL Material struct in the grain shaders.
// Size: 32 bytes (vec3 + f32, f32 + 3 pad, std140 aligned).
type GPUMaterial struct {
	BaseColor [3]float32 // offset  0: albedo (12 bytes)
	Metallic  float32    // offset 12: metallic factor (4 bytes)
	Roughness float32    // offset 16: roughness factor (4 bytes)
	_         [3]float32 // offset 20: padding to 32 (12 bytes)
}

// Size returns the size of the GPUMaterial struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUMaterial) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMaterial struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload.
func (g *GPUMaterial) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.BaseColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.BaseColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.BaseColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Metallic))
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Roughness))
	return buf
}

// MarshalMaterials packs up to MaxMaterials materials followed by the material count, the
// layout of the MaterialBlock uniform. Missing slots are zero.
//
// Parameters:
//   - mats: the resolved materials
//
// Returns:
//   - []byte: the packed block, MaxMaterials*32 + 16 bytes
func MarshalMaterials(mats []Material) []byte {
	buf := make([]byte, 0, MaxMaterials*32+16)
	for i := range MaxMaterials {
		var g GPUMaterial
		if i < len(mats) {
			g = mats[i].GPU()
		}
		buf = append(buf, g.Marshal()...)
	}
	count := make([]byte, 16)
	binary.LittleEndian.PutUint32(count, uint32(min(len(mats), MaxMaterials)))
	return append(buf, count...)
}
