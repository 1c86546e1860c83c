package material

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersConfigured(t *testing.T) {
	sand := NewMaterial(WithName("sand"))
	meshA := NewMaterial(WithName("meshA"))
	meshB := NewMaterial(WithName("meshB"))

	got := Resolve([]Material{sand}, []Material{meshA, meshB})
	require.Len(t, got, 2)
	assert.Equal(t, "sand", got[0].Name())
	assert.Equal(t, "meshB", got[1].Name())

	got = Resolve([]Material{sand, nil, sand}, nil)
	require.Len(t, got, 3)
	assert.Equal(t, NewMaterial().BaseColor(), got[1].BaseColor())

	assert.Empty(t, Resolve(nil, nil))
}

func TestDecodeConfig(t *testing.T) {
	c := DefaultConfig()
	err := Properties.Decode(&c, map[string]any{
		"baseColor": []any{0.8, 0.6, 0.4},
		"roughness": 0.9,
	})
	require.NoError(t, err)
	m := FromConfig(c)
	assert.InDelta(t, 0.6, m.BaseColor()[1], 1e-6)
	assert.InDelta(t, 0.9, m.Roughness(), 1e-6)
	assert.Zero(t, m.Metallic())
}

func TestMarshalMaterials(t *testing.T) {
	g := GPUMaterial{BaseColor: [3]float32{1, 0.5, 0.25}, Metallic: 0.1, Roughness: 0.7}
	assert.Equal(t, 32, g.Size())

	buf := MarshalMaterials([]Material{NewMaterial(WithRoughness(0.7))})
	require.Len(t, buf, MaxMaterials*32+16)
	assert.Equal(t, float32(0.7), math.Float32frombits(binary.LittleEndian.Uint32(buf[16:])))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[MaxMaterials*32:]))
}
