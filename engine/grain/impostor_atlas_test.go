package grain

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/grain-go/common"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewDirectionHemispheres(t *testing.T) {
	for _, n := range []int{2, 8, 12, 16} {
		for i := range 2 * n * n {
			d := ViewDirection(i, n)
			assert.InDelta(t, 1, math32.Sqrt(d[0]*d[0]+d[1]*d[1]+d[2]*d[2]), 1e-5, "n=%d view %d", n, i)
			if i < n*n {
				assert.Less(t, d[2], float32(0), "n=%d view %d", n, i)
			} else {
				assert.Greater(t, d[2], float32(0), "n=%d view %d", n, i)
			}
		}
	}

	// the center of the upper grid looks straight down the z axis
	const odd = 9
	center := ViewDirection(odd*odd+(odd/2)*odd+odd/2, odd)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, center[:], 1e-6)
}

func TestEquatorViewsMirrorAcrossHemispheres(t *testing.T) {
	const n = 16
	for i := range n * n {
		lower, upper := ViewDirection(i, n), ViewDirection(i+n*n, n)
		assert.InDelta(t, lower[0], upper[0], 1e-6, "view %d", i)
		assert.InDelta(t, lower[1], upper[1], 1e-6, "view %d", i)
		assert.InDelta(t, -lower[2], upper[2], 1e-6, "view %d", i)
		assert.NotEqual(t, InverseBakingViewMatrix(i, n), InverseBakingViewMatrix(i+n*n, n), "view %d", i)
	}
}

func TestInverseBakingViewMatrixIsOrthonormal(t *testing.T) {
	const n = 6
	for i := range 2 * n * n {
		m := InverseBakingViewMatrix(i, n)
		cols := [3][3]float32{
			{m[0], m[1], m[2]},
			{m[4], m[5], m[6]},
			{m[8], m[9], m[10]},
		}
		for a := range 3 {
			for b := range 3 {
				d := cols[a][0]*cols[b][0] + cols[a][1]*cols[b][1] + cols[a][2]*cols[b][2]
				want := float32(0)
				if a == b {
					want = 1
				}
				assert.InDelta(t, want, d, 1e-5, "view %d columns %d %d", i, a, b)
			}
		}
		dir := ViewDirection(i, n)
		assert.InDeltaSlice(t, dir[:], cols[2][:], 1e-6)
		assert.Equal(t, float32(1), m[15])
	}
}

func TestPackViewMatrices(t *testing.T) {
	buf := PackViewMatrices(4)
	require.Len(t, buf, 2*4*4*64)

	m := InverseBakingViewMatrix(5, 4)
	for k := range 16 {
		assert.Equal(t, m[k], f32At(buf, 5*64+k*4))
	}
}

func TestAtlasSetSharedViewCount(t *testing.T) {
	var empty AtlasSet
	assert.True(t, empty.Empty())
	_, ok := empty.SharedViewCount()
	assert.False(t, ok)

	s := testAtlases(12, 12)
	assert.False(t, s.Empty())
	n, ok := s.SharedViewCount()
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	s.Normal = nil
	assert.True(t, s.Empty())

	_, ok = testAtlases(12, 16).SharedViewCount()
	assert.False(t, ok)
}

func TestStageAtlasesChecksSizes(t *testing.T) {
	sizes := map[string][2]uint32{
		"a.png": {64, 32}, "a_n.png": {64, 32},
		"b.png": {64, 32}, "b_n.png": {64, 32},
		"c.png": {32, 32}, "c_n.png": {64, 32},
	}
	load := func(path string) (common.TextureStagingData, error) {
		s, ok := sizes[path]
		if !ok {
			return common.TextureStagingData{}, errors.New("missing " + path)
		}
		return common.TextureStagingData{Width: s[0], Height: s[1], Pixels: make([]byte, s[0]*s[1]*4)}, nil
	}

	color, normal, err := stageAtlases([]AtlasFile{
		{Name: "a", ViewCount: 8, BaseColor: "a.png", Normal: "a_n.png"},
		{Name: "b", ViewCount: 8, BaseColor: "b.png", Normal: "b_n.png"},
	}, load)
	require.NoError(t, err)
	assert.Len(t, color, 2)
	assert.Len(t, normal, 2)

	_, _, err = stageAtlases([]AtlasFile{{Name: "c", ViewCount: 8, BaseColor: "c.png", Normal: "c_n.png"}}, load)
	assert.ErrorContains(t, err, "normal is 64x32")

	_, _, err = stageAtlases([]AtlasFile{{Name: "d", ViewCount: 8, BaseColor: "d.png", Normal: "d_n.png"}}, load)
	assert.ErrorContains(t, err, "missing d.png")

	_, _, err = stageAtlases([]AtlasFile{{Name: "a", BaseColor: "a.png", Normal: "a_n.png"}}, load)
	assert.ErrorContains(t, err, "view count")

	_, _, err = stageAtlases(make([]AtlasFile, MaxAtlases+1), load)
	assert.Error(t, err)
}
