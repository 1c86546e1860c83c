package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testViewProj() [16]float32 {
	var view, proj, vp [16]float32
	LookAt(view[:], [3]float32{0, 0, 5}, [3]float32{0, 0, 0}, [3]float32{0, 1, 0})
	Perspective(proj[:], math.Pi/2, 1, 0.1, 100)
	Mul4(vp[:], proj[:], view[:])
	return vp
}

func TestFrustumContainsPoint(t *testing.T) {
	vp := testViewProj()
	f := ExtractFrustumFromMatrix(vp[:])

	tests := []struct {
		name string
		p    [3]float32
		want bool
	}{
		{"origin", [3]float32{0, 0, 0}, true},
		{"behind camera", [3]float32{0, 0, 6}, false},
		{"beyond far plane", [3]float32{0, 0, -200}, false},
		{"far left", [3]float32{-50, 0, 0}, false},
		{"slightly right", [3]float32{1, 0, 0}, true},
		{"far above", [3]float32{0, 50, 0}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ContainsPoint(tt.p))
		})
	}
}

func TestFrustumContainsSphereStraddlingPlane(t *testing.T) {
	vp := testViewProj()
	f := ExtractFrustumFromMatrix(vp[:])

	// at z=0 the 90 degree frustum spans x in [-5, 5]
	assert.False(t, f.ContainsSphere([3]float32{5.5, 0, 0}, 0.1))
	assert.True(t, f.ContainsSphere([3]float32{5.5, 0, 0}, 1))
}

func TestBBox(t *testing.T) {
	b := EmptyBBox()
	assert.True(t, b.IsEmpty())
	b.Expand([3]float32{-1, 0, 2})
	b.Expand([3]float32{1, 2, 4})

	assert.False(t, b.IsEmpty())
	assert.Equal(t, [3]float32{0, 1, 3}, b.Center())
	assert.True(t, b.Contains([3]float32{1, 2, 4}))
	assert.False(t, b.Contains([3]float32{1.01, 2, 4}))
	assert.InDelta(t, math.Sqrt(12)/2, b.Radius(), standardTol)
}
