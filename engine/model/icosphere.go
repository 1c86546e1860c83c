package model

import (
	"github.com/chewxy/math32"
)

// NewIcosphere builds a unit-normal icosphere of the given radius, the default grain mesh
// when no mesh file is configured. Each subdivision splits every triangle into four.
//
// Parameters:
//   - name: the model identifier
//   - subdivisions: the number of subdivision rounds, clamped to [0, 5]
//   - radius: the sphere radius
//
// Returns:
//   - Model: the sphere, 20 * 4^subdivisions triangles
func NewIcosphere(name string, subdivisions int, radius float32) Model {
	t := (1 + math32.Sqrt(5)) / 2
	positions := [][3]float32{
		{-1, t, 0}, {1, t, 0}, {-1, -t, 0}, {1, -t, 0},
		{0, -1, t}, {0, 1, t}, {0, -1, -t}, {0, 1, -t},
		{t, 0, -1}, {t, 0, 1}, {-t, 0, -1}, {-t, 0, 1},
	}
	for i := range positions {
		positions[i] = unit(positions[i])
	}
	faces := [][3]uint32{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	for range min(max(subdivisions, 0), 5) {
		midpoints := make(map[[2]uint32]uint32)
		midpoint := func(a, b uint32) uint32 {
			key := [2]uint32{min(a, b), max(a, b)}
			if i, ok := midpoints[key]; ok {
				return i
			}
			pa, pb := positions[a], positions[b]
			positions = append(positions, unit([3]float32{
				(pa[0] + pb[0]) / 2, (pa[1] + pb[1]) / 2, (pa[2] + pb[2]) / 2,
			}))
			i := uint32(len(positions) - 1)
			midpoints[key] = i
			return i
		}
		next := make([][3]uint32, 0, len(faces)*4)
		for _, f := range faces {
			ab, bc, ca := midpoint(f[0], f[1]), midpoint(f[1], f[2]), midpoint(f[2], f[0])
			next = append(next,
				[3]uint32{f[0], ab, ca},
				[3]uint32{f[1], bc, ab},
				[3]uint32{f[2], ca, bc},
				[3]uint32{ab, bc, ca},
			)
		}
		faces = next
	}

	vertices := make([]GPUVertex, len(positions))
	for i, n := range positions {
		vertices[i] = GPUVertex{
			Position: [3]float32{n[0] * radius, n[1] * radius, n[2] * radius},
			Normal:   n,
			TexCoord: [2]float32{
				0.5 + math32.Atan2(n[2], n[0])/(2*math32.Pi),
				0.5 - math32.Asin(n[1])/math32.Pi,
			},
		}
	}
	indices := make([]uint32, 0, len(faces)*3)
	for _, f := range faces {
		indices = append(indices, f[0], f[1], f[2])
	}
	return NewModel(WithName(name), WithMesh(vertices, indices))
}

func unit(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}
