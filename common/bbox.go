package common

import "github.com/chewxy/math32"

// BBox is an axis-aligned bounding box.
type BBox struct {
	Min [3]float32
	Max [3]float32
}

// EmptyBBox returns an inverted box that any Expand call will snap to the first point.
func EmptyBBox() BBox {
	inf := math32.Inf(1)
	return BBox{
		Min: [3]float32{inf, inf, inf},
		Max: [3]float32{-inf, -inf, -inf},
	}
}

// Contains reports whether p lies inside the box, bounds included.
func (b BBox) Contains(p [3]float32) bool {
	for i := range 3 {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Expand grows the box to include p.
func (b *BBox) Expand(p [3]float32) {
	for i := range 3 {
		b.Min[i] = math32.Min(b.Min[i], p[i])
		b.Max[i] = math32.Max(b.Max[i], p[i])
	}
}

// Center returns the midpoint of the box.
func (b BBox) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Radius returns the radius of the sphere enclosing the box.
func (b BBox) Radius() float32 {
	return Length3(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1], b.Max[2]-b.Min[2]) / 2
}

// IsEmpty reports whether the box contains no point.
func (b BBox) IsEmpty() bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1] || b.Min[2] > b.Max[2]
}
