// Package mesh flattens parsed models into deduplicated, indexed
// geometry buffers grouped by material.
package mesh

// Group holds the triangle indices for one material. Indices reference
// the shared attribute streams in Buffers.
type Group struct {
	Material string
	Indices  []uint32
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// Size returns the box extents along each axis.
func (b Bounds) Size() [3]float32 {
	return [3]float32{
		b.Max[0] - b.Min[0],
		b.Max[1] - b.Min[1],
		b.Max[2] - b.Min[2],
	}
}

// Center returns the box midpoint.
func (b Bounds) Center() [3]float32 {
	return [3]float32{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Buffers is the indexed form of a model: attribute streams shared by
// every group, plus per-material triangle indices. Normals are always
// present; TexCoords is nil when the model carries no texture
// coordinates.
type Buffers struct {
	Positions [][3]float32
	Normals   [][3]float32
	TexCoords [][2]float32
	Groups    []Group
	Bounds    Bounds
}

// VertexCount returns the number of deduplicated vertices.
func (b *Buffers) VertexCount() int {
	return len(b.Positions)
}

// TriangleCount returns the number of triangles across all groups.
func (b *Buffers) TriangleCount() int {
	total := 0
	for _, g := range b.Groups {
		total += len(g.Indices) / 3
	}
	return total
}
