package mesh

import (
	"github.com/meshforge/obj2glb/pkg/wavefront"
)

// Build creates indexed geometry buffers from a parsed model.
//
// Corners are deduplicated on their exact index triple: two face
// corners referencing the same position, texture coordinate and normal
// share one output vertex. Polygons with more than three corners are
// fan-triangulated around their first corner, which can produce
// overlapping triangles for non-convex polygons; an N-corner face
// always yields N-2 triangles. Triangles are grouped by face material
// in first-use order.
//
// Corners without a normal reference receive the averaged plane
// normals of the faces sharing them. Texture coordinates are converted
// to the top-left origin glTF expects.
func Build(model *wavefront.Model) *Buffers {
	b := &Buffers{
		Bounds: Bounds{
			Min: [3]float32{1e10, 1e10, 1e10},
			Max: [3]float32{-1e10, -1e10, -1e10},
		},
	}
	hasUV := model.HasTexCoords()

	lookup := make(map[wavefront.Corner]uint32)
	groupIdx := make(map[string]int)
	generated := make(map[uint32]bool)

	// vertexFor returns the output index for a corner, appending its
	// attribute data on first sight.
	vertexFor := func(c wavefront.Corner) uint32 {
		if idx, ok := lookup[c]; ok {
			return idx
		}
		idx := uint32(len(b.Positions))
		lookup[c] = idx

		pos := model.Positions[c.Position]
		b.Positions = append(b.Positions, pos)
		updateBounds(&b.Bounds, pos)

		if c.Normal >= 0 {
			b.Normals = append(b.Normals, model.Normals[c.Normal])
		} else {
			b.Normals = append(b.Normals, [3]float32{})
			generated[idx] = true
		}

		if hasUV {
			var uv [2]float32
			if c.TexCoord >= 0 {
				src := model.TexCoords[c.TexCoord]
				// OBJ uses a bottom-left texture origin, glTF top-left.
				uv = [2]float32{src[0], 1 - src[1]}
			}
			b.TexCoords = append(b.TexCoords, uv)
		}
		return idx
	}

	groupFor := func(material string) int {
		if gi, ok := groupIdx[material]; ok {
			return gi
		}
		gi := len(b.Groups)
		groupIdx[material] = gi
		b.Groups = append(b.Groups, Group{Material: material})
		return gi
	}

	for _, face := range model.Faces {
		idxs := make([]uint32, len(face.Corners))
		needsNormal := false
		for i, c := range face.Corners {
			idxs[i] = vertexFor(c)
			if c.Normal < 0 {
				needsNormal = true
			}
		}

		if needsNormal {
			fn := faceNormal(model, face)
			for i, c := range face.Corners {
				if c.Normal < 0 {
					accumulate(&b.Normals[idxs[i]], fn)
				}
			}
		}

		gi := groupFor(face.Material)
		for i := 1; i+1 < len(face.Corners); i++ {
			b.Groups[gi].Indices = append(b.Groups[gi].Indices, idxs[0], idxs[i], idxs[i+1])
		}
	}

	// Accumulated normals become unit vectors once every contributing
	// face has been seen.
	for idx := range generated {
		b.Normals[idx] = Normalize(b.Normals[idx])
	}

	return b
}

// faceNormal computes the unit plane normal of a face from its first
// three corners.
func faceNormal(model *wavefront.Model, face wavefront.Face) [3]float32 {
	v0 := model.Positions[face.Corners[0].Position]
	v1 := model.Positions[face.Corners[1].Position]
	v2 := model.Positions[face.Corners[2].Position]
	e1 := [3]float32{v1[0] - v0[0], v1[1] - v0[1], v1[2] - v0[2]}
	e2 := [3]float32{v2[0] - v0[0], v2[1] - v0[1], v2[2] - v0[2]}
	return Normalize(Cross(e1, e2))
}

func accumulate(dst *[3]float32, v [3]float32) {
	dst[0] += v[0]
	dst[1] += v[1]
	dst[2] += v[2]
}
