// Package glb assembles Wavefront-derived geometry and materials into
// binary glTF documents and writes them to disk.
package glb

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/meshforge/obj2glb/internal/logger"
	"github.com/meshforge/obj2glb/internal/mesh"
	"github.com/meshforge/obj2glb/pkg/wavefront"
)

// Generator is the asset generator tag stamped into every document.
const Generator = "obj2glb"

// Builder assembles one glTF document. A Builder serves a single
// conversion; textures and warnings accumulate on it and are not
// shared across files.
type Builder struct {
	doc      *gltf.Document
	dir      string
	textures *textureCache
	opts     TextureOptions
	warnings []string
	specular bool
}

// NewBuilder returns a Builder. Texture references resolve against the
// directory recorded on each material's defining library; textureDir
// anchors materials without one.
func NewBuilder(textureDir string, opts TextureOptions) *Builder {
	doc := gltf.NewDocument()
	doc.Asset.Generator = Generator
	return &Builder{
		doc:      doc,
		dir:      textureDir,
		textures: newTextureCache(),
		opts:     opts,
	}
}

// Warnings lists recoverable degradations hit while building, in
// occurrence order.
func (b *Builder) Warnings() []string {
	return b.warnings
}

// Build lays the geometry and materials into the document and returns
// it ready for validation and saving. The binary buffer is laid out in
// a fixed order: shared vertex attributes, one index accessor per
// group, then embedded images.
func (b *Builder) Build(name string, geo *mesh.Buffers, materials map[string]*wavefront.Material) *gltf.Document {
	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(b.doc, geo.Positions),
		"NORMAL":   modeler.WriteNormal(b.doc, geo.Normals),
	}
	if geo.TexCoords != nil {
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(b.doc, geo.TexCoords)
	}

	indices := make([]uint32, len(geo.Groups))
	for i, g := range geo.Groups {
		indices[i] = modeler.WriteIndices(b.doc, g.Indices)
	}

	primitives := make([]*gltf.Primitive, len(geo.Groups))
	for i, g := range geo.Groups {
		mat := materials[g.Material]
		if mat == nil {
			if g.Material != "" {
				b.warnf("material %q not defined, using default", g.Material)
				mat = wavefront.DefaultMaterial(g.Material)
			} else {
				mat = wavefront.DefaultMaterial("default")
			}
		}

		matIndex := uint32(len(b.doc.Materials))
		b.doc.Materials = append(b.doc.Materials, b.resolveMaterial(mat))

		primitives[i] = &gltf.Primitive{
			Indices:    gltf.Index(indices[i]),
			Attributes: attributes,
			Material:   gltf.Index(matIndex),
		}
	}

	b.doc.Meshes = append(b.doc.Meshes, &gltf.Mesh{Name: name, Primitives: primitives})
	meshIndex := uint32(len(b.doc.Meshes)) - 1

	nodeIndex := uint32(len(b.doc.Nodes))
	b.doc.Nodes = append(b.doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(meshIndex)})
	b.doc.Scenes[0].Nodes = append(b.doc.Scenes[0].Nodes, nodeIndex)

	if b.specular {
		b.doc.ExtensionsUsed = append(b.doc.ExtensionsUsed, specularExtension)
	}
	if len(b.doc.Textures) > 0 && len(b.doc.Samplers) == 0 {
		b.doc.Samplers = []*gltf.Sampler{{}}
	}

	return b.doc
}

func (b *Builder) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	b.warnings = append(b.warnings, msg)
	logger.Warn(msg)
}
