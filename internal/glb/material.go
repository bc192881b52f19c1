package glb

import (
	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/meshforge/obj2glb/internal/logger"
	"github.com/meshforge/obj2glb/pkg/wavefront"
)

// specularExtension is the glTF extension carrying the specular texture
// slot that the metallic-roughness core model has no place for.
const specularExtension = "KHR_materials_specular"

// resolveMaterial maps one Wavefront material onto PBR metallic-
// roughness. The mapping is fixed: metallic 0, roughness derived from
// the Phong exponent, base color from Kd and dissolve. When a diffuse
// texture is present the base color factor turns neutral white so the
// texture alone carries the color.
func (b *Builder) resolveMaterial(mat *wavefront.Material) *gltf.Material {
	metallic := float32(0)
	roughness := roughnessFromShininess(mat.Shininess)

	out := &gltf.Material{
		Name: mat.Name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{mat.Diffuse[0], mat.Diffuse[1], mat.Diffuse[2], mat.Opacity},
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
	}
	if mat.Opacity < 1 {
		out.AlphaMode = gltf.AlphaBlend
	}

	// Each material's references anchor at its own library's directory;
	// libraries in different directories may reuse the same file name.
	dir := mat.Dir
	if dir == "" {
		dir = b.dir
	}

	if mat.DiffuseMap != "" {
		if tex, err := b.embedTexture(mat.DiffuseMap, dir); err != nil {
			b.warnf("material %q: diffuse texture: %v", mat.Name, err)
		} else {
			out.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *tex.index}
			out.PBRMetallicRoughness.BaseColorFactor = &[4]float32{1, 1, 1, mat.Opacity}
		}
	}

	if mat.NormalMap != "" {
		if tex, err := b.embedTexture(mat.NormalMap, dir); err != nil {
			b.warnf("material %q: normal texture: %v", mat.Name, err)
		} else {
			out.NormalTexture = &gltf.NormalTexture{Index: tex.index}
		}
	}

	if mat.SpecularMap != "" {
		if tex, err := b.embedTexture(mat.SpecularMap, dir); err != nil {
			b.warnf("material %q: specular texture: %v", mat.Name, err)
		} else {
			out.Extensions = map[string]interface{}{
				specularExtension: map[string]interface{}{
					"specularTexture": map[string]interface{}{"index": *tex.index},
				},
			}
			b.specular = true
		}
	}

	return out
}

// roughnessFromShininess maps the Phong exponent Ns onto roughness.
// Ns 0 reads as fully rough, Ns 1000 and above as fully polished.
func roughnessFromShininess(ns float32) float32 {
	r := 1 - ns/1000
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// embedTexture stages one referenced image through the per-conversion
// cache and reports its recorded properties.
func (b *Builder) embedTexture(ref, dir string) (*embedded, error) {
	tex, err := b.textures.embed(b.doc, ref, dir, b.opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("embedded texture",
		zap.String("ref", ref),
		zap.Int("width", tex.width),
		zap.Int("height", tex.height),
		zap.String("mime", tex.mime))
	return tex, nil
}
