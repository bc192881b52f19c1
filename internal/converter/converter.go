// Package converter runs the single-file OBJ to GLB pipeline: parse,
// resolve materials, index geometry, assemble the document, write.
package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/meshforge/obj2glb/internal/catalog"
	"github.com/meshforge/obj2glb/internal/glb"
	"github.com/meshforge/obj2glb/internal/logger"
	"github.com/meshforge/obj2glb/internal/mesh"
	"github.com/meshforge/obj2glb/pkg/wavefront"
)

// Conversion refusal errors.
var (
	ErrOutputExists = errors.New("output file already exists")
	ErrNotOBJ       = errors.New("input is not a .obj file")
	ErrNotGLB       = errors.New("output is not a .glb file")
)

// Options adjust a single conversion.
type Options struct {
	// Overwrite allows replacing an existing output file.
	Overwrite bool
	// Textures controls image embedding.
	Textures glb.TextureOptions
	// CatalogRoot anchors the record's storage path; empty means the
	// output file's directory.
	CatalogRoot string
}

// Result reports one finished conversion.
type Result struct {
	InputPath     string
	OutputPath    string
	Vertices      int
	Triangles     int
	MaterialCount int
	OutputBytes   int64
	Bounds        mesh.Bounds
	Warnings      []string
	Record        *catalog.Record
}

// Convert turns one OBJ file into a GLB file. An empty outputPath
// defaults to the input path with a .glb extension. Recoverable
// degradations (missing material library, missing texture) end up in
// Result.Warnings; anything else fails the conversion, leaving no
// partial output behind.
func Convert(inputPath, outputPath string, opts Options) (*Result, error) {
	if !strings.EqualFold(filepath.Ext(inputPath), ".obj") {
		return nil, fmt.Errorf("%w: %s", ErrNotOBJ, inputPath)
	}
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".glb"
	}
	if !strings.EqualFold(filepath.Ext(outputPath), ".glb") {
		return nil, fmt.Errorf("%w: %s", ErrNotGLB, outputPath)
	}
	if !opts.Overwrite {
		if _, err := os.Stat(outputPath); err == nil {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, outputPath)
		}
	}

	model, err := wavefront.ParseOBJFile(inputPath)
	if err != nil {
		return nil, err
	}
	if len(model.Faces) == 0 {
		return nil, &wavefront.ParseError{Path: inputPath, Err: wavefront.ErrNoFaces}
	}
	logger.Debug("parsed OBJ",
		zap.String("file", inputPath),
		zap.Int("positions", len(model.Positions)),
		zap.Int("faces", len(model.Faces)))

	materials, warnings, err := loadMaterials(model, inputPath)
	if err != nil {
		return nil, err
	}

	geo := mesh.Build(model)
	logger.Debug("geometry indexed",
		zap.Int("vertices", geo.VertexCount()),
		zap.Int("triangles", geo.TriangleCount()),
		zap.Int("groups", len(geo.Groups)))

	builder := glb.NewBuilder(filepath.Dir(inputPath), opts.Textures)
	doc := builder.Build(model.Name, geo, materials)
	warnings = append(warnings, builder.Warnings()...)

	if err := glb.SaveAtomic(doc, outputPath); err != nil {
		return nil, err
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, &glb.WriteError{Path: outputPath, Err: err}
	}
	logger.Debug("wrote GLB",
		zap.String("file", outputPath),
		zap.String("size", humanize.Bytes(uint64(info.Size()))))

	root := opts.CatalogRoot
	if root == "" {
		root = filepath.Dir(outputPath)
	}

	return &Result{
		InputPath:     inputPath,
		OutputPath:    outputPath,
		Vertices:      geo.VertexCount(),
		Triangles:     geo.TriangleCount(),
		MaterialCount: len(geo.Groups),
		OutputBytes:   info.Size(),
		Bounds:        geo.Bounds,
		Warnings:      warnings,
		Record:        catalog.NewRecord(outputPath, root, geo.Bounds),
	}, nil
}

// loadMaterials resolves the model's material libraries relative to
// the OBJ's directory. A model without mtllib directives falls back to
// a sibling .mtl named after the file. Missing libraries degrade to
// defaults with a warning; malformed ones abort. Later libraries
// override earlier definitions of the same name. Each material keeps
// its own library's directory for texture lookups.
func loadMaterials(model *wavefront.Model, objPath string) (map[string]*wavefront.Material, []string, error) {
	objDir := filepath.Dir(objPath)

	refs := model.MaterialLibs
	if len(refs) == 0 {
		sibling := strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".mtl"
		if _, err := os.Stat(sibling); err == nil {
			refs = []string{filepath.Base(sibling)}
		}
	}

	materials := make(map[string]*wavefront.Material)
	var warnings []string

	for _, ref := range refs {
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(objDir, path)
		}

		lib, err := wavefront.ParseMTLFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				msg := fmt.Sprintf("material library %q not found, using defaults", ref)
				warnings = append(warnings, msg)
				logger.Warn("material library not found", zap.String("mtllib", ref))
				continue
			}
			return nil, nil, err
		}

		for name, mat := range lib.Materials {
			materials[name] = mat
		}
		for _, w := range lib.Warnings {
			warnings = append(warnings, fmt.Sprintf("%s: %s", ref, w))
		}
	}

	return materials, warnings, nil
}
