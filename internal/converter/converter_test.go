package converter

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/meshforge/obj2glb/internal/catalog"
	"github.com/meshforge/obj2glb/pkg/wavefront"
)

const cubeOBJ = `mtllib red.mtl
o cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
v 0 0 1
v 1 0 1
v 1 1 1
v 0 1 1
usemtl red
f 4 3 2 1
f 5 6 7 8
f 1 2 6 5
f 3 4 8 7
f 1 5 8 4
f 2 3 7 6
`

const redMTL = `newmtl red
Kd 1.0 0.0 0.0
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return writeFile(t, dir, name, buf.String())
}

// embeddedImageSize decodes the image behind a texture index and
// returns its pixel dimensions.
func embeddedImageSize(t *testing.T, doc *gltf.Document, tex uint32) (int, int) {
	t.Helper()
	img := doc.Images[*doc.Textures[tex].Source]
	view := doc.BufferViews[*img.BufferView]
	data := doc.Buffers[0].Data[view.ByteOffset : view.ByteOffset+view.ByteLength]
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding embedded image: %v", err)
	}
	b := decoded.Bounds()
	return b.Dx(), b.Dy()
}

// baseColor reads a decoded material's base color, with the glTF
// default for an omitted factor.
func baseColor(doc *gltf.Document, i int) [4]float32 {
	pbr := doc.Materials[i].PBRMetallicRoughness
	if pbr == nil || pbr.BaseColorFactor == nil {
		return [4]float32{1, 1, 1, 1}
	}
	return *pbr.BaseColorFactor
}

func TestConvertCube(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "red.mtl", redMTL)
	out := filepath.Join(dir, "cube.glb")

	res, err := Convert(in, out, Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if res.Vertices != 8 {
		t.Errorf("vertices = %d, want 8", res.Vertices)
	}
	if res.Triangles != 12 {
		t.Errorf("triangles = %d, want 12", res.Triangles)
	}
	if res.MaterialCount != 1 {
		t.Errorf("materials = %d, want 1", res.MaterialCount)
	}
	if res.OutputBytes <= 0 {
		t.Errorf("output bytes = %d", res.OutputBytes)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
	if res.Bounds.Min != [3]float32{0, 0, 0} || res.Bounds.Max != [3]float32{1, 1, 1} {
		t.Errorf("bounds = %+v", res.Bounds)
	}
	if res.Record == nil {
		t.Fatal("missing catalog record")
	}

	doc, err := gltf.Open(out)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if len(doc.Meshes) != 1 || doc.Meshes[0].Name != "cube" {
		t.Fatalf("meshes = %+v", doc.Meshes)
	}
	if len(doc.Materials) != 1 || doc.Materials[0].Name != "red" {
		t.Fatalf("materials = %+v", doc.Materials)
	}
	if got := baseColor(doc, 0); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("base color = %v, want red", got)
	}

	prim := doc.Meshes[0].Primitives[0]
	if got := doc.Accessors[*prim.Indices].Count; got != 36 {
		t.Errorf("index count = %d, want 36", got)
	}
	if got := doc.Accessors[prim.Attributes["POSITION"]].Count; got != 8 {
		t.Errorf("position count = %d, want 8", got)
	}
}

func TestConvertDefaultOutputPath(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "red.mtl", redMTL)

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := filepath.Join(dir, "cube.glb")
	if res.OutputPath != want {
		t.Errorf("output path = %q, want %q", res.OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("default output missing: %v", err)
	}
}

func TestConvertExtensionChecks(t *testing.T) {
	if _, err := Convert("model.txt", "out.glb", Options{}); !errors.Is(err, ErrNotOBJ) {
		t.Errorf("txt input: got %v, want ErrNotOBJ", err)
	}
	if _, err := Convert("model.obj", "out.gltf", Options{}); !errors.Is(err, ErrNotGLB) {
		t.Errorf("gltf output: got %v, want ErrNotGLB", err)
	}
}

func TestConvertExistingOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "red.mtl", redMTL)
	out := writeFile(t, dir, "cube.glb", "stale")

	_, err := Convert(in, out, Options{})
	if !errors.Is(err, ErrOutputExists) {
		t.Fatalf("got %v, want ErrOutputExists", err)
	}

	res, err := Convert(in, out, Options{Overwrite: true})
	if err != nil {
		t.Fatalf("Convert with overwrite: %v", err)
	}
	if _, err := gltf.Open(res.OutputPath); err != nil {
		t.Errorf("overwritten output does not decode: %v", err)
	}
}

func TestConvertNoFaces(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "points.obj", "v 0 0 0\nv 1 0 0\nv 0 1 0\n")

	_, err := Convert(in, "", Options{})
	if !errors.Is(err, wavefront.ErrNoFaces) {
		t.Fatalf("got %v, want ErrNoFaces", err)
	}
	var pe *wavefront.ParseError
	if !errors.As(err, &pe) || pe.Path != in {
		t.Errorf("error does not carry the input path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "points.glb")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed conversion left an output file")
	}
}

func TestConvertMalformedOBJ(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "bad.obj", "v 1 2\nf 1 2 3\n")

	_, err := Convert(in, "", Options{})
	var pe *wavefront.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ParseError", err)
	}
	if pe.Line != 1 {
		t.Errorf("error line = %d, want 1", pe.Line)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.glb")); !errors.Is(err, os.ErrNotExist) {
		t.Error("failed conversion left an output file")
	}
}

func TestConvertMissingMTLDegrades(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", strings.Replace(cubeOBJ, "red.mtl", "ghost.mtl", 1))

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	joined := strings.Join(res.Warnings, "\n")
	if !strings.Contains(joined, "ghost.mtl") {
		t.Errorf("warnings do not name the missing library: %v", res.Warnings)
	}
	if !strings.Contains(joined, "not defined") {
		t.Errorf("warnings do not flag the unresolved material: %v", res.Warnings)
	}

	doc, err := gltf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if got := baseColor(doc, 0); got != [4]float32{0.8, 0.8, 0.8, 1} {
		t.Errorf("base color = %v, want default gray", got)
	}
}

func TestConvertSiblingMTLFallback(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", strings.Replace(cubeOBJ, "mtllib red.mtl\n", "", 1))
	writeFile(t, dir, "cube.mtl", redMTL)

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	doc, err := gltf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if got := baseColor(doc, 0); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("base color = %v, want red from the sibling library", got)
	}
}

func TestConvertMalformedMTL(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "red.mtl", "newmtl red\nKd 0.1 0.2\n")

	_, err := Convert(in, "", Options{})
	var pe *wavefront.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ParseError for the malformed library", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "cube.glb")); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("failed conversion left an output file")
	}
}

func TestConvertLaterLibraryOverrides(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", strings.Replace(cubeOBJ, "mtllib red.mtl", "mtllib a.mtl b.mtl", 1))
	writeFile(t, dir, "a.mtl", "newmtl red\nKd 1 0 0\n")
	writeFile(t, dir, "b.mtl", "newmtl red\nKd 0 0 1\n")

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	doc, err := gltf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if got := baseColor(doc, 0); got != [4]float32{0, 0, 1, 1} {
		t.Errorf("base color = %v, want blue from the later library", got)
	}
}

func TestConvertTextureEmbedded(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "red.mtl", redMTL+"map_Kd tex.png\n")
	writePNG(t, dir, "tex.png", 2, 2)

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	doc, err := gltf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if len(doc.Images) != 1 || len(doc.Textures) != 1 {
		t.Fatalf("images = %d, textures = %d, want 1 each", len(doc.Images), len(doc.Textures))
	}
	if got := baseColor(doc, 0); got != [4]float32{1, 1, 1, 1} {
		t.Errorf("base color = %v, want neutral white under a texture", got)
	}
}

func TestConvertTexturesPerLibraryDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"liba", "libb"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	obj := `mtllib liba/a.mtl
mtllib libb/b.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl left
f 1 2 3
usemtl right
f 1 3 4
`
	in := writeFile(t, dir, "quad.obj", obj)
	writeFile(t, dir, filepath.Join("liba", "a.mtl"), "newmtl left\nmap_Kd tex.png\n")
	writeFile(t, dir, filepath.Join("libb", "b.mtl"), "newmtl right\nmap_Kd tex.png\n")
	writePNG(t, filepath.Join(dir, "liba"), "tex.png", 2, 2)
	writePNG(t, filepath.Join(dir, "libb"), "tex.png", 4, 4)

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	doc, err := gltf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if len(doc.Images) != 2 {
		t.Fatalf("images = %d, want one per library", len(doc.Images))
	}

	// Both libraries name their texture tex.png; each material must
	// carry the file from its own library's directory.
	for i, mat := range doc.Materials {
		texInfo := mat.PBRMetallicRoughness.BaseColorTexture
		if texInfo == nil {
			t.Fatalf("material %d has no base color texture", i)
		}
		want := 2
		if mat.Name == "right" {
			want = 4
		}
		w, h := embeddedImageSize(t, doc, texInfo.Index)
		if w != want || h != want {
			t.Errorf("material %q texture = %dx%d, want %dx%d", mat.Name, w, h, want, want)
		}
	}
}

func TestConvertMissingTextureWarns(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "red.mtl", redMTL+"map_Kd gone.png\n")

	res, err := Convert(in, "", Options{})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	joined := strings.Join(res.Warnings, "\n")
	if !strings.Contains(joined, "diffuse texture") {
		t.Errorf("warnings = %v, want a diffuse texture warning", res.Warnings)
	}

	doc, err := gltf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("reopening output: %v", err)
	}
	if len(doc.Images) != 0 {
		t.Errorf("images = %d, want none", len(doc.Images))
	}
	if got := baseColor(doc, 0); got != [4]float32{1, 0, 0, 1} {
		t.Errorf("base color = %v, want the flat diffuse color", got)
	}
}

func TestConvertRecord(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "hammer.obj", strings.Replace(cubeOBJ, "o cube\n", "", 1))
	writeFile(t, dir, "red.mtl", redMTL)

	res, err := Convert(in, "", Options{CatalogRoot: dir})
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	rec := res.Record
	if rec.Category != catalog.CategoryTools {
		t.Errorf("category = %q, want tools", rec.Category)
	}
	if rec.Path3D != "/3dData/hammer.glb" {
		t.Errorf("3d path = %q", rec.Path3D)
	}
	if rec.Name != "Hammer" {
		t.Errorf("name = %q, want Hammer", rec.Name)
	}
	if rec.Dimensions == nil || rec.Dimensions.Width != 1 {
		t.Errorf("dimensions = %+v, want unit cube", rec.Dimensions)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("record invalid: %v", err)
	}
	if problems := rec.Problems(); len(problems) != 0 {
		t.Errorf("record problems: %v", problems)
	}
}
