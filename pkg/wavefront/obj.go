// Package wavefront provides parsers for Wavefront OBJ geometry files
// and MTL material libraries.
package wavefront

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// OBJ and MTL format errors.
var (
	ErrNoVertices         = errors.New("no vertex positions")
	ErrNoFaces            = errors.New("no faces")
	ErrIndexOutOfRange    = errors.New("face index out of range")
	ErrMalformedNumber    = errors.New("malformed number")
	ErrMalformedFace      = errors.New("malformed face")
	ErrMalformedDirective = errors.New("malformed directive")
)

// maxLineBytes bounds a single OBJ/MTL line; faces with thousands of
// corners fit comfortably below this.
const maxLineBytes = 1024 * 1024

// ParseError reports a syntax or consistency error at a specific line
// of an OBJ or MTL file.
type ParseError struct {
	Path string // file path, empty when parsing from a plain reader
	Line int    // 1-based line number, 0 for whole-file errors
	Err  error
}

// Error formats the error with whatever location information is known.
func (e *ParseError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// Corner is a single vertex reference of a face. Indices are resolved
// to 0-based offsets into the model's attribute lists; TexCoord and
// Normal are -1 when the face omits them.
type Corner struct {
	Position int
	TexCoord int
	Normal   int
}

// Face is a polygon with at least three corners. Material holds the
// name made active by usemtl when the face was declared, or "" if no
// usemtl preceded it.
type Face struct {
	Corners  []Corner
	Material string
}

// Model is a parsed OBJ file.
type Model struct {
	Name         string       // first o name, else the file stem
	Positions    [][3]float32 // v entries
	Normals      [][3]float32 // vn entries
	TexCoords    [][2]float32 // vt entries (u, v)
	Faces        []Face
	MaterialLibs []string // mtllib references in order of appearance
}

// objParser is the state threaded through the line loop. All parsing
// state lives here; the package keeps no globals.
type objParser struct {
	model    *Model
	material string // active usemtl name
	line     int
	named    bool // an o directive already set the model name
}

// ParseOBJ parses OBJ data from a reader.
func ParseOBJ(r io.Reader) (*Model, error) {
	p := &objParser{model: &Model{}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ data: %w", err)
	}

	if len(p.model.Positions) == 0 {
		return nil, &ParseError{Err: ErrNoVertices}
	}
	return p.model, nil
}

// ParseOBJFile parses an OBJ file from disk. The model name falls back
// to the file stem when the file contains no o directive.
func ParseOBJFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening OBJ file: %w", err)
	}
	defer f.Close()

	model, err := ParseOBJ(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	if model.Name == "" {
		model.Name = Stem(path)
	}
	return model, nil
}

// parseLine dispatches a single OBJ line.
func (p *objParser) parseLine(raw string) error {
	fields := strings.Fields(raw)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	args := fields[1:]

	switch fields[0] {
	case "v":
		pos, err := p.parseVec3(args)
		if err != nil {
			return err
		}
		p.model.Positions = append(p.model.Positions, pos)
	case "vn":
		n, err := p.parseVec3(args)
		if err != nil {
			return err
		}
		p.model.Normals = append(p.model.Normals, n)
	case "vt":
		uv, err := p.parseVec2(args)
		if err != nil {
			return err
		}
		p.model.TexCoords = append(p.model.TexCoords, uv)
	case "f":
		return p.parseFace(args)
	case "usemtl":
		p.material = strings.Join(args, " ")
	case "mtllib":
		p.model.MaterialLibs = append(p.model.MaterialLibs, args...)
	case "o":
		if !p.named && len(args) > 0 {
			p.model.Name = strings.Join(args, " ")
			p.named = true
		}
	default:
		// g, s, l, p and vendor extensions carry nothing the
		// conversion uses.
	}
	return nil
}

// parseVec3 parses three float components. Trailing components (the
// optional w) are ignored.
func (p *objParser) parseVec3(args []string) ([3]float32, error) {
	var v [3]float32
	if len(args) < 3 {
		return v, &ParseError{Line: p.line, Err: fmt.Errorf("%w: expected 3 components, got %d", ErrMalformedDirective, len(args))}
	}
	for i := 0; i < 3; i++ {
		f, err := p.parseFloat(args[i])
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}

// parseVec2 parses a texture coordinate. A lone u component gets v=0;
// the optional w is ignored.
func (p *objParser) parseVec2(args []string) ([2]float32, error) {
	var uv [2]float32
	if len(args) < 1 {
		return uv, &ParseError{Line: p.line, Err: fmt.Errorf("%w: expected at least 1 component", ErrMalformedDirective)}
	}
	for i := 0; i < 2 && i < len(args); i++ {
		f, err := p.parseFloat(args[i])
		if err != nil {
			return uv, err
		}
		uv[i] = f
	}
	return uv, nil
}

func (p *objParser) parseFloat(tok string) (float32, error) {
	return parseFloat32(p.line, tok)
}

// parseFloat32 parses a float token, reporting failures as ParseErrors
// tagged with the line number.
func parseFloat32(line int, tok string) (float32, error) {
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("%w: %q", ErrMalformedNumber, tok)}
	}
	return float32(f), nil
}

// parseFace parses an f directive and tags it with the active material.
func (p *objParser) parseFace(args []string) error {
	if len(args) < 3 {
		return &ParseError{Line: p.line, Err: fmt.Errorf("%w: %d corners", ErrMalformedFace, len(args))}
	}
	face := Face{Corners: make([]Corner, 0, len(args)), Material: p.material}
	for _, tok := range args {
		c, err := p.parseCorner(tok)
		if err != nil {
			return err
		}
		face.Corners = append(face.Corners, c)
	}
	p.model.Faces = append(p.model.Faces, face)
	return nil
}

// parseCorner resolves a v, v/vt, v//vn or v/vt/vn reference against
// the attribute lists as they stand at this point in the file.
func (p *objParser) parseCorner(tok string) (Corner, error) {
	c := Corner{TexCoord: -1, Normal: -1}

	parts := strings.Split(tok, "/")
	if len(parts) > 3 {
		return c, &ParseError{Line: p.line, Err: fmt.Errorf("%w: %q", ErrMalformedFace, tok)}
	}

	idx, err := p.resolveIndex(parts[0], len(p.model.Positions))
	if err != nil {
		return c, err
	}
	c.Position = idx

	if len(parts) > 1 && parts[1] != "" {
		idx, err := p.resolveIndex(parts[1], len(p.model.TexCoords))
		if err != nil {
			return c, err
		}
		c.TexCoord = idx
	}
	if len(parts) > 2 && parts[2] != "" {
		idx, err := p.resolveIndex(parts[2], len(p.model.Normals))
		if err != nil {
			return c, err
		}
		c.Normal = idx
	}
	return c, nil
}

// resolveIndex converts a 1-based OBJ index to a 0-based offset.
// Negative indices count back from the end of the list.
func (p *objParser) resolveIndex(tok string, listLen int) (int, error) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, &ParseError{Line: p.line, Err: fmt.Errorf("%w: %q", ErrMalformedNumber, tok)}
	}

	var idx int
	switch {
	case n > 0:
		idx = n - 1
	case n < 0:
		idx = listLen + n
	default:
		return 0, &ParseError{Line: p.line, Err: fmt.Errorf("%w: index 0", ErrIndexOutOfRange)}
	}
	if idx < 0 || idx >= listLen {
		return 0, &ParseError{Line: p.line, Err: fmt.Errorf("%w: %d with %d entries defined", ErrIndexOutOfRange, n, listLen)}
	}
	return idx, nil
}

// TriangleCount returns the number of triangles fan triangulation
// produces across all faces.
func (m *Model) TriangleCount() int {
	total := 0
	for _, f := range m.Faces {
		total += len(f.Corners) - 2
	}
	return total
}

// HasNormals reports whether any face corner references a normal.
func (m *Model) HasNormals() bool {
	for _, f := range m.Faces {
		for _, c := range f.Corners {
			if c.Normal >= 0 {
				return true
			}
		}
	}
	return false
}

// HasTexCoords reports whether any face corner references a texture
// coordinate.
func (m *Model) HasTexCoords() bool {
	for _, f := range m.Faces {
		for _, c := range f.Corners {
			if c.TexCoord >= 0 {
				return true
			}
		}
	}
	return false
}

// Stem returns the file name without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
