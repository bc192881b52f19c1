package wavefront

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Material describes one newmtl entry. Fields not set by the file keep
// the conventional Wavefront defaults.
type Material struct {
	Name      string
	Ambient   [3]float32 // Ka
	Diffuse   [3]float32 // Kd
	Specular  [3]float32 // Ks
	Shininess float32    // Ns
	Opacity   float32    // d, with Tr stored as 1-value

	DiffuseMap  string // map_Kd
	NormalMap   string // map_Bump / bump
	SpecularMap string // map_Ks

	// Dir is the directory of the defining library, set by
	// ParseMTLFile. Relative texture references resolve against it.
	Dir string
}

// Library is a parsed MTL file.
type Library struct {
	Materials map[string]*Material
	Order     []string // newmtl names in order of appearance
	Warnings  []string // statements ignored with a diagnostic
}

// DefaultMaterial returns a material carrying the Wavefront defaults:
// 20% ambient, 80% diffuse gray, white specular, shininess 32, opaque.
func DefaultMaterial(name string) *Material {
	return &Material{
		Name:      name,
		Ambient:   [3]float32{0.2, 0.2, 0.2},
		Diffuse:   [3]float32{0.8, 0.8, 0.8},
		Specular:  [3]float32{1, 1, 1},
		Shininess: 32,
		Opacity:   1,
	}
}

// mtlParser is the state threaded through the line loop.
type mtlParser struct {
	lib     *Library
	current *Material
	line    int
}

// ParseMTL parses MTL data from a reader.
func ParseMTL(r io.Reader) (*Library, error) {
	p := &mtlParser{lib: &Library{Materials: make(map[string]*Material)}}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading MTL data: %w", err)
	}
	return p.lib, nil
}

// ParseMTLFile parses an MTL file from disk and records the file's
// directory on every material it defines.
func ParseMTLFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening MTL file: %w", err)
	}
	defer f.Close()

	lib, err := ParseMTL(f)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	dir := filepath.Dir(path)
	for _, m := range lib.Materials {
		m.Dir = dir
	}
	return lib, nil
}

// parseLine dispatches a single MTL line.
func (p *mtlParser) parseLine(raw string) error {
	fields := strings.Fields(raw)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	key, args := fields[0], fields[1:]

	if key == "newmtl" {
		name := strings.Join(args, " ")
		p.current = DefaultMaterial(name)
		p.lib.Materials[name] = p.current
		p.lib.Order = append(p.lib.Order, name)
		return nil
	}
	if p.current == nil {
		// Statements before the first newmtl have nothing to bind to.
		return nil
	}

	switch key {
	case "Ka":
		c, err := p.parseColor(args)
		if err != nil {
			return err
		}
		p.current.Ambient = c
	case "Kd":
		c, err := p.parseColor(args)
		if err != nil {
			return err
		}
		p.current.Diffuse = c
	case "Ks":
		c, err := p.parseColor(args)
		if err != nil {
			return err
		}
		p.current.Specular = c
	case "Ns":
		f, err := p.parseFloatArg(args)
		if err != nil {
			return err
		}
		p.current.Shininess = f
	case "d":
		f, err := p.parseFloatArg(args)
		if err != nil {
			return err
		}
		p.current.Opacity = f
	case "Tr":
		// Tr is inverted transparency.
		f, err := p.parseFloatArg(args)
		if err != nil {
			return err
		}
		p.current.Opacity = 1 - f
	case "map_Kd":
		p.current.DiffuseMap = strings.Join(args, " ")
	case "map_Bump", "map_bump", "bump":
		p.current.NormalMap = strings.Join(args, " ")
	case "map_Ks":
		p.current.SpecularMap = strings.Join(args, " ")
	default:
		if strings.HasPrefix(key, "map_") {
			p.lib.Warnings = append(p.lib.Warnings,
				fmt.Sprintf("line %d: unsupported texture statement %q ignored", p.line, key))
		}
		// illum, Ni, Ke and friends are not used by the conversion.
	}
	return nil
}

// parseColor accepts three components, or a single intensity replicated
// across RGB.
func (p *mtlParser) parseColor(args []string) ([3]float32, error) {
	var c [3]float32
	switch len(args) {
	case 0:
		return c, &ParseError{Line: p.line, Err: fmt.Errorf("%w: missing color components", ErrMalformedDirective)}
	case 1:
		f, err := p.parseFloat(args[0])
		if err != nil {
			return c, err
		}
		return [3]float32{f, f, f}, nil
	case 2:
		return c, &ParseError{Line: p.line, Err: fmt.Errorf("%w: 2 color components", ErrMalformedDirective)}
	default:
		for i := 0; i < 3; i++ {
			f, err := p.parseFloat(args[i])
			if err != nil {
				return c, err
			}
			c[i] = f
		}
		return c, nil
	}
}

func (p *mtlParser) parseFloatArg(args []string) (float32, error) {
	if len(args) == 0 {
		return 0, &ParseError{Line: p.line, Err: fmt.Errorf("%w: missing value", ErrMalformedDirective)}
	}
	return p.parseFloat(args[0])
}

func (p *mtlParser) parseFloat(tok string) (float32, error) {
	return parseFloat32(p.line, tok)
}
