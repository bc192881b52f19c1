// Package catalog builds the metadata records collaborating import
// tooling consumes for converted models. It performs no network or
// database I/O; records are plain values the caller serializes.
package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meshforge/obj2glb/internal/mesh"
	"github.com/meshforge/obj2glb/pkg/wavefront"
)

// Category is the collection a converted model files under.
type Category string

const (
	CategoryDoors       Category = "doors"
	CategoryDoubleDoors Category = "double_doors"
	CategoryGarages     Category = "garages"
	CategoryTools       Category = "tools"
)

// storagePrefix roots every storage path.
const storagePrefix = "/3dData/"

// Dimensions are the axis-aligned extents of a model.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth"`
}

// Record describes one converted model. Simple categories carry only
// name and path; tools carry the full shape with dimensions, icon,
// type and timestamp.
type Record struct {
	Category   Category    `json:"-"`
	Name       string      `json:"name"`
	Path       string      `json:"path,omitempty"`
	Path3D     string      `json:"3d,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	SVGIcon    string      `json:"svgIcon,omitempty"`
	Type       string      `json:"type,omitempty"`
	CreatedAt  *time.Time  `json:"createdAt,omitempty"`
}

// Categorize buckets a model by keywords in its path. Door beats
// garage when both appear, and double doors beat either.
func Categorize(path string) Category {
	p := strings.ToLower(path)
	door := strings.Contains(p, "door")

	switch {
	case door && strings.Contains(p, "double"):
		return CategoryDoubleDoors
	case door && strings.Contains(p, "garage"):
		return CategoryGarages
	case door:
		return CategoryDoors
	case strings.Contains(p, "garage"):
		return CategoryGarages
	default:
		return CategoryTools
	}
}

// toolTypes maps path keywords to display types, checked in order.
var toolTypes = []struct {
	keywords []string
	label    string
}{
	{[]string{"light", "lamp"}, "Lighting"},
	{[]string{"chair", "sofa", "table"}, "Furniture"},
	{[]string{"window"}, "Window"},
	{[]string{"bath", "toilet", "sink"}, "Bathroom"},
	{[]string{"kitchen", "cooker", "stove"}, "Kitchen"},
	{[]string{"bed", "wardrobe"}, "Bedroom"},
	{[]string{"plant", "tree"}, "Garden"},
	{[]string{"car", "vehicle"}, "Vehicle"},
}

// ObjectTypeFor returns the display type for a model. Door categories
// have fixed types; tools are typed by path keywords.
func ObjectTypeFor(path string, cat Category) string {
	switch cat {
	case CategoryDoors:
		return "Door"
	case CategoryDoubleDoors:
		return "Double Door"
	case CategoryGarages:
		return "Garage"
	}

	p := strings.ToLower(path)
	for _, t := range toolTypes {
		for _, kw := range t.keywords {
			if strings.Contains(p, kw) {
				return t.label
			}
		}
	}
	return "Tool"
}

// StoragePath converts a local file path into the forward-slash
// storage path rooted at /3dData/. Paths outside base fall back to the
// bare file name.
func StoragePath(path, base string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return storagePrefix + filepath.Base(path)
	}
	p := filepath.ToSlash(rel)
	if !strings.HasPrefix(p, storagePrefix) {
		p = storagePrefix + p
	}
	return p
}

// DisplayName derives a human-readable name from the file stem:
// underscores and dashes become spaces, words are title-cased.
func DisplayName(path string) string {
	name := wavefront.Stem(path)
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	// cases.Caser carries mutable transform state and must not be
	// shared between goroutines; batch workers call this concurrently.
	return cases.Title(language.English).String(name)
}

// DimensionsFromBounds converts mesh bounds into record dimensions.
func DimensionsFromBounds(b mesh.Bounds) Dimensions {
	size := b.Size()
	return Dimensions{
		Width:  float64(size[0]),
		Height: float64(size[1]),
		Depth:  float64(size[2]),
	}
}

// NewRecord builds the record for a converted model. baseDir anchors
// the storage path; bounds feed the tool dimensions.
func NewRecord(glbPath, baseDir string, bounds mesh.Bounds) *Record {
	cat := Categorize(glbPath)
	rec := &Record{
		Category: cat,
		Name:     DisplayName(glbPath),
	}

	if cat != CategoryTools {
		rec.Path = StoragePath(glbPath, baseDir)
		return rec
	}

	dims := DimensionsFromBounds(bounds)
	now := time.Now().UTC()
	rec.Path3D = StoragePath(glbPath, baseDir)
	rec.Dimensions = &dims
	rec.SVGIcon = placeholderIcon(wavefront.Stem(glbPath))
	rec.Type = ObjectTypeFor(glbPath, cat)
	rec.CreatedAt = &now
	return rec
}

// Validate checks the fields an importing collaborator requires.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("record name is empty")
	}
	if r.Category == CategoryTools {
		if strings.TrimSpace(r.Path3D) == "" {
			return errors.New("record 3d path is empty")
		}
		return nil
	}
	if strings.TrimSpace(r.Path) == "" {
		return errors.New("record path is empty")
	}
	return nil
}

// Problems lists advisory issues that do not block an import.
func (r *Record) Problems() []string {
	var problems []string

	path := r.Path
	if r.Category == CategoryTools {
		path = r.Path3D
	}
	if !strings.HasPrefix(path, storagePrefix) {
		problems = append(problems, fmt.Sprintf("path should start with %s: %s", storagePrefix, path))
	}
	if !strings.HasSuffix(path, ".glb") {
		problems = append(problems, fmt.Sprintf("path should end with .glb: %s", path))
	}

	if r.Category != CategoryTools {
		return problems
	}

	if d := r.Dimensions; d == nil || d.Width <= 0 || d.Height <= 0 || d.Depth <= 0 {
		problems = append(problems, "dimensions are not all positive")
	}
	if strings.TrimSpace(r.SVGIcon) == "" {
		problems = append(problems, "svg icon is empty")
	} else if !strings.HasPrefix(strings.TrimSpace(r.SVGIcon), "<?xml") {
		problems = append(problems, "svg icon is not valid XML")
	}
	if strings.TrimSpace(r.Type) == "" {
		problems = append(problems, "object type is empty")
	}
	return problems
}

// placeholderIcon renders the 64x64 stand-in icon labeled with the
// truncated model stem.
func placeholderIcon(stem string) string {
	label := stem
	if len(label) > 6 {
		label = label[:6]
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg version="1.1" width="64" height="64" viewBox="0 0 64 64" xmlns="http://www.w3.org/2000/svg">
  <rect width="64" height="64" fill="#e0e0e0" stroke="#999" stroke-width="1"/>
  <text x="32" y="35" text-anchor="middle" font-family="Arial" font-size="10" fill="#666">%s</text>
</svg>`, label)
}
