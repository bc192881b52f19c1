package glb

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/blezek/tga"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"golang.org/x/image/draw"

	_ "image/gif"

	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
)

// TextureOptions control how referenced images are embedded.
type TextureOptions struct {
	// ResolutionLimit caps the larger image dimension; bigger images
	// are downscaled and re-encoded. Zero means unlimited.
	ResolutionLimit int
	// Recompress re-encodes every image, including formats the
	// container could carry unchanged.
	Recompress bool
}

// embedded describes one image staged into the binary buffer.
type embedded struct {
	index  *uint32 // texture index within the document
	width  int
	height int
	mime   string
}

// textureSlot caches the embedding outcome for one reference.
type textureSlot struct {
	tex *embedded
	err error
	set bool
}

// textureKey identifies one lookup. The same reference can name
// different files when libraries live in different directories.
type textureKey struct {
	dir string
	ref string
}

// textureCache resolves and embeds referenced images once per
// conversion. No state survives past the owning Builder.
type textureCache struct {
	slots map[textureKey]*textureSlot
}

func newTextureCache() *textureCache {
	return &textureCache{slots: make(map[textureKey]*textureSlot)}
}

// resolve returns the first existing candidate path for a reference:
// the reference as given, then relative to the anchoring directory,
// then the bare file name in that directory.
func (c *textureCache) resolve(ref, dir string) (string, error) {
	clean := filepath.FromSlash(strings.ReplaceAll(ref, "\\", "/"))
	candidates := []string{
		clean,
		filepath.Join(dir, clean),
		filepath.Join(dir, filepath.Base(clean)),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("texture %q: %w", ref, fs.ErrNotExist)
}

// embed stages the referenced image into the document's buffer and
// returns its texture index and recorded properties. Results, including
// failures, are cached per reference and anchoring directory.
func (c *textureCache) embed(doc *gltf.Document, ref, dir string, opts TextureOptions) (*embedded, error) {
	key := textureKey{dir: dir, ref: ref}
	if s, ok := c.slots[key]; ok && s.set {
		return s.tex, s.err
	}
	s := &textureSlot{set: true}
	c.slots[key] = s

	s.tex, s.err = c.load(doc, ref, dir, opts)
	return s.tex, s.err
}

func (c *textureCache) load(doc *gltf.Document, ref, dir string, opts TextureOptions) (*embedded, error) {
	path, err := c.resolve(ref, dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading texture %q: %w", ref, err)
	}

	// Decoding validates the file and yields the recorded dimensions
	// even when the raw bytes pass through unchanged.
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil && strings.ToLower(filepath.Ext(path)) == ".tga" {
		img, err = tga.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decoding texture %q: %w", ref, err)
	}

	mime, encode := mimeForExt(filepath.Ext(path))
	if opts.Recompress {
		encode = true
	}
	if limit := opts.ResolutionLimit; limit > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > limit || bounds.Dy() > limit {
			img = downscale(img, limit)
			encode = true
		}
	}

	var r io.Reader
	if encode {
		buf := new(bytes.Buffer)
		if mime == "image/jpeg" {
			err = jpeg.Encode(buf, img, nil)
		} else {
			err = png.Encode(buf, img)
		}
		if err != nil {
			return nil, fmt.Errorf("encoding texture %q: %w", ref, err)
		}
		r = buf
	} else {
		r = bytes.NewReader(data)
	}

	imgIdx, err := modeler.WriteImage(doc, filepath.Base(path), mime, r)
	if err != nil {
		return nil, fmt.Errorf("embedding texture %q: %w", ref, err)
	}
	doc.Buffers[0].ByteLength = uint32(len(doc.Buffers[0].Data))
	doc.Textures = append(doc.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(imgIdx)})

	return &embedded{
		index:  gltf.Index(uint32(len(doc.Textures)) - 1),
		width:  img.Bounds().Dx(),
		height: img.Bounds().Dy(),
		mime:   mime,
	}, nil
}

// mimeForExt maps a file extension to the container MIME type. Formats
// outside image/jpeg and image/png must be re-encoded.
func mimeForExt(ext string) (mime string, encode bool) {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg", false
	case ".png":
		return "image/png", false
	default:
		return "image/png", true
	}
}

// downscale resizes img so its larger dimension equals limit.
func downscale(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	larger := bounds.Dx()
	if bounds.Dy() > larger {
		larger = bounds.Dy()
	}
	scale := float64(limit) / float64(larger)
	dst := image.NewRGBA(image.Rect(0, 0,
		int(float64(bounds.Dx())*scale), int(float64(bounds.Dy())*scale)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
