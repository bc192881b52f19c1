package glb

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
)

// Container layout invariant violations.
var (
	ErrViewOutOfBounds     = errors.New("buffer view exceeds buffer")
	ErrAccessorOutOfBounds = errors.New("accessor exceeds buffer view")
	ErrUnalignedAccessor   = errors.New("accessor offset not aligned to component size")
	ErrChunkTooLarge       = errors.New("container exceeds 32-bit size limit")
)

// WriteError reports a failure to produce a structurally sound GLB
// file. The output path, if already known, is carried for reporting.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("writing GLB: %v", e.Err)
	}
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

const (
	glbHeaderSize   = 12
	chunkHeaderSize = 8
)

// Validate checks the document's binary layout before encoding: a
// single buffer whose recorded length matches its data, every view
// inside the buffer, every accessor inside its view and aligned to its
// component size, and the whole container below the 32-bit ceiling.
func Validate(doc *gltf.Document) error {
	if n := len(doc.Buffers); n != 1 {
		return &WriteError{Err: fmt.Errorf("document carries %d buffers, the container needs exactly 1", n)}
	}
	buf := doc.Buffers[0]
	if buf.ByteLength != uint32(len(buf.Data)) {
		return &WriteError{Err: fmt.Errorf("buffer length %d does not match %d data bytes", buf.ByteLength, len(buf.Data))}
	}

	for i, view := range doc.BufferViews {
		if view.Buffer != 0 {
			return &WriteError{Err: fmt.Errorf("buffer view %d references buffer %d", i, view.Buffer)}
		}
		if uint64(view.ByteOffset)+uint64(view.ByteLength) > uint64(buf.ByteLength) {
			return &WriteError{Err: fmt.Errorf("buffer view %d: %w", i, ErrViewOutOfBounds)}
		}
	}

	for i, acc := range doc.Accessors {
		if acc.BufferView == nil {
			continue
		}
		if int(*acc.BufferView) >= len(doc.BufferViews) {
			return &WriteError{Err: fmt.Errorf("accessor %d references missing buffer view %d", i, *acc.BufferView)}
		}
		view := doc.BufferViews[*acc.BufferView]

		compSize := componentSize(acc.ComponentType)
		elemSize := compSize * componentCount(acc.Type)
		if elemSize == 0 {
			return &WriteError{Err: fmt.Errorf("accessor %d has an unknown element layout", i)}
		}
		stride := view.ByteStride
		if stride == 0 {
			stride = elemSize
		}
		if acc.Count > 0 {
			need := uint64(acc.ByteOffset) + uint64(stride)*uint64(acc.Count-1) + uint64(elemSize)
			if need > uint64(view.ByteLength) {
				return &WriteError{Err: fmt.Errorf("accessor %d: %w", i, ErrAccessorOutOfBounds)}
			}
		}
		if (view.ByteOffset+acc.ByteOffset)%compSize != 0 {
			return &WriteError{Err: fmt.Errorf("accessor %d: %w", i, ErrUnalignedAccessor)}
		}
	}

	jsonChunk, err := json.Marshal(doc)
	if err != nil {
		return &WriteError{Err: fmt.Errorf("encoding document JSON: %w", err)}
	}
	total := uint64(glbHeaderSize) +
		uint64(chunkHeaderSize) + uint64(pad4(len(jsonChunk))) +
		uint64(chunkHeaderSize) + uint64(pad4(len(buf.Data)))
	if total > math.MaxUint32 {
		return &WriteError{Err: fmt.Errorf("%w: %d bytes", ErrChunkTooLarge, total)}
	}

	return nil
}

// SaveAtomic validates the document and writes it as binary glTF,
// staging into a temporary file in the destination directory and
// renaming so a partial file is never visible under the final path.
func SaveAtomic(doc *gltf.Document, path string) error {
	if err := Validate(doc); err != nil {
		var we *WriteError
		if errors.As(err, &we) {
			we.Path = path
		}
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.part")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	enc := gltf.NewEncoder(tmp)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// componentSize returns the byte width of one accessor component.
func componentSize(t gltf.ComponentType) uint32 {
	switch t {
	case gltf.ComponentFloat, gltf.ComponentUint:
		return 4
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	}
	return 0
}

// componentCount returns the number of components per element.
func componentCount(t gltf.AccessorType) uint32 {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	}
	return 0
}

func pad4(n int) int {
	return (n + 3) &^ 3
}
