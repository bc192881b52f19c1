// Package batch discovers OBJ files under a directory and converts
// them to GLB concurrently.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/meshforge/obj2glb/internal/converter"
	"github.com/meshforge/obj2glb/internal/glb"
	"github.com/meshforge/obj2glb/internal/logger"
)

// FileError wraps a per-file conversion failure so the batch can
// continue past it.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Options adjust a batch run.
type Options struct {
	Recursive   bool
	Overwrite   bool
	Concurrency int
	Textures    glb.TextureOptions
}

// Summary is the terminal state of every discovered file. Existing
// outputs left in place and files unlaunched after a cancellation
// count as skipped.
type Summary struct {
	Succeeded int
	Failed    int
	Skipped   int
	Failures  []FileError
}

// Total returns the number of files the summary accounts for.
func (s *Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Discover lists the .obj files under root, sorted by path. Without
// recursive only root's own entries are considered.
func Discover(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is not a directory", root)
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isOBJ(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() && isOBJ(e.Name()) {
				files = append(files, filepath.Join(root, e.Name()))
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func isOBJ(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".obj")
}

// OutputPath maps an input file to its .glb twin under outputRoot. In
// recursive mode the layout relative to inputRoot is mirrored; flat
// mode uses the bare file name.
func OutputPath(inputPath, inputRoot, outputRoot string, recursive bool) string {
	name := filepath.Base(inputPath)
	if recursive {
		if rel, err := filepath.Rel(inputRoot, inputPath); err == nil {
			name = rel
		}
	}
	return filepath.Join(outputRoot, strings.TrimSuffix(name, filepath.Ext(name))+".glb")
}

// Run converts every discovered .obj under inputRoot into outputRoot.
// Individual failures are recorded and never stop the batch.
// Cancelling ctx stops workers from starting new files; in-flight
// conversions run to completion and files never started count as
// skipped.
func Run(ctx context.Context, inputRoot, outputRoot string, opts Options) (*Summary, error) {
	files, err := Discover(inputRoot, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		logger.Warn("no .obj files found", zap.String("dir", inputRoot))
		return &Summary{}, nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > len(files) {
		concurrency = len(files)
	}
	logger.Info("starting batch conversion",
		zap.Int("files", len(files)),
		zap.Int("workers", concurrency))

	convertOpts := converter.Options{
		Overwrite:   opts.Overwrite,
		Textures:    opts.Textures,
		CatalogRoot: outputRoot,
	}

	var (
		wg      sync.WaitGroup
		counter struct {
			sync.Mutex
			summary Summary
			done    int
		}
	)

	tasks := make(chan string, len(files))
	for _, file := range files {
		tasks <- file
	}
	close(tasks)

	total := len(files)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				if ctx.Err() != nil {
					counter.Lock()
					counter.summary.Skipped++
					counter.Unlock()
					continue
				}

				out := OutputPath(file, inputRoot, outputRoot, opts.Recursive)
				res, err := converter.Convert(file, out, convertOpts)

				counter.Lock()
				counter.done++
				seq := counter.done
				switch {
				case err == nil:
					counter.summary.Succeeded++
				case errors.Is(err, converter.ErrOutputExists):
					counter.summary.Skipped++
				default:
					counter.summary.Failed++
					counter.summary.Failures = append(counter.summary.Failures,
						FileError{Path: file, Err: err})
				}
				counter.Unlock()

				switch {
				case err == nil:
					logger.Info(fmt.Sprintf("[%d/%d] converted", seq, total),
						zap.String("input", file),
						zap.String("output", out),
						zap.Int("triangles", res.Triangles))
				case errors.Is(err, converter.ErrOutputExists):
					logger.Info(fmt.Sprintf("[%d/%d] skipped, output exists", seq, total),
						zap.String("input", file))
				default:
					logger.Error(fmt.Sprintf("[%d/%d] failed", seq, total),
						zap.String("input", file),
						zap.Error(err))
				}
			}
		}()
	}

	wg.Wait()

	summary := counter.summary
	return &summary, nil
}
