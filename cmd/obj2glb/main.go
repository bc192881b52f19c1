// obj2glb converts Wavefront OBJ models into binary glTF (GLB) files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"

	"github.com/meshforge/obj2glb/internal/batch"
	"github.com/meshforge/obj2glb/internal/config"
	"github.com/meshforge/obj2glb/internal/converter"
	"github.com/meshforge/obj2glb/internal/glb"
	"github.com/meshforge/obj2glb/internal/logger"
)

var (
	flagBatch      = flag.Bool("batch", false, "Convert every .obj under a directory")
	flagInitConfig = flag.String("init-config", "", "Write a default config file to the given path and exit")
)

func main() {
	flag.Usage = printUsage

	// Parse CLI flags first
	config.ParseFlags()

	if *flagInitConfig != "" {
		writeDefaultConfig(*flagInitConfig)
		return
	}

	if recursiveFlagSet() && !*flagBatch {
		fmt.Fprintln(os.Stderr, "Error: -recursive only applies to -batch mode")
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	textures := glb.TextureOptions{
		ResolutionLimit: cfg.Textures.ResolutionLimit,
		Recompress:      cfg.Textures.Recompress,
	}

	if *flagBatch {
		runBatch(cfg, textures)
		return
	}
	runSingle(cfg, textures)
}

func printUsage() {
	fmt.Printf(`obj2glb - Wavefront OBJ to binary glTF converter

Usage:
  obj2glb [flags] <input.obj> [output.glb]
  obj2glb -batch [flags] <input-dir> <output-dir>

Flags:
  -batch              Convert every .obj under a directory
  -recursive          Walk subdirectories (batch mode only)
  -overwrite          Replace existing .glb outputs
  -concurrency N      Parallel conversions in batch mode (default 4)
  -texture-limit N    Downscale textures above N pixels
  -recompress         Re-encode all textures as PNG/JPEG
  -verbose            Enable debug logging
  -config path        Load settings from a specific file
  -init-config path   Write a default config file and exit

Configuration is read from ./obj2glb.yaml or %s;
flags take priority.

Examples:
  obj2glb chair.obj
  obj2glb -texture-limit 1024 chair.obj chair.glb
  obj2glb -batch -recursive -concurrency 8 ./models ./glb
`, config.DefaultConfigPath())
}

// recursiveFlagSet reports whether -recursive was given on the command
// line, as opposed to enabled through a config file.
func recursiveFlagSet() bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "recursive" {
			set = true
		}
	})
	return set
}

func writeDefaultConfig(path string) {
	if err := config.Default().SaveTo(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", path)
}

func runSingle(cfg *config.Config, textures glb.TextureOptions) {
	if flag.NArg() < 1 || flag.NArg() > 2 {
		printUsage()
		os.Exit(1)
	}

	opts := converter.Options{
		Overwrite: cfg.Conversion.Overwrite,
		Textures:  textures,
	}

	res, err := converter.Convert(flag.Arg(0), flag.Arg(1), opts)
	if err != nil {
		if errors.Is(err, converter.ErrOutputExists) {
			fmt.Fprintf(os.Stderr, "Error: %v (use -overwrite to replace)\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
	}
	fmt.Printf("Converted %s -> %s (%s, %d triangles, %d materials)\n",
		res.InputPath, res.OutputPath,
		humanize.Bytes(uint64(res.OutputBytes)),
		res.Triangles, res.MaterialCount)
}

func runBatch(cfg *config.Config, textures glb.TextureOptions) {
	if flag.NArg() != 2 {
		printUsage()
		os.Exit(1)
	}

	// Ctrl-C stops new files from starting; in-flight conversions finish
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := batch.Options{
		Recursive:   cfg.Conversion.Recursive,
		Overwrite:   cfg.Conversion.Overwrite,
		Concurrency: cfg.Conversion.Concurrency,
		Textures:    textures,
	}

	sum, err := batch.Run(ctx, flag.Arg(0), flag.Arg(1), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if ctx.Err() != nil {
		fmt.Fprintln(os.Stderr, "Interrupted")
	}

	fmt.Printf("Converted %d of %d files (%d failed, %d skipped)\n",
		sum.Succeeded, sum.Total(), sum.Failed, sum.Skipped)
	for _, f := range sum.Failures {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", f.Path, f.Err)
	}

	if sum.Failed > 0 {
		os.Exit(1)
	}
}
