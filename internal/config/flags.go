package config

import "flag"

var (
	flagConfig       = flag.String("config", "", "Path to config file")
	flagVerbose      = flag.Bool("verbose", false, "Enable debug logging")
	flagOverwrite    = flag.Bool("overwrite", false, "Replace existing output files")
	flagRecursive    = flag.Bool("recursive", false, "Walk subdirectories in batch mode")
	flagConcurrency  = flag.Int("concurrency", 0, "Parallel conversions in batch mode")
	flagTextureLimit = flag.Int("texture-limit", 0, "Downscale textures above this dimension")
	flagRecompress   = flag.Bool("recompress", false, "Re-encode all textures as PNG/JPEG")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagVerbose {
		cfg.Logging.Level = "debug"
	}
	if *flagOverwrite {
		cfg.Conversion.Overwrite = true
	}
	if *flagRecursive {
		cfg.Conversion.Recursive = true
	}
	if *flagConcurrency > 0 {
		cfg.Conversion.Concurrency = *flagConcurrency
	}
	if *flagTextureLimit > 0 {
		cfg.Textures.ResolutionLimit = *flagTextureLimit
	}
	if *flagRecompress {
		cfg.Textures.Recompress = true
	}
}
