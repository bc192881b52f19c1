// Package config handles converter configuration loading and management.
package config

// Config holds all converter settings.
type Config struct {
	Conversion ConversionConfig `yaml:"conversion"`
	Textures   TexturesConfig   `yaml:"textures"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ConversionConfig holds conversion and batch settings.
type ConversionConfig struct {
	Overwrite   bool `yaml:"overwrite"`   // Replace existing .glb outputs
	Recursive   bool `yaml:"recursive"`   // Walk subdirectories in batch mode
	Concurrency int  `yaml:"concurrency"` // Parallel conversions in batch mode
}

// TexturesConfig holds texture embedding settings.
type TexturesConfig struct {
	ResolutionLimit int  `yaml:"resolution_limit"` // Max texture dimension, 0 = unlimited
	Recompress      bool `yaml:"recompress"`       // Re-encode even PNG/JPEG sources
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Conversion: ConversionConfig{
			Overwrite:   false,
			Recursive:   false,
			Concurrency: 4,
		},
		Textures: TexturesConfig{
			ResolutionLimit: 0,
			Recompress:      false,
		},
		Logging: LoggingConfig{
			Level:   "error",
			LogFile: "",
		},
	}
}
