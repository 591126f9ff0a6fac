package config

import (
	"os"
	"path/filepath"

	"ncm-converter/internal/decoder"
)

// Default returns baseline configuration for a first launch without a config file.
func Default() Config {
	return Config{
		Decoder: Decoder{
			Binary: decoder.DefaultBinary,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Run: Run{
			LockPath: filepath.Join(configHome(), "ncmconv", "run.lock"),
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() string {
	return filepath.Join(configHome(), "ncmconv", "config.toml")
}

func configHome() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".config")
}
