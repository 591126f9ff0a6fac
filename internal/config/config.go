// Package config loads ncmconv's read-only TOML configuration.
//
// Lookup order: the --config path, else the user config dir
// (~/.config/ncmconv/config.toml on Linux). A missing file yields defaults.
// NCMCONV_* environment variables, optionally from a .env file, override the
// file. Nothing is ever written back.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"ncm-converter/internal/domain"
	"ncm-converter/internal/logging"
)

// Environment variables that override file values.
const (
	EnvDecoder   = "NCMCONV_DECODER"
	EnvOutputDir = "NCMCONV_OUTPUT_DIR"
	EnvLogLevel  = "NCMCONV_LOG_LEVEL"
)

// Decoder configures the external decoder executable.
type Decoder struct {
	Binary string   `toml:"binary"`
	Args   []string `toml:"args"`
}

// Output configures where decoded files are written.
type Output struct {
	Dir string `toml:"dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Run configures batch run coordination.
type Run struct {
	// LockPath is the file locked while a run is active. Empty disables the
	// cross-process lock.
	LockPath string `toml:"lock_path"`
}

// Config encapsulates all configuration values.
type Config struct {
	Decoder Decoder `toml:"decoder"`
	Output  Output  `toml:"output"`
	Logging Logging `toml:"logging"`
	Run     Run     `toml:"run"`
}

// Load parses the configuration at path (or the default location when empty),
// applies environment overrides, and validates the result. It returns the
// resolved path and whether a file was found there.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath := path
	if strings.TrimSpace(resolvedPath) == "" {
		resolvedPath = DefaultConfigPath()
	}
	resolvedPath, err := expandPath(resolvedPath)
	if err != nil {
		return nil, "", false, err
	}

	exists := true
	file, err := os.Open(resolvedPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		exists = false
	case err != nil:
		return nil, "", false, fmt.Errorf("open config: %w", err)
	default:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadDotEnv loads NCMCONV_* variables from the given .env files when present.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file: %w", err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides values from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDecoder); ok && strings.TrimSpace(v) != "" {
		c.Decoder.Binary = v
	}
	if v, ok := lookup(EnvOutputDir); ok && strings.TrimSpace(v) != "" {
		c.Output.Dir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && strings.TrimSpace(v) != "" {
		c.Logging.Level = v
	}
}

// normalize trims values and expands paths.
func (c *Config) normalize() error {
	c.Decoder.Binary = strings.TrimSpace(c.Decoder.Binary)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	var err error
	if c.Output.Dir, err = expandPath(strings.TrimSpace(c.Output.Dir)); err != nil {
		return err
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return err
	}
	if c.Run.LockPath, err = expandPath(strings.TrimSpace(c.Run.LockPath)); err != nil {
		return err
	}
	return nil
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if c.Decoder.Binary == "" {
		return errors.New("decoder.binary must not be empty")
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// Settings returns the user-facing subset of the configuration.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		DecoderPath: c.Decoder.Binary,
		OutputDir:   c.Output.Dir,
	}
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
