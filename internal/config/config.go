package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir  string `toml:"cache_dir"`
	LogDir    string `toml:"log_dir"`
	OutputDir string `toml:"output_dir"`
}

// TTS contains configuration for the speech synthesis provider.
type TTS struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Voice          string `toml:"voice"`
	Language       string `toml:"language"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Images contains configuration for the image search provider.
type Images struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Query contains configuration for the search-phrase enhancement service.
type Query struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Retry contains the shared provider retry policy.
type Retry struct {
	MaxAttempts      int     `toml:"max_attempts"`
	BaseDelaySeconds int     `toml:"base_delay_seconds"`
	MaxDelaySeconds  int     `toml:"max_delay_seconds"`
	PacePerSecond    float64 `toml:"pace_per_second"`
}

// Enrich contains batch enrichment settings.
type Enrich struct {
	Workers int `toml:"workers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for cardloom.
type Config struct {
	Paths   Paths   `toml:"paths"`
	TTS     TTS     `toml:"tts"`
	Images  Images  `toml:"images"`
	Query   Query   `toml:"query"`
	Retry   Retry   `toml:"retry"`
	Enrich  Enrich  `toml:"enrich"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cardloom/config.toml")
}

// Load locates, parses, and validates a configuration file. An empty path
// falls back to DefaultConfigPath; a missing default file yields defaults.
// The returned config has paths expanded and secrets resolved from the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		data, readErr := os.ReadFile(resolvedPath)
		if readErr != nil {
			return nil, fmt.Errorf("read config %s: %w", resolvedPath, readErr)
		}
		if decodeErr := toml.Unmarshal(data, &cfg); decodeErr != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolvedPath, decodeErr)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AudioDir returns the flat directory holding cached audio files.
func (c *Config) AudioDir() string {
	return filepath.Join(c.Paths.CacheDir, "audio")
}

// ImageDir returns the flat directory holding cached image files.
func (c *Config) ImageDir() string {
	return filepath.Join(c.Paths.CacheDir, "images")
}

// EnsureDirectories creates the cache, log, and output directories if absent.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.CacheDir, c.AudioDir(), c.ImageDir(), c.Paths.OutputDir}
	if c.Paths.LogDir != "" {
		dirs = append(dirs, c.Paths.LogDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(expanded); statErr == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return statErr
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func resolveConfigPath(path string) (string, bool, error) {
	trimmed := strings.TrimSpace(path)
	explicit := trimmed != ""
	if !explicit {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		trimmed = defaultPath
	}

	expanded, err := expandPath(trimmed)
	if err != nil {
		return "", false, err
	}
	if _, statErr := os.Stat(expanded); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			if explicit {
				return "", false, fmt.Errorf("config file not found at %s", expanded)
			}
			return expanded, false, nil
		}
		return "", false, statErr
	}
	return expanded, true, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			trimmed = home
		} else {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", trimmed, err)
	}
	return abs, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}

	// Secrets may reference the environment: api_key = "${PEXELS_API_KEY}".
	c.TTS.APIKey = expandSecret(c.TTS.APIKey)
	c.Images.APIKey = expandSecret(c.Images.APIKey)
	c.Query.APIKey = expandSecret(c.Query.APIKey)

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.Contains(trimmed, "${") {
		return trimmed
	}
	return strings.TrimSpace(os.ExpandEnv(trimmed))
}
