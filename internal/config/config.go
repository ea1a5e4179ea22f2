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
	OutputDir   string `toml:"output_dir"`
	StagingDir  string `toml:"staging_dir"`
	LogDir      string `toml:"log_dir"`
	JournalPath string `toml:"journal_path"`
}

// Drive contains optical drive configuration.
type Drive struct {
	Device      string `toml:"device"`
	ScanTimeout int    `toml:"scan_timeout"`
	ScanRetries int    `toml:"scan_retries"`
}

// Episodes contains the default duration policy for episode detection.
type Episodes struct {
	MinSeconds            int `toml:"min_seconds"`
	MaxSeconds            int `toml:"max_seconds"`
	CompilationMinSeconds int `toml:"compilation_min_seconds"`
}

// TVDB contains configuration for TheTVDB API.
type TVDB struct {
	APIKey  string `toml:"api_key"`
	PIN     string `toml:"pin"`
	BaseURL string `toml:"base_url"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
	Language string `toml:"language"`
}

// Encode contains HandBrake encoder configuration.
type Encode struct {
	Encoder         string `toml:"encoder"`
	FallbackEncoder string `toml:"fallback_encoder"`
	Quality         int    `toml:"quality"`
	Timeout         int    `toml:"timeout"`
	Retries         int    `toml:"retries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Platter.
//
// Configuration sections by subsystem:
//   - Paths: output tree, staging area, logs, rip journal
//   - Drive: optical device and scan behaviour
//   - Episodes: default duration thresholds for classification
//   - TVDB: episode metadata for TV discs
//   - TMDB: canonical naming for movie discs
//   - Encode: HandBrake encoder selection and limits
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Drive    Drive    `toml:"drive"`
	Episodes Episodes `toml:"episodes"`
	TVDB     TVDB     `toml:"tvdb"`
	TMDB     TMDB     `toml:"tmdb"`
	Encode   Encode   `toml:"encode"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/platter/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/platter/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("platter.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
// OutputDir is created on a best-effort basis so planning can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	journalDir := filepath.Dir(c.Paths.JournalPath)
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir, journalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// HandBrakeBinary returns the HandBrake executable name used for scanning
// and encoding.
func (c *Config) HandBrakeBinary() string {
	return "HandBrakeCLI"
}

// NvidiaSMIBinary returns the executable probed to decide hardware encoder
// availability.
func (c *Config) NvidiaSMIBinary() string {
	return "nvidia-smi"
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
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
