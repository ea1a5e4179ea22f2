package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"platter/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "platter", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.Paths.OutputDir != filepath.Join(tempHome, "videos") {
		t.Fatalf("unexpected output dir: %q", cfg.Paths.OutputDir)
	}
	if cfg.Paths.JournalPath != filepath.Join(tempHome, ".local", "share", "platter", "journal.db") {
		t.Fatalf("unexpected journal path: %q", cfg.Paths.JournalPath)
	}
	if cfg.Drive.Device != "/dev/sr0" {
		t.Fatalf("unexpected drive device: %q", cfg.Drive.Device)
	}
	if cfg.Episodes.MinSeconds != 1200 || cfg.Episodes.MaxSeconds != 3600 {
		t.Fatalf("unexpected episode range: %d-%d", cfg.Episodes.MinSeconds, cfg.Episodes.MaxSeconds)
	}
	if cfg.Episodes.CompilationMinSeconds != 5400 {
		t.Fatalf("unexpected compilation threshold: %d", cfg.Episodes.CompilationMinSeconds)
	}
	if cfg.Encode.Encoder != "nvenc_h265_10bit" || cfg.Encode.FallbackEncoder != "x264" {
		t.Fatalf("unexpected encoder defaults: %q / %q", cfg.Encode.Encoder, cfg.Encode.FallbackEncoder)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.LogDir, cfg.Paths.OutputDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "platter.toml")

	type payload struct {
		Drive struct {
			Device string `toml:"device"`
		} `toml:"drive"`
		Episodes struct {
			MinSeconds int `toml:"min_seconds"`
			MaxSeconds int `toml:"max_seconds"`
		} `toml:"episodes"`
		TVDB struct {
			APIKey  string `toml:"api_key"`
			BaseURL string `toml:"base_url"`
		} `toml:"tvdb"`
	}
	custom := payload{}
	custom.Drive.Device = "/dev/sr1"
	custom.Episodes.MinSeconds = 600
	custom.Episodes.MaxSeconds = 1800
	custom.TVDB.APIKey = "abc123"
	custom.TVDB.BaseURL = "https://example.com/tvdb"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Drive.Device != "/dev/sr1" {
		t.Fatalf("expected device override, got %q", cfg.Drive.Device)
	}
	if cfg.Episodes.MinSeconds != 600 || cfg.Episodes.MaxSeconds != 1800 {
		t.Fatalf("expected episode range override, got %d-%d", cfg.Episodes.MinSeconds, cfg.Episodes.MaxSeconds)
	}
	if cfg.TVDB.APIKey != "abc123" {
		t.Fatalf("expected TVDB key from file, got %q", cfg.TVDB.APIKey)
	}
	if cfg.TVDB.BaseURL != "https://example.com/tvdb" {
		t.Fatalf("expected TVDB base url override, got %q", cfg.TVDB.BaseURL)
	}
}

func TestEnvVarFillsMissingAPIKeys(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("TVDB_API_KEY", "env-tvdb")
	t.Setenv("TMDB_API_KEY", "env-tmdb")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.TVDB.APIKey != "env-tvdb" {
		t.Errorf("expected TVDB key from env, got %q", cfg.TVDB.APIKey)
	}
	if cfg.TMDB.APIKey != "env-tmdb" {
		t.Errorf("expected TMDB key from env, got %q", cfg.TMDB.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[episodes]") {
		t.Fatalf("sample config missing episodes section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Drive.Device != "/dev/sr0" {
		t.Fatalf("expected sample device default, got %q", cfg.Drive.Device)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Episodes.MinSeconds = 3600
	cfg.Episodes.MaxSeconds = 1200
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for inverted episode range")
	}

	cfg = config.Default()
	cfg.Episodes.CompilationMinSeconds = cfg.Episodes.MaxSeconds
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when compilation threshold within episode range")
	}

	cfg = config.Default()
	cfg.Encode.Quality = 99
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range quality")
	}

	cfg = config.Default()
	cfg.Drive.ScanTimeout = -5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive scan timeout")
	}
}
