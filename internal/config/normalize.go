package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDrive()
	c.normalizeEpisodes()
	c.normalizeTVDB()
	c.normalizeTMDB()
	c.normalizeEncode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.JournalPath) == "" {
		c.Paths.JournalPath = defaultJournalPath
	}
	if c.Paths.JournalPath, err = expandPath(c.Paths.JournalPath); err != nil {
		return fmt.Errorf("paths.journal_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDrive() {
	c.Drive.Device = strings.TrimSpace(c.Drive.Device)
	if c.Drive.Device == "" {
		c.Drive.Device = defaultOpticalDrive
	}
	if c.Drive.ScanTimeout <= 0 {
		c.Drive.ScanTimeout = defaultScanTimeout
	}
	if c.Drive.ScanRetries <= 0 {
		c.Drive.ScanRetries = defaultScanRetries
	}
}

func (c *Config) normalizeEpisodes() {
	if c.Episodes.MinSeconds <= 0 {
		c.Episodes.MinSeconds = defaultEpisodeMinSeconds
	}
	if c.Episodes.MaxSeconds <= 0 {
		c.Episodes.MaxSeconds = defaultEpisodeMaxSeconds
	}
	if c.Episodes.CompilationMinSeconds <= 0 {
		c.Episodes.CompilationMinSeconds = defaultCompilationMinSeconds
	}
}

func (c *Config) normalizeTVDB() {
	c.TVDB.APIKey = strings.TrimSpace(c.TVDB.APIKey)
	if c.TVDB.APIKey == "" {
		if value, ok := os.LookupEnv("TVDB_API_KEY"); ok {
			c.TVDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TVDB.PIN = strings.TrimSpace(c.TVDB.PIN)
	c.TVDB.BaseURL = strings.TrimSpace(c.TVDB.BaseURL)
	if c.TVDB.BaseURL == "" {
		c.TVDB.BaseURL = defaultTVDBBaseURL
	}
}

func (c *Config) normalizeTMDB() {
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimSpace(c.TMDB.BaseURL)
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.Language == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
}

func (c *Config) normalizeEncode() {
	c.Encode.Encoder = strings.TrimSpace(c.Encode.Encoder)
	if c.Encode.Encoder == "" {
		c.Encode.Encoder = defaultEncoder
	}
	c.Encode.FallbackEncoder = strings.TrimSpace(c.Encode.FallbackEncoder)
	if c.Encode.FallbackEncoder == "" {
		c.Encode.FallbackEncoder = defaultFallbackEncoder
	}
	if c.Encode.Quality <= 0 {
		c.Encode.Quality = defaultEncodeQuality
	}
	if c.Encode.Timeout <= 0 {
		c.Encode.Timeout = defaultEncodeTimeout
	}
	if c.Encode.Retries <= 0 {
		c.Encode.Retries = defaultEncodeRetries
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
