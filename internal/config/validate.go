package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Catalog API keys are checked
// lazily by the clients that need them so a movie-only setup does not require
// TVDB credentials and vice versa.
func (c *Config) Validate() error {
	if err := c.validateEpisodes(); err != nil {
		return err
	}
	if err := c.validateDrive(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEpisodes() error {
	if c.Episodes.MinSeconds >= c.Episodes.MaxSeconds {
		return fmt.Errorf("episodes.min_seconds (%d) must be less than episodes.max_seconds (%d)",
			c.Episodes.MinSeconds, c.Episodes.MaxSeconds)
	}
	if c.Episodes.CompilationMinSeconds <= c.Episodes.MaxSeconds {
		return errors.New("episodes.compilation_min_seconds must exceed episodes.max_seconds")
	}
	return nil
}

func (c *Config) validateDrive() error {
	return ensurePositiveMap(map[string]int{
		"drive.scan_timeout": c.Drive.ScanTimeout,
		"drive.scan_retries": c.Drive.ScanRetries,
	})
}

func (c *Config) validateEncode() error {
	if c.Encode.Quality > 51 {
		return errors.New("encode.quality must be a valid constant quality value (1-51)")
	}
	return ensurePositiveMap(map[string]int{
		"encode.quality": c.Encode.Quality,
		"encode.timeout": c.Encode.Timeout,
		"encode.retries": c.Encode.Retries,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
