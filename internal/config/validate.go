package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable. Provider credential checks
// live with the provider clients so a disabled provider never blocks a run.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateEnrich(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelaySeconds < 0 {
		return errors.New("retry.base_delay_seconds must not be negative")
	}
	if c.Retry.MaxDelaySeconds < c.Retry.BaseDelaySeconds {
		return errors.New("retry.max_delay_seconds must be at least retry.base_delay_seconds")
	}
	if c.Retry.PacePerSecond <= 0 {
		return errors.New("retry.pace_per_second must be positive")
	}
	return nil
}

func (c *Config) validateEnrich() error {
	if c.Enrich.Workers < 1 {
		return errors.New("enrich.workers must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
