package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateResolve(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.TimeoutSeconds < 0 {
		return errors.New("source.timeout_seconds must be positive")
	}
	if c.Source.BaseURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Source.BaseURL)
	if err != nil {
		return fmt.Errorf("source.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("source.base_url must use http or https, got %q", c.Source.BaseURL)
	}
	return nil
}

func (c *Config) validateResolve() error {
	if c.Resolve.Concurrency < 1 {
		return errors.New("resolve.concurrency must be at least 1")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive.Keep < 1 {
		return errors.New("archive.keep must be at least 1")
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.Format {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("export.format: unsupported value %q (expected json or yaml)", c.Export.Format)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
