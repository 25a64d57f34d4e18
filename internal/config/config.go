package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file locations.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	ArchivePath string `toml:"archive_path"`
	ExportDir   string `toml:"export_dir"`
}

// Source describes how to reach the upstream data source.
type Source struct {
	BaseURL        string `toml:"base_url"`
	FixturesDir    string `toml:"fixtures_dir"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// Resolve controls bulk placeholder resolution.
type Resolve struct {
	Concurrency            int  `toml:"concurrency"`
	IgnoreUpstreamFailures bool `toml:"ignore_upstream_failures"`
}

// Archive controls snapshot retention.
type Archive struct {
	Keep int `toml:"keep"`
}

// Export controls the textual envelope written by export commands.
type Export struct {
	Format string `toml:"format"`
	Indent bool   `toml:"indent"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for harvest.
//
// Configuration sections by subsystem:
//   - Paths: data, log, archive, and export locations
//   - Source: upstream base URL or offline fixtures directory
//   - Resolve: placeholder resolution fan-out and failure policy
//   - Archive: snapshot retention
//   - Export: envelope format
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Source  Source  `toml:"source"`
	Resolve Resolve `toml:"resolve"`
	Archive Archive `toml:"archive"`
	Export  Export  `toml:"export"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath is the per-user config location, ~/.config/harvest/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath(filepath.Join("~", ".config", "harvest", "config.toml"))
}

// Load reads the first config file found and returns it normalized and
// validated, along with the path consulted and whether that file existed.
// Unknown keys are rejected so typos surface instead of silently falling
// back to defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	source, exists, err := locateConfig(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		if err := decodeFile(source, &cfg); err != nil {
			return nil, source, true, err
		}
	}
	if err := cfg.normalize(); err != nil {
		return nil, source, exists, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, source, exists, err
	}
	return &cfg, source, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	dec := toml.NewDecoder(file)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("parse config %s: unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// locateConfig resolves the explicit path, or else the first of the user
// config and ./harvest.toml that exists. With nothing on disk it reports the
// user config path as absent.
func locateConfig(explicit string) (string, bool, error) {
	if explicit != "" {
		expanded, err := expandPath(explicit)
		if err != nil {
			return "", false, err
		}
		exists, err := isFile(expanded)
		return expanded, exists, err
	}

	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := expandPath("harvest.toml")
	if err != nil {
		return "", false, err
	}
	for _, candidate := range []string{userPath, projectPath} {
		if ok, _ := isFile(candidate); ok {
			return candidate, true, nil
		}
	}
	return userPath, false, nil
}

func isFile(path string) (bool, error) {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("stat config: %w", err)
	case info.IsDir():
		return false, fmt.Errorf("config path %s is a directory", path)
	}
	return true, nil
}

// EnsureDirectories creates the directories the CLI writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.ArchivePath)}
	if strings.TrimSpace(c.Paths.ExportDir) != "" {
		dirs = append(dirs, c.Paths.ExportDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SourceTimeout returns the fetch timeout as a duration.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Source.TimeoutSeconds) * time.Second
}

// Offline reports whether fetches are served from the fixtures directory.
func (c *Config) Offline() bool {
	return strings.TrimSpace(c.Source.FixturesDir) != ""
}

// expandPath resolves a leading ~ and returns an absolute, cleaned path.
// The empty string passes through.
func expandPath(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if value == "~" || strings.HasPrefix(value, "~/") || strings.HasPrefix(value, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		value = home + value[1:]
	}
	abs, err := filepath.Abs(value)
	if err != nil {
		return "", fmt.Errorf("absolute path for %q: %w", value, err)
	}
	return abs, nil
}

// ExpandPath applies the same expansion config paths get.
func ExpandPath(value string) (string, error) {
	return expandPath(value)
}

// CreateSample writes the commented sample config to path, creating its
// directory.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}
