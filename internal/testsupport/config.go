package testsupport

import (
	"path/filepath"
	"testing"

	"harvest/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Fetches are served offline from <base>/fixtures unless an option changes
// the source.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ArchivePath = filepath.Join(base, "data", "archive.db")
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Source.FixturesDir = filepath.Join(base, "fixtures")
	cfgVal.Resolve.Concurrency = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBaseURL switches the test config to HTTP fetching against url.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.FixturesDir = ""
		b.cfg.Source.BaseURL = url
	}
}

// WithGradebookFixtures writes the reference gradebook fixtures into the
// fixtures directory.
func WithGradebookFixtures() ConfigOption {
	return func(b *configBuilder) {
		WriteGradebookFixtures(b.t, b.cfg.Source.FixturesDir)
	}
}

// WithStrictResolve makes upstream failures abort resolution.
func WithStrictResolve() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resolve.IgnoreUpstreamFailures = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
