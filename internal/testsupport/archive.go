package testsupport

import (
	"testing"

	"harvest/internal/archive"
	"harvest/internal/config"
)

// MustOpenArchive opens the archive configured in cfg and registers cleanup.
func MustOpenArchive(t testing.TB, cfg *config.Config) *archive.Archive {
	t.Helper()

	a, err := archive.Open(cfg, nil)
	if err != nil {
		t.Fatalf("archive.Open: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}
