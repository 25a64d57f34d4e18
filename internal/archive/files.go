package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"harvest/internal/faults"
)

const lockRetryDelay = 50 * time.Millisecond

// WriteFile replaces path with data atomically while holding an exclusive
// advisory lock on path + ".lock".
func WriteFile(ctx context.Context, path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return faults.Wrap(faults.ErrUsage, "archive", "write file", "could not lock "+path, nil)
	}
	defer func() { _ = lock.Unlock() }()

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// ReadFile reads path. When a WriteFile lock sibling already exists the read
// holds its shared lock; otherwise nothing is created next to path, so
// imports from read-only or foreign directories work.
func ReadFile(ctx context.Context, path string) ([]byte, error) {
	lockPath := path + ".lock"
	if _, err := os.Stat(lockPath); err == nil {
		lock := flock.New(lockPath, flock.SetFlag(os.O_RDONLY))
		locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
		switch {
		case err != nil && !errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("lock %s: %w", path, err)
		case err == nil && !locked:
			return nil, faults.Wrap(faults.ErrUsage, "archive", "read file", "could not lock "+path, nil)
		case locked:
			defer func() { _ = lock.Unlock() }()
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// Lock takes the archive-wide writer lock used by mutating commands. The
// returned function releases it.
func (a *Archive) Lock(ctx context.Context) (func(), error) {
	lock := flock.New(a.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire archive lock: %w", err)
	}
	if !locked {
		return nil, faults.Wrap(faults.ErrUsage, "archive", "lock", "another harvest command holds the archive", nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
