// Package runner serializes alignment runs: concurrent runs against one
// database would interleave checkpoint updates, so a filesystem lock keeps a
// single writer per data directory.
package runner

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is an exclusive per-data-directory run lock.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the lock without blocking. A held lock (another run in
// progress) is reported as an error naming the lock file.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another run holds the lock at %s", path)
	}
	return &Lock{flock: fl}, nil
}

// Release drops the lock. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	return l.flock.Unlock()
}
