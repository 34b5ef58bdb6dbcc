package runner_test

import (
	"path/filepath"
	"testing"

	"concord/internal/runner"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locks", "run.lock")

	first, err := runner.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer first.Release()

	if _, err := runner.Acquire(path); err == nil {
		t.Fatal("second acquire succeeded while the lock was held")
	}
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	lock, err := runner.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := runner.Acquire(path)
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	if err := again.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestReleaseNilLock(t *testing.T) {
	var lock *runner.Lock
	if err := lock.Release(); err != nil {
		t.Fatalf("nil release: %v", err)
	}
}
