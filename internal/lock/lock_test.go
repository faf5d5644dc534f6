package lock

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	apperrors "patchwatch/internal/errors"
)

func TestTryAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "patchwatch.lock")

	l, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	defer func() { _ = l.Release() }()

	pid, ok := ReadPID(path)
	if !ok || pid != os.Getpid() {
		t.Errorf("ReadPID = %d, %v; want %d", pid, ok, os.Getpid())
	}
	if l.Path() != path {
		t.Errorf("Path() = %q", l.Path())
	}
}

func TestTryAcquireHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patchwatch.lock")

	first, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("first TryAcquire: %v", err)
	}
	defer func() { _ = first.Release() }()

	second, err := TryAcquire(path)
	if err == nil {
		_ = second.Release()
		t.Fatal("second TryAcquire should fail while the lock is held")
	}
	if !errors.Is(err, ErrHeld) {
		t.Errorf("err = %v, want ErrHeld", err)
	}
	if !apperrors.IsCode(err, apperrors.CodeAlreadyRunning) {
		t.Errorf("code = %s, want %s", apperrors.CodeOf(err), apperrors.CodeAlreadyRunning)
	}
}

func TestReleaseRemovesMarkerAndAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patchwatch.lock")

	l, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("marker still present: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	again, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("reacquire: %v", err)
	}
	_ = again.Release()
}

func TestReleaseInvalidatesHandleOpenedBeforeRemoval(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("an open handle blocks removal on windows")
	}
	path := filepath.Join(t.TempDir(), "patchwatch.lock")

	first, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	// A second instance has opened the marker but not yet locked it.
	//nolint:gosec // G304: test path
	early, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("open marker: %v", err)
	}
	defer func() { _ = early.Close() }()

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := lockOpened(early, path); !errors.Is(err, errStale) {
		t.Fatalf("lockOpened on removed marker = %v, want errStale", err)
	}

	second, err := TryAcquire(path)
	if err != nil {
		t.Fatalf("TryAcquire after release: %v", err)
	}
	defer func() { _ = second.Release() }()

	if err := lockOpened(early, path); err == nil {
		t.Fatal("stale handle must not lock while the marker is held")
	}
}

func TestReadPIDInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.lock")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := ReadPID(path); ok {
		t.Error("ReadPID should reject garbage")
	}
	if _, ok := ReadPID(filepath.Join(dir, "missing")); ok {
		t.Error("ReadPID should reject a missing file")
	}
}
