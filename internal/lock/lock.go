// Package lock keeps a single patchwatch instance running per user.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "patchwatch/internal/errors"
)

// ErrHeld is returned when another process owns the lock.
var ErrHeld = errors.New("another instance is already running")

// Lock is an exclusive, non-blocking lock on a marker file that holds the
// owner's PID.
type Lock struct {
	path string
	f    *os.File
}

// acquireAttempts bounds how often TryAcquire reopens a marker that was
// removed between open and lock.
const acquireAttempts = 3

// errStale means the locked handle no longer names the file at path.
var errStale = errors.New("lock file replaced")

// TryAcquire takes the lock at path or fails immediately. The returned
// error carries apperrors.CodeAlreadyRunning when the lock is held.
func TryAcquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	var err error
	for range acquireAttempts {
		var f *os.File
		//nolint:gosec // G304: lock path comes from configuration
		f, err = os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open lock file: %w", err)
		}
		err = lockOpened(f, path)
		if err == nil {
			if err := f.Truncate(0); err == nil {
				_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
				_ = f.Sync()
			}
			return &Lock{path: path, f: f}, nil
		}
		_ = f.Close()
		if !errors.Is(err, errStale) {
			break
		}
	}
	if errors.Is(err, errWouldBlock) {
		msg := "lock held"
		if pid, ok := ReadPID(path); ok {
			msg = fmt.Sprintf("lock held by pid %d", pid)
		}
		return nil, apperrors.New(apperrors.CodeAlreadyRunning, msg, ErrHeld)
	}
	return nil, fmt.Errorf("lock %s: %w", path, err)
}

// lockOpened locks f and checks that path still names the same file. A
// releasing owner removes the marker while holding it, so a handle opened
// before that removal locks an orphaned inode and must be reopened.
func lockOpened(f *os.File, path string) error {
	if err := tryLock(f); err != nil {
		return err
	}
	held, err := f.Stat()
	if err != nil {
		_ = unlock(f)
		return err
	}
	current, err := os.Stat(path)
	if err != nil || !os.SameFile(held, current) {
		_ = unlock(f)
		return errStale
	}
	return nil
}

// Path returns the marker file location.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the marker file and then unlocks it. It is safe to call
// twice.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	removeErr := os.Remove(l.path)
	_ = unlock(f)
	closeErr := f.Close()
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		// Windows refuses to delete a file with an open handle.
		removeErr = os.Remove(l.path)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			return fmt.Errorf("remove lock file: %w", removeErr)
		}
	}
	return closeErr
}

// ReadPID returns the PID recorded in the marker file, if any.
func ReadPID(path string) (int, bool) {
	//nolint:gosec // G304: lock path comes from configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
