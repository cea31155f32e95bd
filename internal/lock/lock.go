// Package lock serializes mutating workspace operations through
// advisory per-resource file locks under .ballast/locks.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// ErrHeld reports a lock currently owned by another process.
var ErrHeld = errors.New("lock held")

// Lock is a non-blocking flock on one named resource of a workspace.
type Lock struct {
	resource string
	path     string
	file     *os.File
}

// New builds a lock for the named resource, e.g. "kard-dev".
func New(root, resource string) *Lock {
	return &Lock{
		resource: resource,
		path:     filepath.Join(root, ".ballast", "locks", resource+".lock"),
	}
}

// Acquire takes the lock or fails immediately when a concurrent
// operation holds it. The lock file records the owner pid.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("%s is busy, another operation is already running: %w", l.resource, ErrHeld)
		}
		return fmt.Errorf("lock %s: %w", l.resource, err)
	}

	f.Truncate(0)
	fmt.Fprintf(f, "%d\n", os.Getpid())
	l.file = f
	return nil
}

// Release drops the lock and removes its file. Releasing a lock that
// was never acquired is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	defer func() {
		l.file.Close()
		l.file = nil
	}()

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock %s: %w", l.resource, err)
	}
	os.Remove(l.path)
	return nil
}

// WithLock runs fn while holding the resource lock.
func WithLock(root, resource string, fn func() error) error {
	l := New(root, resource)
	if err := l.Acquire(); err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
