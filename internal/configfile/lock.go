package configfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Lock acquisition polls at lockRetryInterval until lockTimeout elapses.
const (
	lockRetryInterval = 100 * time.Millisecond
	lockTimeout       = 10 * time.Second
)

// ErrLockTimeout means another process held the config lock for the whole
// acquisition window.
var ErrLockTimeout = errors.New("timed out waiting for config lock")

// Lock is a held sentinel-file lock over one configuration file.
// Existence of "<configPath>.lock" means held; creation is atomic via
// O_CREATE|O_EXCL.
type Lock struct {
	path string
}

// LockPath returns the sentinel path guarding configPath.
func LockPath(configPath string) string {
	return configPath + ".lock"
}

// Acquire takes the lock for configPath, retrying until the timeout or
// until ctx is done.
func Acquire(ctx context.Context, configPath string) (*Lock, error) {
	return acquire(ctx, configPath, lockTimeout, lockRetryInterval)
}

func acquire(ctx context.Context, configPath string, timeout, interval time.Duration) (*Lock, error) {
	lockPath := LockPath(configPath)
	deadline := time.Now().Add(timeout)

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &Lock{path: lockPath}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockPath)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Release removes the sentinel. A sentinel already gone (say, swept by an
// external cleanup) is not an error.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

// WithLock runs fn over the document at configPath with the lock held. The
// updated document is persisted only when fn succeeds; the lock is released
// on every exit path.
func WithLock(ctx context.Context, configPath string, fn func(*Document) error) error {
	lock, err := Acquire(ctx, configPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	doc, err := Load(configPath)
	if err != nil {
		return err
	}

	if err := fn(doc); err != nil {
		return err
	}

	return Save(configPath, doc)
}
