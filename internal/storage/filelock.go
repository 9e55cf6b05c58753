package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// LockFileName is the lock shared by every writer in a base directory.
const LockFileName = ".blockplan.lock"

// lockDir takes an exclusive flock on the base directory's lock file. The
// returned function releases it.
func lockDir(basePath string) (unlock func() error, err error) {
	f, err := os.OpenFile(filepath.Join(basePath, LockFileName), os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("acquiring file lock: %w", err)
	}
	return func() error {
		defer func() { _ = f.Close() }()
		return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	}, nil
}

// writeLocked creates basePath if needed and writes data to path while
// holding the directory lock, so a watch process and a CLI command never
// interleave writes.
func writeLocked(basePath, path string, data []byte) error {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	unlock, err := lockDir(basePath)
	if err != nil {
		return err
	}
	werr := os.WriteFile(path, data, 0o600)
	if uerr := unlock(); werr == nil && uerr != nil {
		return fmt.Errorf("releasing file lock: %w", uerr)
	}
	if werr != nil {
		return fmt.Errorf("writing file: %w", werr)
	}
	return nil
}
