package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestWriteLocked_CreatesDirAndFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "home")
	path := filepath.Join(base, TasksFileName)

	if err := writeLocked(base, path, []byte("version: \"1.0\"\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}
	if _, err := os.Stat(filepath.Join(base, LockFileName)); err != nil {
		t.Errorf("lock file not created: %v", err)
	}
}

func TestLockDir_Exclusive(t *testing.T) {
	base := t.TempDir()
	unlock, err := lockDir(base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acquired := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err := lockDir(base)
		if err != nil {
			t.Errorf("second lock: %v", err)
			close(acquired)
			return
		}
		close(acquired)
		_ = second()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first was held")
	case <-time.After(100 * time.Millisecond):
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock not acquired after release")
	}
	wg.Wait()
}
