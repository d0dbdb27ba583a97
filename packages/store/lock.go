package store

import (
	"fmt"
	"os"
	"time"
)

const (
	lockFileName = "index.lock"

	// lockRetryDelay is how long to sleep between acquisition attempts.
	lockRetryDelay = 2 * time.Millisecond
	// lockStaleAfter is the age past which a leftover lock file from a
	// dead process is taken over.
	lockStaleAfter = 10 * time.Second
	// lockTimeout bounds how long a writer waits before giving up. A put
	// that cannot acquire the lock is skipped, never blocked forever.
	lockTimeout = 5 * time.Second
)

// dirLock is a cross-process exclusive lock over one function directory,
// implemented as an O_EXCL-created lock file. It serializes sequence
// allocation and index updates between processes sharing the same store
// root.
type dirLock struct {
	path string
}

// acquireLock claims the lock file inside dir, retrying until timeout.
func acquireLock(dir string) (*dirLock, error) {
	path := dir + string(os.PathSeparator) + lockFileName
	deadline := time.Now().Add(lockTimeout)

	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &dirLock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("cannot create lock file: %w", err)
		}

		// Lock held by someone else. Take over if its owner is long gone.
		if info, statErr := os.Stat(path); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(path)
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for lock %s", path)
		}
		time.Sleep(lockRetryDelay)
	}
}

// release removes the lock file.
func (l *dirLock) release() {
	_ = os.Remove(l.path)
}
