//go:build unix

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapWrite creates (or truncates) path, sizes it to len(data), maps it,
// copies data in, and unmaps it - the segment's bytes live on in the file
// for whichever side maps it next.
func mmapWrite(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer f.Close()

	if len(data) == 0 {
		return nil // zero-length array: an empty file maps to an empty slice
	}
	if err := f.Truncate(int64(len(data))); err != nil {
		return fmt.Errorf("shm: truncate %s: %w", path, err)
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, len(data), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	defer unix.Munmap(mapped)

	copy(mapped, data)
	return nil
}

// mmapRead maps path read-only and copies its bytes out, unmapping before
// returning: callers get an ordinary Go-owned []byte, not a view into the
// mapping.
func mmapRead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	n := int(fi.Size())
	if n == 0 {
		return nil, nil
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	defer unix.Munmap(mapped)

	out := make([]byte, n)
	copy(out, mapped)
	return out, nil
}
