package mapfile

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// region owns a memory-mapped byte range and its backing file handle. It
// is valid from creation until Close; Close is idempotent per instance.
type region struct {
	file   *os.File
	data   []byte
	path   string
	closed atomic.Bool
}

// createRegion creates a new file of the given length and maps it
// read-write. The file must not already exist. Extending via ftruncate
// yields zero pages either way; zeroFill additionally touches every page
// so the blocks are allocated up front.
func createRegion(path string, length int64, zeroFill bool) (*region, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := file.Truncate(length); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to size %s to %d bytes: %w", path, length, err)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	if zeroFill {
		clear(data)
	}
	return &region{file: file, data: data, path: path}, nil
}

// mapRegion maps an existing file read-write at its current length.
func mapRegion(path string) (*region, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := unix.Mmap(int(file.Fd()), 0, int(stat.Size()),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to mmap %s: %w", path, err)
	}
	return &region{file: file, data: data, path: path}, nil
}

func (r *region) bytes() []byte { return r.data }

func (r *region) length() int64 { return int64(len(r.data)) }

// putBytes copies src into the region at off. Ranges handed out by the
// reservation protocol never overlap, so no synchronization is needed.
func (r *region) putBytes(off int64, src []byte) {
	copy(r.data[off:off+int64(len(src))], src)
}

func (r *region) truncate(size int64) error {
	if err := r.file.Truncate(size); err != nil {
		return fmt.Errorf("failed to truncate %s to %d bytes: %w", r.path, size, err)
	}
	return nil
}

func (r *region) sync() error {
	return unix.Msync(r.data, unix.MS_SYNC)
}

// close flushes, unmaps, and releases the handle. Safe to call more than
// once.
func (r *region) close() error {
	if r.closed.Swap(true) {
		return nil
	}
	var firstErr error
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		firstErr = fmt.Errorf("failed to msync %s: %w", r.path, err)
	}
	if err := unix.Munmap(r.data); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to munmap %s: %w", r.path, err)
	}
	r.data = nil
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close %s: %w", r.path, err)
	}
	return firstErr
}
