package mapfile

import (
	"encoding/binary"
	"math"
	"os"
	"sync/atomic"
)

// SingleProcessFile is the reservation engine with no on-disk state: the
// offset and completion cursors live in process memory. There is no file
// header, and a file cannot be reopened after it has been closed.
type SingleProcessFile struct {
	nextWriteOffset atomic.Int64
	writeComplete   atomic.Int64
	finalFileSize   atomic.Int64 // -1 until a reservation overflows
	closed          atomic.Bool

	region   *region
	path     string
	capacity int64
}

var _ MappedFile = (*SingleProcessFile)(nil)

// MapSingleProcess creates and maps a new single-process file of the given
// capacity. Mapping an existing file is rejected.
func MapSingleProcess(path string, capacity int32, zeroFill bool) (*SingleProcessFile, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, ErrFileExists
	}
	r, err := createRegion(path, int64(capacity), zeroFill)
	if err != nil {
		return nil, err
	}
	f := &SingleProcessFile{
		region:   r,
		path:     path,
		capacity: int64(capacity),
	}
	f.finalFileSize.Store(-1)
	return f, nil
}

// Reserve carves out length bytes. The first reservation that would end
// past capacity finalizes the file: it commits a phantom length so the
// completion cursor can still converge, records the truncation target,
// and returns NullOffset. Later callers observe the sentinel cursor and
// return NullOffset without touching it.
func (f *SingleProcessFile) Reserve(length int32) int32 {
	for {
		offset := f.nextWriteOffset.Load()
		if offset >= f.capacity {
			return NullOffset
		}
		if !f.nextWriteOffset.CompareAndSwap(offset, offset+int64(length)) {
			continue
		}
		if offset+int64(length) > f.capacity {
			// First reservation that does not fit. Commit the phantom length
			// so writeComplete can catch up to the sentinel cursor, then
			// record where the data actually ends.
			f.Wrote(length)
			f.finalFileSize.Store(offset)
			return NullOffset
		}
		return int32(offset)
	}
}

// Wrote commits length previously reserved bytes.
func (f *SingleProcessFile) Wrote(length int32) {
	f.writeComplete.Add(int64(length))
}

func (f *SingleProcessFile) Write(p []byte) (int32, error) {
	return writeBytes(f, p)
}

func (f *SingleProcessFile) WriteAscii(s string) (int32, error) {
	return writeAscii(f, s)
}

func (f *SingleProcessFile) WriteChars(s string, order binary.ByteOrder) (int32, error) {
	return writeChars(f, s, order)
}

func (f *SingleProcessFile) WriteWith(length int32, fn WriteFunc) (int32, error) {
	return writeWith(f, length, fn)
}

// IsPending reports whether any reservation is still uncommitted.
func (f *SingleProcessFile) IsPending() bool {
	return f.nextWriteOffset.Load() != f.writeComplete.Load()
}

// IsFinished reports whether the file has overflowed and every
// reservation, including the phantom one, has committed.
func (f *SingleProcessFile) IsFinished() bool {
	writeComplete := f.writeComplete.Load()
	nextOffset := f.nextWriteOffset.Load()
	return writeComplete == nextOffset && writeComplete >= f.capacity && f.finalFileSize.Load() > 0
}

// Finish forces the overflow branch by reserving more bytes than any file
// can hold, permanently finalizing the file.
func (f *SingleProcessFile) Finish() {
	f.Reserve(math.MaxInt32)
}

func (f *SingleProcessFile) Path() string { return f.path }

func (f *SingleProcessFile) Bytes() []byte { return f.region.bytes() }

func (f *SingleProcessFile) Capacity() int32 { return int32(f.capacity) }

func (f *SingleProcessFile) HasAvailableCapacity() bool {
	return f.nextWriteOffset.Load() < f.capacity
}

// Close truncates the backing file to the finalized size, if any, then
// unmaps and closes it. It fails while writes are pending.
func (f *SingleProcessFile) Close() error {
	if f.IsPending() {
		return ErrPendingWrites
	}
	if f.closed.Swap(true) {
		return nil
	}
	if size := f.finalFileSize.Load(); size >= 0 {
		if err := f.region.truncate(size); err != nil {
			f.region.close()
			return err
		}
	}
	return f.region.close()
}
