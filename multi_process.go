package mapfile

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"os"
	"sync/atomic"
	"unsafe"
)

// fileHeaderSize is the fixed header at the start of every multi-process
// file. Data offsets are absolute, so the first payload byte lands at 32.
const fileHeaderSize = 32

// fileHeader is the shared coordination state at the start of the mapped
// file. All fields are little-endian on disk; on the architectures this
// package supports, atomic loads and stores through the struct cast read
// and write exactly those bytes.
type fileHeader struct {
	DataStart     atomic.Int64 // offset of the first data byte, 32 once initialized
	FileSize      atomic.Int64 // mapped length, lowered to the truncation target on overflow
	NextWrite     atomic.Int64 // reservation cursor, absolute
	WriteComplete atomic.Int64 // completion cursor, absolute
}

func init() {
	if unsafe.Sizeof(fileHeader{}) != fileHeaderSize {
		panic("mapfile: fileHeader must be exactly 32 bytes")
	}
}

// MultiProcessFile coordinates writers in separate processes through the
// in-file header. Pending-write tracking is per instance: the header
// cursors are byte counts, the local counters count operations, so an
// instance only knows about its own outstanding reservations.
type MultiProcessFile struct {
	localReserved  atomic.Int64
	localComplete  atomic.Int64
	truncateTarget atomic.Int64 // -1 unless this instance drove the overflow
	closed         atomic.Bool

	hdr      *fileHeader
	region   *region
	path     string
	fileSize int64
}

var _ MappedFile = (*MultiProcessFile)(nil)

// MapMultiProcess creates or reopens a multi-process file. The first
// mapper sizes the file to header plus capacity; later mappers adopt the
// existing length. The header handshake is a nested CAS chain so that
// concurrent first mappers agree on one initializer: whoever wins
// DataStart 0 to 32 also seeds NextWrite and WriteComplete. A mapper that
// finds DataStart already set leaves the header alone and does not wait
// for the initializer to finish seeding the cursors.
func MapMultiProcess(path string, capacity int32, zeroFill bool) (*MultiProcessFile, error) {
	var r *region
	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		r, err = mapRegion(path)
	} else {
		r, err = createRegion(path, fileHeaderSize+int64(capacity), zeroFill)
		// Peers may race to create the same announced file; the loser of
		// the exclusive create adopts the winner's.
		if errors.Is(err, fs.ErrExist) {
			r, err = mapRegion(path)
		}
	}
	if err != nil {
		return nil, err
	}
	f := &MultiProcessFile{
		hdr:      (*fileHeader)(unsafe.Pointer(&r.bytes()[0])),
		region:   r,
		path:     path,
		fileSize: r.length(),
	}
	f.truncateTarget.Store(-1)
	if f.hdr.DataStart.CompareAndSwap(0, fileHeaderSize) {
		if f.hdr.NextWrite.CompareAndSwap(0, fileHeaderSize) {
			f.hdr.WriteComplete.CompareAndSwap(0, fileHeaderSize)
		}
		f.hdr.FileSize.CompareAndSwap(0, f.fileSize)
	}
	return f, nil
}

// Reserve carves out length bytes at an absolute offset past the header.
// The instance that overflows the file records itself as the designated
// truncator and lowers the header FileSize to the truncation target, which
// IsFinished reads. Other processes stop reserving because NextWrite now
// lies past the end of the file.
func (f *MultiProcessFile) Reserve(length int32) int32 {
	f.localReserved.Add(1)
	for {
		offset := f.hdr.NextWrite.Load()
		if offset >= f.fileSize {
			f.localComplete.Add(1)
			return NullOffset
		}
		if !f.hdr.NextWrite.CompareAndSwap(offset, offset+int64(length)) {
			continue
		}
		if offset+int64(length) > f.fileSize {
			f.Wrote(length)
			f.truncateTarget.Store(offset)
			f.hdr.FileSize.Store(offset)
			return NullOffset
		}
		return int32(offset)
	}
}

// Wrote commits length previously reserved bytes and retires one local
// reservation.
func (f *MultiProcessFile) Wrote(length int32) {
	f.hdr.WriteComplete.Add(int64(length))
	f.localComplete.Add(1)
}

func (f *MultiProcessFile) Write(p []byte) (int32, error) {
	return writeBytes(f, p)
}

func (f *MultiProcessFile) WriteAscii(s string) (int32, error) {
	return writeAscii(f, s)
}

func (f *MultiProcessFile) WriteChars(s string, order binary.ByteOrder) (int32, error) {
	return writeChars(f, s, order)
}

func (f *MultiProcessFile) WriteWith(length int32, fn WriteFunc) (int32, error) {
	return writeWith(f, length, fn)
}

// IsPending reports whether this instance has reservations that have not
// committed. Other processes' pending writes are not visible.
func (f *MultiProcessFile) IsPending() bool {
	return f.localReserved.Load() != f.localComplete.Load()
}

// IsFinished reports whether the file overflowed and every reservation
// across all processes has committed.
func (f *MultiProcessFile) IsFinished() bool {
	writeComplete := f.hdr.WriteComplete.Load()
	nextWrite := f.hdr.NextWrite.Load()
	return writeComplete == nextWrite &&
		writeComplete >= f.fileSize &&
		f.hdr.FileSize.Load() < f.fileSize
}

// Finish forces the overflow branch, permanently finalizing the file for
// every process mapping it.
func (f *MultiProcessFile) Finish() {
	f.Reserve(math.MaxInt32)
}

func (f *MultiProcessFile) Path() string { return f.path }

func (f *MultiProcessFile) Bytes() []byte { return f.region.bytes() }

// Capacity returns the data bytes the file can hold, excluding the header.
func (f *MultiProcessFile) Capacity() int32 {
	return int32(f.fileSize - fileHeaderSize)
}

func (f *MultiProcessFile) HasAvailableCapacity() bool {
	return f.hdr.NextWrite.Load() < f.fileSize
}

// Close unmaps the file. Only the instance that drove the overflow
// truncates, and only once every process's writes have committed; other
// instances just release their mapping.
func (f *MultiProcessFile) Close() error {
	if f.IsPending() {
		return ErrPendingWrites
	}
	if f.closed.Swap(true) {
		return nil
	}
	if size := f.truncateTarget.Load(); size >= 0 && f.IsFinished() {
		if err := f.region.truncate(size); err != nil {
			f.region.close()
			return err
		}
	}
	return f.region.close()
}
