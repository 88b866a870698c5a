// Package mapfile provides a lock-free, append-only writer over
// memory-mapped files. Writers reserve disjoint byte ranges by atomically
// advancing a shared offset, copy their payload without any mutual
// exclusion on the I/O path, and then commit by advancing a completion
// counter. Files can be written by many goroutines in one process, or by
// many cooperating processes through a 32-byte in-file header. When a
// file fills up, an optional rolling layer transparently swaps in a new
// file of the same capacity.
package mapfile

import (
	"encoding/binary"
	"errors"
)

// NullOffset is returned by non-rolling writes that could not fit in the
// remaining capacity of the file. It is the only out-of-band offset value.
const NullOffset int32 = -1

var (
	// ErrFileExists is returned when mapping a single-process file over a
	// path that already exists. Single-process files cannot be reopened.
	ErrFileExists = errors.New("mapfile: file already exists")

	// ErrPendingWrites is returned by Close while reserved writes have not
	// yet committed.
	ErrPendingWrites = errors.New("mapfile: pending writes")

	// ErrLengthExceedsCapacity is returned by rolling writes whose payload
	// could never fit in any file of the configured capacity.
	ErrLengthExceedsCapacity = errors.New("mapfile: write length exceeds file capacity")

	// ErrClosed is returned when an operation races with shutdown.
	ErrClosed = errors.New("mapfile: closed")
)

// WriteFunc fills a reserved range directly in the mapped region. The
// function must write exactly len(dst) bytes. The reservation commits when
// the function returns, even if it panics.
type WriteFunc func(dst []byte)

// FileProvider produces the next file path in a roll sequence.
type FileProvider interface {
	NextFile() string
}

// FileCompleteFunc runs after a rolled file has been fully committed and
// closed. It receives the path of the completed file.
type FileCompleteFunc func(path string)

// ConcurrentFile is the writer-visible surface of a concurrent file.
//
// Write-style methods return the offset the payload landed at, or
// NullOffset when a non-rolling file had no room left. Rolling files never
// return NullOffset; they roll to a new file and retry instead.
type ConcurrentFile interface {
	// Write appends p and returns its offset.
	Write(p []byte) (int32, error)

	// WriteAscii appends s one byte per code point. Code points above 127
	// are written as '?'.
	WriteAscii(s string) (int32, error)

	// WriteChars appends s as UTF-16 code units in the given byte order.
	WriteChars(s string, order binary.ByteOrder) (int32, error)

	// WriteWith reserves length bytes and invokes fn to fill them in place.
	WriteWith(length int32, fn WriteFunc) (int32, error)

	// IsPending reports whether writes issued through this instance have
	// been reserved but not yet committed.
	IsPending() bool

	// IsFinished reports whether the file has been finalized and all
	// reservations have committed. Rolling files are never finished.
	IsFinished() bool

	// Finish finalizes the file so no further writes can reserve space. On
	// a rolling file it finalizes the current file, forcing a roll.
	Finish()

	// Path returns the path of the backing file currently being written.
	Path() string

	// Close releases the mapping and the file handle. A non-rolling file
	// fails with ErrPendingWrites while reservations are outstanding; a
	// rolling file waits for them to commit.
	Close() error
}

// MappedFile extends ConcurrentFile with the reservation primitives the
// rolling and framing layers are built on.
type MappedFile interface {
	ConcurrentFile

	// Reserve atomically carves out length bytes and returns the offset of
	// the range, or NullOffset if the file is out of room. The caller must
	// balance every successful Reserve with exactly one Wrote.
	Reserve(length int32) int32

	// Wrote commits length previously reserved bytes.
	Wrote(length int32)

	// Bytes exposes the mapped region for direct payload copies.
	Bytes() []byte

	// Capacity returns the number of data bytes the file can hold.
	Capacity() int32

	// HasAvailableCapacity reports whether another reservation could still
	// succeed.
	HasAvailableCapacity() bool
}
