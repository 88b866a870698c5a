package mapfile

import (
	"bytes"
	"errors"
	"io/fs"
	"runtime"
	"strings"
	"sync/atomic"
	"unsafe"
)

const (
	// coordinationFileSize is the fixed length of the shared map. Only the
	// lock word and a short path payload are used; the rest stays zero.
	coordinationFileSize = 256 * 1024

	// coordinationPayloadOffset is where the NUL-terminated ASCII payload
	// starts, leaving the lock word on its own cache-line-friendly slot.
	coordinationPayloadOffset = 8
)

// DefaultCoordinationFileName is the file name used inside the roll
// directory when none is configured.
const DefaultCoordinationFileName = "roll.coordination"

// coordinationFile is the cross-process agreement point for rolling:
// a spin-lock word at byte 0 and a "current" or "current|preallocated"
// path payload at byte 8. The payload is only touched while the lock
// word is held.
type coordinationFile struct {
	region      *region
	lockWord    *atomic.Uint32
	provider    FileProvider
	preallocate bool
	yield       bool
}

// openCoordinationFile creates or maps the shared coordination file. Two
// processes racing to create it are resolved by the exclusive create: the
// loser maps the winner's file.
func openCoordinationFile(path string, provider FileProvider, preallocate, yield bool) (*coordinationFile, error) {
	r, err := createRegion(path, coordinationFileSize, false)
	if errors.Is(err, fs.ErrExist) {
		r, err = mapRegion(path)
	}
	if err != nil {
		return nil, err
	}
	return &coordinationFile{
		region:      r,
		lockWord:    (*atomic.Uint32)(unsafe.Pointer(&r.bytes()[0])),
		provider:    provider,
		preallocate: preallocate,
		yield:       yield,
	}, nil
}

func (c *coordinationFile) lock() {
	for !c.lockWord.CompareAndSwap(0, 1) {
		if c.yield {
			runtime.Gosched()
		}
	}
}

func (c *coordinationFile) unlock() {
	c.lockWord.Store(0)
}

// readPayload returns the NUL-terminated payload. Callers must hold the
// lock.
func (c *coordinationFile) readPayload() string {
	data := c.region.bytes()[coordinationPayloadOffset:]
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		end = len(data)
	}
	return string(data[:end])
}

// writePayload replaces the payload. Callers must hold the lock.
func (c *coordinationFile) writePayload(s string) {
	data := c.region.bytes()[coordinationPayloadOffset:]
	n := copy(data, s)
	data[n] = 0
}

// read returns the current payload without advancing it.
func (c *coordinationFile) read() string {
	c.lock()
	defer c.unlock()
	return c.readPayload()
}

// next advances the payload if it still equals local, and adopts it
// otherwise. On an advance with preallocation the names rotate: the
// previously announced preallocated file becomes current and a fresh name
// is announced. The very first advance announces both names at once so
// the current slot never holds an empty path.
func (c *coordinationFile) next(local string) string {
	c.lock()
	defer c.unlock()
	payload := c.readPayload()
	if payload != local {
		return payload
	}
	nextPath := c.provider.NextFile()
	var updated string
	switch {
	case !c.preallocate:
		updated = nextPath
	case preallocatedPath(payload) != "":
		updated = preallocatedPath(payload) + "|" + nextPath
	default:
		updated = nextPath + "|" + c.provider.NextFile()
	}
	c.writePayload(updated)
	return updated
}

// currentPath extracts the current file path from a payload.
func currentPath(payload string) string {
	if i := strings.IndexByte(payload, '|'); i >= 0 {
		return payload[:i]
	}
	return payload
}

// preallocatedPath extracts the announced preallocated file path, or ""
// when the payload carries none.
func preallocatedPath(payload string) string {
	if i := strings.IndexByte(payload, '|'); i >= 0 {
		return payload[i+1:]
	}
	return ""
}

func (c *coordinationFile) close() error {
	return c.region.close()
}
