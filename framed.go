package mapfile

import (
	"encoding/binary"
	"unicode/utf16"
)

// frameHeaderSize is the 4-byte little-endian length word that precedes
// every framed payload. The stored length includes the word itself.
const frameHeaderSize = 4

// framedFile decorates a MappedFile so every write is length-prefixed.
// The payload goes in first and the length word last, so a reader that
// observes a non-zero length can safely consume that many bytes. A zero
// length word means the frame is still being written.
type framedFile struct {
	inner MappedFile
}

var _ MappedFile = (*framedFile)(nil)

func newFramedFile(inner MappedFile) *framedFile {
	return &framedFile{inner: inner}
}

// writeFrame reserves header plus payload, lets fill write the payload,
// then publishes the length word. The plain store of the length is made
// visible by the atomic completion add inside Wrote, which the deferred
// commit issues after the store.
func (f *framedFile) writeFrame(payloadLen int32, fill func(dst []byte)) (int32, error) {
	frameLen := frameHeaderSize + payloadLen
	offset := f.inner.Reserve(frameLen)
	if offset == NullOffset {
		return NullOffset, nil
	}
	defer f.inner.Wrote(frameLen)
	frame := f.inner.Bytes()[offset : int64(offset)+int64(frameLen)]
	fill(frame[frameHeaderSize:])
	binary.LittleEndian.PutUint32(frame, uint32(frameLen))
	return offset, nil
}

func (f *framedFile) Write(p []byte) (int32, error) {
	return f.writeFrame(int32(len(p)), func(dst []byte) {
		copy(dst, p)
	})
}

func (f *framedFile) WriteAscii(s string) (int32, error) {
	runes := []rune(s)
	return f.writeFrame(int32(len(runes)), func(dst []byte) {
		for i, r := range runes {
			if r > 127 {
				dst[i] = '?'
			} else {
				dst[i] = byte(r)
			}
		}
	})
}

func (f *framedFile) WriteChars(s string, order binary.ByteOrder) (int32, error) {
	units := utf16.Encode([]rune(s))
	return f.writeFrame(int32(2*len(units)), func(dst []byte) {
		for i, u := range units {
			order.PutUint16(dst[2*i:], u)
		}
	})
}

func (f *framedFile) WriteWith(length int32, fn WriteFunc) (int32, error) {
	return f.writeFrame(length, fn)
}

func (f *framedFile) Reserve(length int32) int32 { return f.inner.Reserve(length) }

func (f *framedFile) Wrote(length int32) { f.inner.Wrote(length) }

func (f *framedFile) IsPending() bool { return f.inner.IsPending() }

func (f *framedFile) IsFinished() bool { return f.inner.IsFinished() }

func (f *framedFile) Finish() { f.inner.Finish() }

func (f *framedFile) Path() string { return f.inner.Path() }

func (f *framedFile) Bytes() []byte { return f.inner.Bytes() }

func (f *framedFile) Capacity() int32 { return f.inner.Capacity() }

func (f *framedFile) HasAvailableCapacity() bool { return f.inner.HasAvailableCapacity() }

func (f *framedFile) Close() error { return f.inner.Close() }
