package mapfile

import (
	"encoding/binary"
	"unicode/utf16"
)

// The write surface is shared by every MappedFile implementation: reserve
// a range, copy the payload, and commit via a deferred Wrote so the
// completion cursor advances even if the copy panics.

func writeBytes(f MappedFile, p []byte) (int32, error) {
	length := int32(len(p))
	offset := f.Reserve(length)
	if offset == NullOffset {
		return NullOffset, nil
	}
	defer f.Wrote(length)
	copy(f.Bytes()[offset:int64(offset)+int64(length)], p)
	return offset, nil
}

func writeAscii(f MappedFile, s string) (int32, error) {
	length := int32(len([]rune(s)))
	offset := f.Reserve(length)
	if offset == NullOffset {
		return NullOffset, nil
	}
	defer f.Wrote(length)
	dst := f.Bytes()[offset : int64(offset)+int64(length)]
	i := 0
	for _, r := range s {
		if r > 127 {
			dst[i] = '?'
		} else {
			dst[i] = byte(r)
		}
		i++
	}
	return offset, nil
}

func writeChars(f MappedFile, s string, order binary.ByteOrder) (int32, error) {
	units := utf16.Encode([]rune(s))
	length := int32(2 * len(units))
	offset := f.Reserve(length)
	if offset == NullOffset {
		return NullOffset, nil
	}
	defer f.Wrote(length)
	dst := f.Bytes()[offset : int64(offset)+int64(length)]
	for i, u := range units {
		order.PutUint16(dst[2*i:], u)
	}
	return offset, nil
}

func writeWith(f MappedFile, length int32, fn WriteFunc) (int32, error) {
	offset := f.Reserve(length)
	if offset == NullOffset {
		return NullOffset, nil
	}
	defer f.Wrote(length)
	fn(f.Bytes()[offset : int64(offset)+int64(length)])
	return offset, nil
}
