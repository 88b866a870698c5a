package mapfile

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestFramedWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framed.dat")
	inner, err := MapSingleProcess(path, 128, false)
	if err != nil {
		t.Fatal(err)
	}
	f := newFramedFile(inner)

	offset, err := f.Write([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if offset != 0 {
		t.Errorf("frame offset = %d, want 0", offset)
	}

	want := []byte{0x06, 0x00, 0x00, 0x00, 'h', 'i'}
	if !bytes.Equal(f.Bytes()[:6], want) {
		t.Errorf("frame bytes = %v, want %v", f.Bytes()[:6], want)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFramedSequenceDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.dat")
	inner, err := MapSingleProcess(path, 1024, false)
	if err != nil {
		t.Fatal(err)
	}
	f := newFramedFile(inner)

	payloads := [][]byte{
		[]byte("first"),
		[]byte(""),
		[]byte("third payload"),
	}
	for _, p := range payloads {
		if off, err := f.Write(p); err != nil || off == NullOffset {
			t.Fatalf("write %q: offset=%d err=%v", p, off, err)
		}
	}
	if off, err := f.WriteAscii("mixé"); err != nil || off == NullOffset {
		t.Fatalf("writeAscii: offset=%d err=%v", off, err)
	}
	payloads = append(payloads, []byte("mix?"))

	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var decoded [][]byte
	off := 0
	for off+4 <= len(data) {
		frameLen := int(binary.LittleEndian.Uint32(data[off:]))
		if frameLen == 0 {
			break
		}
		decoded = append(decoded, data[off+4:off+frameLen])
		off += frameLen
	}
	if len(decoded) != len(payloads) {
		t.Fatalf("decoded %d frames, want %d", len(decoded), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(decoded[i], payloads[i]) {
			t.Errorf("frame %d = %q, want %q", i, decoded[i], payloads[i])
		}
	}
}

func TestFramedWriteChars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames16.dat")
	inner, err := MapSingleProcess(path, 128, false)
	if err != nil {
		t.Fatal(err)
	}
	f := newFramedFile(inner)
	defer f.Close()

	if _, err := f.WriteChars("ab", binary.LittleEndian); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x08, 0x00, 0x00, 0x00, 'a', 0, 'b', 0}
	if !bytes.Equal(f.Bytes()[:8], want) {
		t.Errorf("frame = %v, want %v", f.Bytes()[:8], want)
	}
}

func TestFramedWriteWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framesfn.dat")
	inner, err := MapSingleProcess(path, 128, false)
	if err != nil {
		t.Fatal(err)
	}
	f := newFramedFile(inner)
	defer f.Close()

	off, err := f.WriteWith(3, func(dst []byte) {
		copy(dst, "xyz")
	})
	if err != nil {
		t.Fatal(err)
	}
	if off != 0 {
		t.Errorf("offset = %d", off)
	}
	want := []byte{0x07, 0x00, 0x00, 0x00, 'x', 'y', 'z'}
	if !bytes.Equal(f.Bytes()[:7], want) {
		t.Errorf("frame = %v, want %v", f.Bytes()[:7], want)
	}
}

func TestFramedOutOfRoom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framesfull.dat")
	inner, err := MapSingleProcess(path, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	f := newFramedFile(inner)

	if off, err := f.Write([]byte("123456")); err != nil || off != 0 {
		t.Fatalf("first frame: offset=%d err=%v", off, err)
	}
	if off, err := f.Write([]byte("x")); err != nil || off != NullOffset {
		t.Fatalf("overflowing frame: offset=%d err=%v, want NullOffset", off, err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 10 {
		t.Errorf("truncated size = %d, want 10", info.Size())
	}
}
