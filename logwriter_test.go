package mapfile

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newLineTestFile(t *testing.T) *SingleProcessFile {
	t.Helper()
	f, err := MapSingleProcess(filepath.Join(t.TempDir(), "lines.log"), 4096, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestLineWriterFormat(t *testing.T) {
	f := newLineTestFile(t)
	w := NewLineWriter(f, "com.example.service", "worker-1", LogLevelDebug)
	w.now = func() time.Time {
		return time.Date(2024, 3, 15, 10, 30, 45, 123_000_000, time.UTC)
	}

	if err := w.Infof("started in %dms", 42); err != nil {
		t.Fatal(err)
	}

	want := "2024-03-15 10:30:45.123 [worker-1] INFO com.example.service - started in 42ms\n"
	got := string(f.Bytes()[:len(want)])
	if got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestLineWriterLevelGating(t *testing.T) {
	f := newLineTestFile(t)
	w := NewLineWriter(f, "svc", "main", LogLevelWarn)

	if w.Enabled(LogLevelInfo) {
		t.Error("info should be gated at warn level")
	}
	if err := w.Debugf("dropped"); err != nil {
		t.Fatal(err)
	}
	if err := w.Infof("dropped too"); err != nil {
		t.Fatal(err)
	}
	if f.Bytes()[0] != 0 {
		t.Error("gated records must not touch the file")
	}

	if err := w.Errorf("kept"); err != nil {
		t.Fatal(err)
	}
	line := string(f.Bytes()[:64])
	if !strings.Contains(line, "ERROR svc - kept") {
		t.Errorf("line = %q", line)
	}
}

func TestLineWriterNonAsciiReplaced(t *testing.T) {
	f := newLineTestFile(t)
	w := NewLineWriter(f, "svc", "main", LogLevelDebug)

	if err := w.Infof("café"); err != nil {
		t.Fatal(err)
	}
	data := string(f.Bytes()[:256])
	if !strings.Contains(data, "caf?") {
		t.Errorf("non-ascii not replaced: %q", data)
	}
}

func TestLineWriterOverRollingFile(t *testing.T) {
	dir := t.TempDir()
	f := newRollingTestFile(t, dir, 256, nil)
	w := NewLineWriter(f, "svc", "main", LogLevelDebug)

	for i := 0; i < 20; i++ {
		if err := w.Infof("record %02d", i); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}
