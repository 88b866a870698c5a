package mapfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTimestampFileProviderNaming(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 3, 15, 10, 30, 45, 123_000_000, time.UTC)
	p := &TimestampFileProvider{
		Dir:    dir,
		Prefix: "events-",
		Suffix: ".dat",
		now:    func() time.Time { return fixed },
	}

	want := filepath.Join(dir, "events-20240315_103045.123.dat")
	if got := p.NextFile(); got != want {
		t.Errorf("NextFile = %q, want %q", got, want)
	}
}

func TestTimestampFileProviderCollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)
	p := &TimestampFileProvider{
		Dir: dir,
		now: func() time.Time { return fixed },
	}

	first := p.NextFile()
	if err := os.WriteFile(first, nil, 0644); err != nil {
		t.Fatal(err)
	}
	second := p.NextFile()
	if filepath.Base(second) != "20240315_103045.000-1" {
		t.Errorf("collision name = %q, want -1 suffix", second)
	}
	if err := os.WriteFile(second, nil, 0644); err != nil {
		t.Fatal(err)
	}
	third := p.NextFile()
	if filepath.Base(third) != "20240315_103045.000-2" {
		t.Errorf("second collision name = %q, want -2 suffix", third)
	}
}

func TestTimestampFileProviderCustomFormat(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &TimestampFileProvider{
		Dir:        dir,
		TimeFormat: "2006-01-02",
		Suffix:     ".log",
		now:        func() time.Time { return fixed },
	}
	if got := filepath.Base(p.NextFile()); got != "2024-01-02.log" {
		t.Errorf("NextFile base = %q", got)
	}
}
