package mapfile

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestMapRejectsNonPositiveCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 0
	if _, err := Map(filepath.Join(t.TempDir(), "x.dat"), cfg); err == nil {
		t.Error("expected an error for zero capacity")
	}
}

func TestMapSingleProcessDispatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 64
	f, err := Map(filepath.Join(t.TempDir(), "sp.dat"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, ok := f.(*SingleProcessFile); !ok {
		t.Errorf("Map returned %T, want *SingleProcessFile", f)
	}
}

func TestMapMultiProcessDispatch(t *testing.T) {
	cfg := MultiProcessConfig()
	cfg.Capacity = 64
	f, err := Map(filepath.Join(t.TempDir(), "mp.dat"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, ok := f.(*MultiProcessFile); !ok {
		t.Errorf("Map returned %T, want *MultiProcessFile", f)
	}
}

func TestMapFramedDispatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 64
	cfg.Framed = true
	f, err := Map(filepath.Join(t.TempDir(), "fr.dat"), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := f.Write([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	mf := f.(MappedFile)
	want := []byte{0x06, 0x00, 0x00, 0x00, 'h', 'i'}
	if !bytes.Equal(mf.Bytes()[:6], want) {
		t.Errorf("framed bytes = %v, want %v", mf.Bytes()[:6], want)
	}
}

func TestMapRollingDispatch(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Capacity = 64
	cfg.Roll.Enabled = true
	f, err := Map(dir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := f.(*RollingFile); !ok {
		t.Errorf("Map returned %T, want *RollingFile", f)
	}
	if filepath.Dir(f.Path()) != dir {
		t.Errorf("current file %q not inside %q", f.Path(), dir)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Capacity != 1<<20 {
		t.Errorf("Capacity = %d", cfg.Capacity)
	}
	if cfg.Roll.TimeFormat != DefaultTimeFormat {
		t.Errorf("TimeFormat = %q", cfg.Roll.TimeFormat)
	}
	if !cfg.Roll.YieldOnContention {
		t.Error("YieldOnContention should default on")
	}
	if cfg.Roll.CoordinationFileName != DefaultCoordinationFileName {
		t.Errorf("CoordinationFileName = %q", cfg.Roll.CoordinationFileName)
	}
	if !MultiProcessConfig().MultiProcess {
		t.Error("MultiProcessConfig should enable MultiProcess")
	}
}
